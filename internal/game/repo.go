package game

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateSession(ctx context.Context, s *GameSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSession(ctx context.Context, sessionID string) (*GameSession, error) {
	var s GameSession
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetActiveSession returns the user's most recent open session, optionally
// narrowed to one scenario.
func (r *Repo) GetActiveSession(ctx context.Context, userID uint64, scenarioID *uint64) (*GameSession, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND outcome = ?", userID, string(InProgress)).
		Order("started_at DESC")
	if scenarioID != nil {
		q = q.Where("scenario_id = ?", *scenarioID)
	}

	var s GameSession
	if err := q.First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repo) InsertMessage(ctx context.Context, m *ChatMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessages returns the full transcript, oldest first.
func (r *Repo) ListMessages(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	var msgs []ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&msgs).Error
	return msgs, err
}

// Transaction runs fn inside a DB transaction.
func (r *Repo) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// LockSession reloads the session under SELECT ... FOR UPDATE so at most one
// transition runs per session at a time.
func (r *Repo) LockSession(tx *gorm.DB, sessionID string) (*GameSession, error) {
	var s GameSession
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("session_id = ?", sessionID).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// MarkDangerousTx backfills the danger flag and matched rule on a user
// message. Runs on the locked transaction.
func (r *Repo) MarkDangerousTx(tx *gorm.DB, messageID uint64, ruleID uint64) error {
	return tx.Model(&ChatMessage{}).
		Where("id = ?", messageID).
		Updates(map[string]any{
			"is_dangerous":     true,
			"detected_rule_id": ruleID,
		}).Error
}

// HasDangerousMessageTx re-scans the session's transcript inside the lock;
// the win path must not trust a flag computed from a stale read.
func (r *Repo) HasDangerousMessageTx(tx *gorm.DB, sessionID string) (bool, error) {
	var n int64
	err := tx.Model(&ChatMessage{}).
		Where("session_id = ? AND is_dangerous = ?", sessionID, true).
		Count(&n).Error
	return n > 0, err
}

// SaveTransitionTx writes the session's mutated fields on the locked row.
func (r *Repo) SaveTransitionTx(tx *gorm.DB, s *GameSession) error {
	return tx.Model(&GameSession{}).
		Where("id = ?", s.ID).
		Updates(map[string]any{
			"antagonist_attempts": s.AntagonistAttempts,
			"outcome":             string(s.Outcome),
			"game_over_reason":    s.GameOverReason,
			"points_earned":       s.PointsEarned,
			"points_awarded":      s.PointsAwarded,
			"ended_at":            s.EndedAt,
		}).Error
}
