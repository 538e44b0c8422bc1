package audit

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// SessionAudit is one row per terminated session, written by the worker that
// consumes outcome events.
type SessionAudit struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID    string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	UserID       uint64    `gorm:"index;not null" json:"user_id"`
	ScenarioID   uint64    `gorm:"index" json:"scenario_id"`
	Outcome      string    `gorm:"type:varchar(16);not null" json:"outcome"`
	Reason       string    `gorm:"type:varchar(255)" json:"reason"`
	PointsEarned int64     `gorm:"not null;default:0" json:"points_earned"`
	EndedAt      time.Time `json:"ended_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func (SessionAudit) TableName() string { return "session_audits" }

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Record upserts by session id so redelivered events stay idempotent.
func (r *Repo) Record(ctx context.Context, a *SessionAudit) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", a.SessionID).
		FirstOrCreate(a).Error
}

func (r *Repo) ListByUser(ctx context.Context, userID uint64, limit int) ([]SessionAudit, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var rows []SessionAudit
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
