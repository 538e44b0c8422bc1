package game

import (
	"time"

	"github.com/dev1d123/CyberDOJO/internal/catalog"
)

const (
	RoleUser       = "user"
	RoleAntagonist = "antagonist"
	RoleSystem     = "system"
)

// GameSession is the central mutable entity. Once Outcome is terminal the row
// is closed: no counter, outcome, or message-flag mutation is permitted.
// Sessions are never deleted; they are the audit trail.
type GameSession struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID string `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	UserID    uint64 `gorm:"index;not null" json:"-"`

	// ScenarioID is nullable only transiently before the snapshot is
	// assigned; Snapshot is what the engine scores against.
	ScenarioID *uint64          `gorm:"index" json:"scenario_id"`
	Snapshot   catalog.Snapshot `gorm:"serializer:json;type:text" json:"scenario_snapshot"`

	AntagonistAttempts int     `gorm:"not null;default:0" json:"antagonist_attempts"`
	Outcome            Outcome `gorm:"type:varchar(16);not null;default:'';index" json:"outcome"`
	GameOverReason     string  `gorm:"type:varchar(255)" json:"game_over_reason"`

	PointsEarned  int64 `gorm:"not null;default:0" json:"points_earned"`
	PointsAwarded bool  `gorm:"not null;default:false" json:"points_awarded"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

func (GameSession) TableName() string { return "game_sessions" }

func (s *GameSession) Open() bool { return !s.Outcome.Terminal() }

// ChatMessage is append-only. The only post-insert mutation is the
// is_dangerous / detected-rule backfill, done inside the same locked
// transaction that applies the turn's transition.
type ChatMessage struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID      string    `gorm:"type:varchar(26);index;not null" json:"session_id"`
	Role           string    `gorm:"type:varchar(16);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	IsDangerous    bool      `gorm:"not null;default:false" json:"is_dangerous"`
	DetectedRuleID *uint64   `gorm:"index" json:"detected_rule_id"`
	SentAt         time.Time `gorm:"autoCreateTime;index" json:"sent_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }
