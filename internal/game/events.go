package game

import (
	"context"
	"time"
)

// OutcomeEvent is emitted once per terminated session for the audit trail.
type OutcomeEvent struct {
	SessionID    string    `json:"session_id"`
	UserID       uint64    `json:"user_id"`
	ScenarioID   uint64    `json:"scenario_id"`
	Outcome      Outcome   `json:"outcome"`
	Reason       string    `json:"reason"`
	PointsEarned int64     `json:"points_earned"`
	EndedAt      time.Time `json:"ended_at"`
}

// OutcomePublisher delivers terminal-session events to the audit pipeline.
// Publishing is best effort; the transition itself never depends on it.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, ev OutcomeEvent) error
}
