package game

import (
	"errors"
	"fmt"
)

var (
	ErrMissingMessage        = errors.New("game: message required")
	ErrSessionNotFound       = errors.New("game: session not found")
	ErrNoActiveSession       = errors.New("game: no active session")
	ErrUserInactive          = errors.New("game: user is not active")
	ErrClassifierUnavailable = errors.New("game: classifier unavailable")
)

// SessionEndedError rejects turns against a terminated session, carrying the
// terminal state so the caller can report it.
type SessionEndedError struct {
	Outcome Outcome
	Reason  string
}

func (e *SessionEndedError) Error() string {
	return fmt.Sprintf("game: session ended (%s): %s", e.Outcome, e.Reason)
}
