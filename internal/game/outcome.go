package game

// Outcome is the session state: in progress, won, or lost. Stored as the
// outcome column ("" while open, "won", "failed") and projected to the legacy
// tri-state is_game_over boolean only at the JSON boundary.
type Outcome string

const (
	InProgress Outcome = ""
	Won        Outcome = "won"
	Lost       Outcome = "failed"
)

func (o Outcome) Terminal() bool { return o == Won || o == Lost }

// LegacyGameOver projects the outcome to the historical client contract:
// nil = in progress, false = terminated as a win, true = terminated as a loss.
func (o Outcome) LegacyGameOver() *bool {
	switch o {
	case Won:
		b := false
		return &b
	case Lost:
		b := true
		return &b
	default:
		return nil
	}
}

// OrNull renders the outcome column for responses: nil while open.
func (o Outcome) OrNull() *string {
	if !o.Terminal() {
		return nil
	}
	s := string(o)
	return &s
}
