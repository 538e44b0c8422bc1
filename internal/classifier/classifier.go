package classifier

import "context"

// Turn is one transcript entry sent with every call; the classifier is
// stateless and receives the full prior history each time.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type UserContext struct {
	Username string `json:"username"`
	Country  string `json:"country"`
}

type ScenarioContext struct {
	Platform       string `json:"platform"`
	AntagonistGoal string `json:"antagonist_goal"`
	Difficulty     int    `json:"difficulty"`
}

// Request is the outbound contract for one classification call.
type Request struct {
	SessionID           string          `json:"session_id"`
	MaxAttempts         int             `json:"max_attempts"`
	CurrentAttemptsUsed int             `json:"current_attempts_used"`
	UserContext         UserContext     `json:"user_context"`
	ScenarioContext     ScenarioContext `json:"scenario_context"`
	ChatHistory         []Turn          `json:"chat_history"`
}

// Analysis is the per-turn verdict. Missing fields default to false/empty;
// anything structurally unparseable is an error at the boundary.
type Analysis struct {
	HasDisclosure    bool   `json:"has_disclosure"`
	DisclosureReason string `json:"disclosure_reason"`
	IsAttackAttempt  bool   `json:"is_attack_attempt"`
	ForceEndSession  bool   `json:"force_end_session"`
}

type Verdict struct {
	Reply    string   `json:"reply"`
	Analysis Analysis `json:"analysis"`
}

// Classifier produces the antagonist's next line plus the verdict for the
// user's latest turn. An empty ChatHistory requests the scenario's opening
// line.
type Classifier interface {
	Classify(ctx context.Context, req Request) (*Verdict, error)
}
