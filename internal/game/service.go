package game

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/dev1d123/CyberDOJO/internal/catalog"
	"github.com/dev1d123/CyberDOJO/internal/classifier"
	"github.com/dev1d123/CyberDOJO/internal/common"
	"github.com/dev1d123/CyberDOJO/internal/ledger"
	"github.com/dev1d123/CyberDOJO/internal/models"
	"github.com/dev1d123/CyberDOJO/internal/scanner"
)

const (
	// ReasonAntagonistExhausted is the win reason: the antagonist used up its
	// attempts without the user ever disclosing.
	ReasonAntagonistExhausted = "antagonist_exhausted_no_disclosure"

	genericDisclosureReason = "sensitive_data_disclosed"

	// Used when the classifier cannot produce an opening line; session
	// creation must not fail because of it.
	fallbackOpeningLine = "Hi! Do you have a moment to chat?"
)

// Service is the session state machine: creation, per-turn transitions,
// termination, and idempotent reward issuance.
type Service struct {
	repo        *Repo
	catalog     *catalog.Repo
	rules       *scanner.Repo
	cls         classifier.Classifier
	ledger      *ledger.Ledger
	events      OutcomePublisher // optional
	maxAttempts int
}

func NewService(repo *Repo, cat *catalog.Repo, rules *scanner.Repo, cls classifier.Classifier, lg *ledger.Ledger, events OutcomePublisher, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Service{
		repo:        repo,
		catalog:     cat,
		rules:       rules,
		cls:         cls,
		ledger:      lg,
		events:      events,
		maxAttempts: maxAttempts,
	}
}

type StartResult struct {
	SessionID      string
	OpeningMessage string
}

// StartSession creates a session for the user, freezing the chosen scenario
// into the session's snapshot, and persists the antagonist's opening line.
func (s *Service) StartSession(ctx context.Context, user *models.User, scenarioID *uint64) (*StartResult, error) {
	if user == nil || !user.IsActive {
		return nil, ErrUserInactive
	}

	var (
		sc  *catalog.Scenario
		err error
	)
	if scenarioID != nil {
		sc, err = s.catalog.GetActive(ctx, *scenarioID)
	} else {
		sc, err = s.catalog.PickNext(ctx, user.ID)
	}
	if err != nil {
		return nil, err
	}

	sid, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	sess := &GameSession{
		SessionID:  sid,
		UserID:     user.ID,
		ScenarioID: &sc.ID,
		Snapshot:   catalog.Freeze(sc),
		StartedAt:  time.Now(),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	opening := fallbackOpeningLine
	verdict, err := s.cls.Classify(ctx, s.buildRequest(sess, user, nil))
	if err != nil {
		log.Printf("game: opening line fallback session=%s err=%v", sid, err)
	} else {
		opening = verdict.Reply
	}

	if err := s.repo.InsertMessage(ctx, &ChatMessage{
		SessionID: sid,
		Role:      RoleAntagonist,
		Content:   opening,
	}); err != nil {
		return nil, err
	}

	return &StartResult{SessionID: sid, OpeningMessage: opening}, nil
}

type TurnResult struct {
	Reply              string
	AntagonistAttempts int
	Outcome            Outcome
	GameOverReason     string
	Disclosure         bool
	DisclosureReason   string
}

// ProcessTurn applies one classified user turn to the session.
//
// The user's message is persisted before anything can fail, so the transcript
// stays complete even on a degraded turn. The classifier call runs without
// holding the session lock; only the transition itself (and the reward it may
// issue) executes under SELECT FOR UPDATE, with the open-state precondition
// re-checked inside the lock so concurrent turns serialize and the first
// terminal writer wins.
func (s *Service) ProcessTurn(ctx context.Context, user *models.User, sessionID, message string) (*TurnResult, error) {
	if message == "" {
		return nil, ErrMissingMessage
	}
	if user == nil || !user.IsActive {
		return nil, ErrUserInactive
	}

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != user.ID {
		// hide existence
		return nil, ErrSessionNotFound
	}
	if !sess.Open() {
		return nil, &SessionEndedError{Outcome: sess.Outcome, Reason: sess.GameOverReason}
	}

	// Step 1: append the user's message unconditionally.
	userMsg := &ChatMessage{SessionID: sessionID, Role: RoleUser, Content: message}
	if err := s.repo.InsertMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	// Step 2: local scan, the second line of defense.
	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	match := scanner.Scan(message, rules)

	// Step 3: remote classification over the full transcript.
	history, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	verdict, err := s.cls.Classify(ctx, s.buildRequest(sess, user, history))
	if err != nil {
		// Degraded turn: message stays persisted, no counters move.
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}

	// Step 4: merge signals. The local scanner is authoritative for the
	// audit flag even when the classifier saw nothing.
	disclosure := verdict.Analysis.HasDisclosure || verdict.Analysis.ForceEndSession || match != nil
	disclosureReason := verdict.Analysis.DisclosureReason
	if disclosureReason == "" && match != nil {
		disclosureReason = match.Rule.Name
	}
	if disclosureReason == "" && disclosure {
		disclosureReason = genericDisclosureReason
	}

	// Step 5: persist the antagonist's reply.
	if err := s.repo.InsertMessage(ctx, &ChatMessage{
		SessionID: sessionID,
		Role:      RoleAntagonist,
		Content:   verdict.Reply,
	}); err != nil {
		return nil, err
	}

	// Step 6: the transition, under the session row lock.
	var (
		result     TurnResult
		terminated *OutcomeEvent
	)
	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		locked, err := s.repo.LockSession(tx, sessionID)
		if err != nil {
			return err
		}
		if !locked.Open() {
			// A concurrent turn terminated the session first; drop this
			// transition and report the now-current terminal state.
			result = TurnResult{
				Reply:              verdict.Reply,
				AntagonistAttempts: locked.AntagonistAttempts,
				Outcome:            locked.Outcome,
				GameOverReason:     locked.GameOverReason,
				Disclosure:         disclosure,
				DisclosureReason:   disclosureReason,
			}
			return nil
		}

		if match != nil {
			if err := s.repo.MarkDangerousTx(tx, userMsg.ID, match.Rule.ID); err != nil {
				return err
			}
		}

		now := time.Now()
		switch {
		case disclosure:
			locked.Outcome = Lost
			locked.GameOverReason = disclosureReason
			locked.EndedAt = &now

		case verdict.Analysis.IsAttackAttempt:
			locked.AntagonistAttempts++
			if locked.AntagonistAttempts >= s.maxAttempts {
				// Re-scan the transcript inside the lock: a dangerous
				// message from any earlier turn blocks the win.
				dangerous, err := s.repo.HasDangerousMessageTx(tx, sessionID)
				if err != nil {
					return err
				}
				if !dangerous {
					locked.Outcome = Won
					locked.GameOverReason = ReasonAntagonistExhausted
					locked.EndedAt = &now
					if !locked.PointsAwarded {
						points := locked.Snapshot.BasePoints
						if err := s.ledger.CreditTx(tx, locked.UserID, points,
							"reward", "Scenario won: "+locked.Snapshot.Name,
							locked.SessionID, "game_session"); err != nil {
							return err
						}
						locked.PointsEarned = points
						locked.PointsAwarded = true
					}
				}
			}

		default:
			// Rapport turn: no counter or outcome change.
		}

		if err := s.repo.SaveTransitionTx(tx, locked); err != nil {
			return err
		}

		result = TurnResult{
			Reply:              verdict.Reply,
			AntagonistAttempts: locked.AntagonistAttempts,
			Outcome:            locked.Outcome,
			GameOverReason:     locked.GameOverReason,
			Disclosure:         disclosure,
			DisclosureReason:   disclosureReason,
		}
		if locked.Outcome.Terminal() {
			var scenarioID uint64
			if locked.ScenarioID != nil {
				scenarioID = *locked.ScenarioID
			}
			terminated = &OutcomeEvent{
				SessionID:    locked.SessionID,
				UserID:       locked.UserID,
				ScenarioID:   scenarioID,
				Outcome:      locked.Outcome,
				Reason:       locked.GameOverReason,
				PointsEarned: locked.PointsEarned,
				EndedAt:      now,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if terminated != nil && s.events != nil {
		if err := s.events.PublishOutcome(ctx, *terminated); err != nil {
			log.Printf("game: outcome publish failed session=%s err=%v", sessionID, err)
		}
	}

	return &result, nil
}

type ResumeResult struct {
	Session  *GameSession
	Messages []ChatMessage
}

// ResumeActiveSession returns the user's most recent open session with its
// transcript, or ErrNoActiveSession.
func (s *Service) ResumeActiveSession(ctx context.Context, userID uint64, scenarioID *uint64) (*ResumeResult, error) {
	sess, err := s.repo.GetActiveSession(ctx, userID, scenarioID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, sess.SessionID)
	if err != nil {
		return nil, err
	}
	return &ResumeResult{Session: sess, Messages: msgs}, nil
}

// GetTranscript returns the session and its full transcript. Only the owner
// may read it.
func (s *Service) GetTranscript(ctx context.Context, userID uint64, sessionID string) (*GameSession, []ChatMessage, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.UserID != userID {
		return nil, nil, ErrSessionNotFound
	}
	msgs, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return sess, msgs, nil
}

func (s *Service) buildRequest(sess *GameSession, user *models.User, history []ChatMessage) classifier.Request {
	turns := make([]classifier.Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, classifier.Turn{Role: m.Role, Content: m.Content})
	}
	return classifier.Request{
		SessionID:           sess.SessionID,
		MaxAttempts:         s.maxAttempts,
		CurrentAttemptsUsed: sess.AntagonistAttempts,
		UserContext: classifier.UserContext{
			Username: user.Username,
			Country:  user.Country,
		},
		ScenarioContext: classifier.ScenarioContext{
			Platform:       sess.Snapshot.Name,
			AntagonistGoal: sess.Snapshot.AntagonistGoal,
			Difficulty:     sess.Snapshot.DifficultyLevel,
		},
		ChatHistory: turns,
	}
}
