package game

import (
	"context"
	"errors"
	"fmt"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/dev1d123/CyberDOJO/internal/catalog"
	"github.com/dev1d123/CyberDOJO/internal/classifier"
	"github.com/dev1d123/CyberDOJO/internal/ledger"
	"github.com/dev1d123/CyberDOJO/internal/models"
	"github.com/dev1d123/CyberDOJO/internal/scanner"
)

// scriptedClassifier replays queued verdicts/errors and records requests.
type scriptedClassifier struct {
	verdicts []*classifier.Verdict
	errs     []error
	calls    []classifier.Request
}

func (c *scriptedClassifier) Classify(ctx context.Context, req classifier.Request) (*classifier.Verdict, error) {
	_ = ctx
	c.calls = append(c.calls, req)
	if len(c.verdicts) == 0 {
		return &classifier.Verdict{Reply: "ok"}, nil
	}
	v, err := c.verdicts[0], c.errs[0]
	c.verdicts = c.verdicts[1:]
	c.errs = c.errs[1:]
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *scriptedClassifier) queue(reply string, a classifier.Analysis) {
	c.verdicts = append(c.verdicts, &classifier.Verdict{Reply: reply, Analysis: a})
	c.errs = append(c.errs, nil)
}

func (c *scriptedClassifier) queueErr(err error) {
	c.verdicts = append(c.verdicts, nil)
	c.errs = append(c.errs, err)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&catalog.Scenario{},
		&scanner.DetectionRule{},
		&GameSession{},
		&ChatMessage{},
		&ledger.CreditTransaction{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type testEnv struct {
	db   *gorm.DB
	svc  *Service
	cls  *scriptedClassifier
	user *models.User
}

func newTestEnv(t *testing.T, maxAttempts int) *testEnv {
	t.Helper()
	db := openTestDB(t)

	user := &models.User{Username: "tester", Email: "t@example.com", PasswordHash: "x", Country: "PE", IsActive: true}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	cls := &scriptedClassifier{}
	svc := NewService(
		NewRepo(db),
		catalog.NewRepo(db, nil),
		scanner.NewRepo(db, nil),
		cls,
		ledger.New(db),
		nil,
		maxAttempts,
	)
	return &testEnv{db: db, svc: svc, cls: cls, user: user}
}

func (e *testEnv) addScenario(t *testing.T, name string, difficulty int, points int64) *catalog.Scenario {
	t.Helper()
	s := &catalog.Scenario{
		Name:            name,
		AntagonistGoal:  "phone number",
		DifficultyLevel: difficulty,
		BasePoints:      points,
		ThreatType:      "social_engineering",
		IsActive:        true,
	}
	if err := e.db.Create(s).Error; err != nil {
		t.Fatalf("create scenario: %v", err)
	}
	return s
}

func (e *testEnv) addRule(t *testing.T, name, pattern string) *scanner.DetectionRule {
	t.Helper()
	r := &scanner.DetectionRule{Name: name, RegexPattern: pattern, DataType: "secret", Severity: 3, IsActive: true}
	if err := e.db.Create(r).Error; err != nil {
		t.Fatalf("create rule: %v", err)
	}
	return r
}

func (e *testEnv) startSession(t *testing.T) string {
	t.Helper()
	e.cls.queue("hello there", classifier.Analysis{})
	res, err := e.svc.StartSession(context.Background(), e.user, nil)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return res.SessionID
}

func (e *testEnv) reload(t *testing.T, sessionID string) *GameSession {
	t.Helper()
	var s GameSession
	if err := e.db.Where("session_id = ?", sessionID).First(&s).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	return &s
}

func attackAnalysis() classifier.Analysis {
	return classifier.Analysis{IsAttackAttempt: true}
}

func TestStartSession_FreezesSnapshot(t *testing.T) {
	env := newTestEnv(t, 3)
	sc := env.addScenario(t, "s1", 1, 50)

	sid := env.startSession(t)

	sess := env.reload(t, sid)
	if sess.Snapshot.ScenarioID != sc.ID || sess.Snapshot.BasePoints != 50 {
		t.Fatalf("unexpected snapshot: %+v", sess.Snapshot)
	}
	if sess.AntagonistAttempts != 0 || !sess.Open() {
		t.Fatalf("new session not open: %+v", sess)
	}

	// The opening line is persisted as an antagonist message.
	var msgs []ChatMessage
	if err := env.db.Where("session_id = ?", sid).Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != RoleAntagonist || msgs[0].Content != "hello there" {
		t.Fatalf("unexpected opening messages: %+v", msgs)
	}

	// Catalog edits after start must not leak into the snapshot.
	if err := env.db.Model(sc).Updates(map[string]any{"base_points": 9999, "antagonist_goal": "everything"}).Error; err != nil {
		t.Fatalf("update scenario: %v", err)
	}
	sess = env.reload(t, sid)
	if sess.Snapshot.BasePoints != 50 || sess.Snapshot.AntagonistGoal != "phone number" {
		t.Fatalf("snapshot mutated by catalog edit: %+v", sess.Snapshot)
	}
}

func TestStartSession_ClassifierDownUsesFallbackLine(t *testing.T) {
	env := newTestEnv(t, 3)
	env.addScenario(t, "s1", 1, 50)

	env.cls.queueErr(errors.New("boom"))
	res, err := env.svc.StartSession(context.Background(), env.user, nil)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if res.OpeningMessage != fallbackOpeningLine {
		t.Fatalf("expected fallback opening, got %q", res.OpeningMessage)
	}

	var msg ChatMessage
	if err := env.db.Where("session_id = ?", res.SessionID).First(&msg).Error; err != nil {
		t.Fatalf("query opening message: %v", err)
	}
	if msg.Content != fallbackOpeningLine {
		t.Fatalf("fallback opening not persisted: %q", msg.Content)
	}
}

func TestStartSession_InactiveUserRejected(t *testing.T) {
	env := newTestEnv(t, 3)
	env.addScenario(t, "s1", 1, 50)
	env.user.IsActive = false

	_, err := env.svc.StartSession(context.Background(), env.user, nil)
	if !errors.Is(err, ErrUserInactive) {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}
}

func TestProcessTurn_ThreeAttemptsWinsAndAwardsOnce(t *testing.T) {
	env := newTestEnv(t, 3)
	env.addScenario(t, "s1", 1, 50)
	sid := env.startSession(t)

	for i := 1; i <= 3; i++ {
		env.cls.queue(fmt.Sprintf("attempt %d", i), attackAnalysis())
		res, err := env.svc.ProcessTurn(context.Background(), env.user, sid, fmt.Sprintf("msg %d", i))
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
		if res.AntagonistAttempts != i {
			t.Fatalf("turn %d: attempts=%d", i, res.AntagonistAttempts)
		}
		if i < 3 && res.Outcome.Terminal() {
			t.Fatalf("turn %d: ended early: %+v", i, res)
		}
	}

	sess := env.reload(t, sid)
	if sess.Outcome != Won {
		t.Fatalf("expected won, got %q", sess.Outcome)
	}
	if over := sess.Outcome.LegacyGameOver(); over == nil || *over {
		t.Fatalf("legacy projection wrong for win: %v", over)
	}
	if sess.GameOverReason != ReasonAntagonistExhausted {
		t.Fatalf("unexpected reason %q", sess.GameOverReason)
	}
	if !sess.PointsAwarded || sess.PointsEarned != 50 {
		t.Fatalf("reward bookkeeping wrong: awarded=%v earned=%d", sess.PointsAwarded, sess.PointsEarned)
	}
	if sess.EndedAt == nil {
		t.Fatalf("ended_at not set")
	}

	var u models.User
	if err := env.db.First(&u, env.user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if u.CyberCreds != 50 {
		t.Fatalf("balance=%d, want 50", u.CyberCreds)
	}

	var txs []ledger.CreditTransaction
	if err := env.db.Where("user_id = ?", env.user.ID).Find(&txs).Error; err != nil {
		t.Fatalf("query transactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Amount != 50 || txs[0].ReferenceID != sid {
		t.Fatalf("unexpected transactions: %+v", txs)
	}
}

func TestProcessTurn_LocalScanOverridesClassifier(t *testing.T) {
	env := newTestEnv(t, 3)
	env.addScenario(t, "s1", 1, 50)
	rule := env.addRule(t, "phone_number", `\d{3}-\d{4}`)
	sid := env.startSession(t)

	env.cls.queue("attempt 1", attackAnalysis())
	if _, err := env.svc.ProcessTurn(context.Background(), env.user, sid, "not telling"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}

	// Classifier misses the disclosure; the local scanner must not.
	env.cls.queue("thanks!", classifier.Analysis{})
	res, err := env.svc.ProcessTurn(context.Background(), env.user, sid, "ok fine, 555-1234")
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if !res.Disclosure || res.Outcome != Lost {
		t.Fatalf("expected loss by local scan, got %+v", res)
	}
	if res.DisclosureReason != "phone_number" {
		t.Fatalf("expected rule name as reason, got %q", res.DisclosureReason)
	}

	sess := env.reload(t, sid)
	if sess.Outcome != Lost || sess.PointsAwarded {
		t.Fatalf("session state wrong: %+v", sess)
	}
	if over := sess.Outcome.LegacyGameOver(); over == nil || !*over {
		t.Fatalf("legacy projection wrong for loss: %v", over)
	}

	var msg ChatMessage
	if err := env.db.Where("session_id = ? AND role = ? AND is_dangerous = ?", sid, RoleUser, true).
		First(&msg).Error; err != nil {
		t.Fatalf("dangerous message not flagged: %v", err)
	}
	if msg.DetectedRuleID == nil || *msg.DetectedRuleID != rule.ID {
		t.Fatalf("matched rule not attached: %+v", msg)
	}
}

func TestProcessTurn_ForceEndTerminates(t *testing.T) {
	env := newTestEnv(t, 3)
	env.addScenario(t, "s1", 1, 50)
	sid := env.startSession(t)

	env.cls.queue("goodbye", classifier.Analysis{ForceEndSession: true})
	res, err := env.svc.ProcessTurn(context.Background(), env.user, sid, "hello?")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.Outcome != Lost || !res.Disclosure {
		t.Fatalf("expected forced loss, got %+v", res)
	}
	if res.DisclosureReason != genericDisclosureReason {
		t.Fatalf("expected generic reason, got %q", res.DisclosureReason)
	}
}

func TestProcessTurn_EndedSessionRejectedWithoutMutation(t *testing.T) {
	env := newTestEnv(t, 1)
	env.addScenario(t, "s1", 1, 50)
	sid := env.startSession(t)

	env.cls.queue("attempt 1", attackAnalysis())
	if _, err := env.svc.ProcessTurn(context.Background(), env.user, sid, "nope"); err != nil {
		t.Fatalf("winning turn: %v", err)
	}
	before := env.reload(t, sid)
	if before.Outcome != Won {
		t.Fatalf("setup: expected won, got %q", before.Outcome)
	}

	var msgCountBefore int64
	env.db.Model(&ChatMessage{}).Where("session_id = ?", sid).Count(&msgCountBefore)

	_, err := env.svc.ProcessTurn(context.Background(), env.user, sid, "one more")
	var ended *SessionEndedError
	if !errors.As(err, &ended) {
		t.Fatalf("expected SessionEndedError, got %v", err)
	}
	if ended.Reason != ReasonAntagonistExhausted || ended.Outcome != Won {
		t.Fatalf("unexpected terminal state: %+v", ended)
	}

	after := env.reload(t, sid)
	if after.AntagonistAttempts != before.AntagonistAttempts ||
		after.Outcome != before.Outcome ||
		after.PointsEarned != before.PointsEarned {
		t.Fatalf("terminated session mutated: before=%+v after=%+v", before, after)
	}

	var msgCountAfter int64
	env.db.Model(&ChatMessage{}).Where("session_id = ?", sid).Count(&msgCountAfter)
	if msgCountAfter != msgCountBefore {
		t.Fatalf("messages appended after termination: %d -> %d", msgCountBefore, msgCountAfter)
	}
}

func TestProcessTurn_ClassifierUnavailableDegradesTurn(t *testing.T) {
	env := newTestEnv(t, 3)
	env.addScenario(t, "s1", 1, 50)
	sid := env.startSession(t)

	env.cls.queue("attempt 1", attackAnalysis())
	if _, err := env.svc.ProcessTurn(context.Background(), env.user, sid, "turn 1"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}

	env.cls.queueErr(errors.New("timeout"))
	_, err := env.svc.ProcessTurn(context.Background(), env.user, sid, "turn 2")
	if !errors.Is(err, ErrClassifierUnavailable) {
		t.Fatalf("expected ErrClassifierUnavailable, got %v", err)
	}

	// Transcript keeps the user message but gets no antagonist reply.
	var msgs []ChatMessage
	if err := env.db.Where("session_id = ?", sid).Order("id ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	last := msgs[len(msgs)-1]
	if last.Role != RoleUser || last.Content != "turn 2" {
		t.Fatalf("expected trailing user message, got %+v", last)
	}

	sess := env.reload(t, sid)
	if sess.AntagonistAttempts != 1 || !sess.Open() {
		t.Fatalf("degraded turn mutated session: %+v", sess)
	}

	// The session continues normally afterwards.
	env.cls.queue("attempt 2", attackAnalysis())
	res, err := env.svc.ProcessTurn(context.Background(), env.user, sid, "turn 3")
	if err != nil {
		t.Fatalf("turn 3: %v", err)
	}
	if res.AntagonistAttempts != 2 {
		t.Fatalf("attempts=%d, want 2", res.AntagonistAttempts)
	}
}

func TestProcessTurn_RapportTurnChangesNothing(t *testing.T) {
	env := newTestEnv(t, 3)
	env.addScenario(t, "s1", 1, 50)
	sid := env.startSession(t)

	env.cls.queue("so, how was your day?", classifier.Analysis{})
	res, err := env.svc.ProcessTurn(context.Background(), env.user, sid, "hi!")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.AntagonistAttempts != 0 || res.Outcome.Terminal() || res.Disclosure {
		t.Fatalf("rapport turn changed state: %+v", res)
	}
}

func TestProcessTurn_DangerousHistoryBlocksWin(t *testing.T) {
	env := newTestEnv(t, 2)
	env.addScenario(t, "s1", 1, 50)
	sid := env.startSession(t)

	// A dangerous message from an earlier turn must block the win even when
	// the current turn's merged signal is clean.
	if err := env.db.Create(&ChatMessage{
		SessionID:   sid,
		Role:        RoleUser,
		Content:     "my pin is 1234",
		IsDangerous: true,
	}).Error; err != nil {
		t.Fatalf("seed dangerous message: %v", err)
	}

	for i := 1; i <= 2; i++ {
		env.cls.queue(fmt.Sprintf("attempt %d", i), attackAnalysis())
		if _, err := env.svc.ProcessTurn(context.Background(), env.user, sid, fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}

	sess := env.reload(t, sid)
	if sess.Outcome == Won || sess.PointsAwarded {
		t.Fatalf("won despite dangerous history: %+v", sess)
	}
	if sess.AntagonistAttempts != 2 {
		t.Fatalf("attempts=%d, want 2", sess.AntagonistAttempts)
	}
}

func TestProcessTurn_ValidationAndOwnership(t *testing.T) {
	env := newTestEnv(t, 3)
	env.addScenario(t, "s1", 1, 50)
	sid := env.startSession(t)

	if _, err := env.svc.ProcessTurn(context.Background(), env.user, sid, ""); !errors.Is(err, ErrMissingMessage) {
		t.Fatalf("expected ErrMissingMessage, got %v", err)
	}

	if _, err := env.svc.ProcessTurn(context.Background(), env.user, "01UNKNOWNSESSION0000000000", "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	other := &models.User{Username: "other", Email: "o@example.com", PasswordHash: "x", IsActive: true}
	if err := env.db.Create(other).Error; err != nil {
		t.Fatalf("create other user: %v", err)
	}
	if _, err := env.svc.ProcessTurn(context.Background(), other, sid, "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("foreign session not hidden, got %v", err)
	}
}

func TestProcessTurn_ClassifierReceivesFullHistory(t *testing.T) {
	env := newTestEnv(t, 3)
	env.addScenario(t, "s1", 1, 50)
	sid := env.startSession(t)

	env.cls.queue("reply 1", classifier.Analysis{})
	if _, err := env.svc.ProcessTurn(context.Background(), env.user, sid, "first"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	env.cls.queue("reply 2", classifier.Analysis{})
	if _, err := env.svc.ProcessTurn(context.Background(), env.user, sid, "second"); err != nil {
		t.Fatalf("turn 2: %v", err)
	}

	// Last call: opening + (user, antagonist) + user = 4 turns of history.
	last := env.cls.calls[len(env.cls.calls)-1]
	if len(last.ChatHistory) != 4 {
		t.Fatalf("history len=%d, want 4", len(last.ChatHistory))
	}
	if last.ChatHistory[len(last.ChatHistory)-1].Content != "second" {
		t.Fatalf("latest user turn missing from history: %+v", last.ChatHistory)
	}
	if last.ScenarioContext.AntagonistGoal != "phone number" {
		t.Fatalf("scenario context not from snapshot: %+v", last.ScenarioContext)
	}
	if last.UserContext.Username != "tester" || last.UserContext.Country != "PE" {
		t.Fatalf("user context wrong: %+v", last.UserContext)
	}
}

func TestResumeAndTranscript(t *testing.T) {
	env := newTestEnv(t, 3)
	env.addScenario(t, "s1", 1, 50)

	if _, err := env.svc.ResumeActiveSession(context.Background(), env.user.ID, nil); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}

	sid := env.startSession(t)
	env.cls.queue("reply", classifier.Analysis{})
	if _, err := env.svc.ProcessTurn(context.Background(), env.user, sid, "hello"); err != nil {
		t.Fatalf("turn: %v", err)
	}

	res, err := env.svc.ResumeActiveSession(context.Background(), env.user.ID, nil)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if res.Session.SessionID != sid || len(res.Messages) != 3 {
		t.Fatalf("unexpected resume result: session=%s msgs=%d", res.Session.SessionID, len(res.Messages))
	}

	sess, msgs, err := env.svc.GetTranscript(context.Background(), env.user.ID, sid)
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if sess.SessionID != sid || len(msgs) != 3 {
		t.Fatalf("unexpected transcript: %d messages", len(msgs))
	}
	if msgs[0].Role != RoleAntagonist || msgs[1].Role != RoleUser {
		t.Fatalf("transcript order wrong: %+v", msgs)
	}
}
