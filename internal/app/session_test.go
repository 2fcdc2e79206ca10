package app

import (
	"fmt"
	"testing"
	"time"

	"pinquiz-service/internal/domain"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// manualTimers captures scheduled callbacks so tests control when timers fire.
type manualTimers struct {
	fns []func()
}

func (m *manualTimers) schedule(_ time.Duration, fn func()) {
	m.fns = append(m.fns, fn)
}

func (m *manualTimers) fire(t *testing.T, i int) {
	t.Helper()
	if i >= len(m.fns) {
		t.Fatalf("no timer %d scheduled (have %d)", i, len(m.fns))
	}
	m.fns[i]()
}

func singleQuestionQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "One rounder",
		Questions: []domain.Question{
			{
				ID:   "q1",
				Text: "Pick A",
				Type: domain.QuestionSingleChoice,
				Options: []domain.AnswerOption{
					{ID: "oa", Text: "A", Correct: true, SortOrder: 1},
					{ID: "ob", Text: "B", SortOrder: 2},
				},
				TimeLimit: 30 * time.Second,
				Points:    1000,
				SortOrder: 1,
			},
		},
	}
}

func twoQuestionQuiz() domain.Quiz {
	quiz := singleQuestionQuiz()
	quiz.Questions = append(quiz.Questions, domain.Question{
		ID:   "q2",
		Text: "True or false: water is wet",
		Type: domain.QuestionTrueFalse,
		Options: []domain.AnswerOption{
			{ID: "ot", Text: "True", Correct: true, SortOrder: 1},
			{ID: "of", Text: "False", SortOrder: 2},
		},
		TimeLimit: 10 * time.Second,
		Points:    500,
		SortOrder: 2,
	})
	return quiz
}

func newTestSession(quiz domain.Quiz, clock *fakeClock, timers *manualTimers) *Session {
	s := newSessionWithClock("s1", "ABC234", "host-1", quiz, sessionSettings{}, clock.Now)
	s.schedule = timers.schedule
	seq := 0
	s.newID = func() string {
		seq++
		return fmt.Sprintf("p%d", seq)
	}
	return s
}

func checkScoreInvariant(t *testing.T, s *Session) {
	t.Helper()
	sums := make(map[string]int)
	for _, byPlayer := range s.answers {
		for playerID, ans := range byPlayer {
			sums[playerID] += ans.Awarded
		}
	}
	for id, player := range s.players {
		if player.Score != sums[id] {
			t.Fatalf("player %s score %d != sum of awarded points %d", id, player.Score, sums[id])
		}
	}
}

func TestJoinValidation(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := newTestSession(singleQuestionQuiz(), clock, &manualTimers{})

	if _, err := s.Join("", ""); err != domain.ErrNicknameInvalid {
		t.Fatalf("expected invalid nickname, got %v", err)
	}
	long := make([]byte, 51)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := s.Join(string(long), ""); err != domain.ErrNicknameInvalid {
		t.Fatalf("expected invalid nickname for 51 chars, got %v", err)
	}

	if _, err := s.Join("Alice", "u1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := s.Join("Alice", ""); err != domain.ErrNicknameTaken {
		t.Fatalf("expected nickname taken, got %v", err)
	}
	// Nickname matching is case-sensitive exact match.
	if _, err := s.Join("alice", ""); err != nil {
		t.Fatalf("lowercase variant should be allowed: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.Join("Bob", ""); err != domain.ErrSessionStarted {
		t.Fatalf("expected late join rejection, got %v", err)
	}
}

func TestRosterOrderAndTouch(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := newTestSession(singleQuestionQuiz(), clock, &manualTimers{})

	alice, _ := s.Join("Alice", "u1")
	clock.Advance(time.Second)
	bob, _ := s.Join("Bob", "")

	roster := s.Players()
	if len(roster) != 2 || roster[0].ID != alice.ID || roster[1].ID != bob.ID {
		t.Fatalf("expected join order preserved, got %+v", roster)
	}

	clock.Advance(10 * time.Second)
	if err := s.Touch(alice.ID); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := s.Touch("ghost"); err != domain.ErrPlayerNotFound {
		t.Fatalf("expected player not found, got %v", err)
	}

	roster = s.Players()
	if !roster[0].LastSeen.Equal(clock.Now()) {
		t.Fatalf("expected refreshed last-seen, got %v", roster[0].LastSeen)
	}
	if roster[1].LastSeen.Equal(clock.Now()) {
		t.Fatalf("untouched player's last-seen must not move")
	}
}

func TestStartPreconditions(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}

	s := newTestSession(singleQuestionQuiz(), clock, &manualTimers{})
	if err := s.Start(); err != domain.ErrNotEnoughPlayers {
		t.Fatalf("expected not enough players, got %v", err)
	}

	empty := newTestSession(domain.Quiz{ID: "quiz-0"}, clock, &manualTimers{})
	if _, err := empty.Join("Alice", ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := empty.Start(); err != domain.ErrQuizEmpty {
		t.Fatalf("expected empty quiz rejection, got %v", err)
	}

	if _, err := s.Join("Alice", ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(); err != domain.ErrWrongPhase {
		t.Fatalf("double start should fail, got %v", err)
	}
}

func TestFullRoundScoring(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	timers := &manualTimers{}
	s := newTestSession(singleQuestionQuiz(), clock, timers)

	p1, err := s.Join("Alice", "u1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	p2, err := s.Join("Bob", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Instant correct answer earns the full base.
	res, err := s.Submit(p1.ID, domain.Submission{QuestionID: "q1", OptionID: "oa"}, clock.Now())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Correct || res.Awarded != 1000 || res.TotalScore != 1000 {
		t.Fatalf("expected full points, got %+v", res)
	}
	checkScoreInvariant(t, s)

	// Wrong answer halfway through earns nothing, and being the last
	// unanswered player locks the question early.
	clock.Advance(15 * time.Second)
	res, err = s.Submit(p2.ID, domain.Submission{QuestionID: "q1", OptionID: "ob"}, clock.Now())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Correct || res.Awarded != 0 || res.TotalScore != 0 {
		t.Fatalf("expected zero points, got %+v", res)
	}
	checkScoreInvariant(t, s)

	if got := s.phase; got != domain.PhaseLeaderboard {
		t.Fatalf("expected early lock into leaderboard, got %s", got)
	}

	// A submission after the lock is refused and leaves no trace.
	if _, err := s.Submit(p2.ID, domain.Submission{QuestionID: "q1", OptionID: "oa"}, clock.Now()); err != domain.ErrWrongPhase {
		t.Fatalf("expected wrong phase, got %v", err)
	}
	if len(s.answers["q1"]) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(s.answers["q1"]))
	}

	lb := s.Leaderboard()
	if len(lb.Entries) != 2 || lb.Entries[0].PlayerID != p1.ID || lb.Entries[0].Score != 1000 || lb.Entries[1].Score != 0 {
		t.Fatalf("unexpected leaderboard %+v", lb.Entries)
	}
}

func TestDuplicateAnswerRejected(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := newTestSession(singleQuestionQuiz(), clock, &manualTimers{})

	p1, _ := s.Join("Alice", "")
	p2, _ := s.Join("Bob", "")
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := s.Submit(p1.ID, domain.Submission{QuestionID: "q1", OptionID: "ob"}, clock.Now()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.Submit(p1.ID, domain.Submission{QuestionID: "q1", OptionID: "oa"}, clock.Now()); err != domain.ErrDuplicateAnswer {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	if s.players[p1.ID].Score != 0 {
		t.Fatalf("duplicate must not change score, got %d", s.players[p1.ID].Score)
	}
	_ = p2
}

func TestSubmitValidation(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := newTestSession(twoQuestionQuiz(), clock, &manualTimers{})

	p1, _ := s.Join("Alice", "")

	// Lobby phase: no question is open yet.
	if _, err := s.Submit(p1.ID, domain.Submission{QuestionID: "q1", OptionID: "oa"}, clock.Now()); err != domain.ErrWrongPhase {
		t.Fatalf("expected wrong phase in lobby, got %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.Submit("ghost", domain.Submission{QuestionID: "q1", OptionID: "oa"}, clock.Now()); err != domain.ErrPlayerNotFound {
		t.Fatalf("expected player not found, got %v", err)
	}
	// Answer aimed at a question that is not the open one.
	if _, err := s.Submit(p1.ID, domain.Submission{QuestionID: "q2", OptionID: "ot"}, clock.Now()); err != domain.ErrWrongPhase {
		t.Fatalf("expected wrong phase for future question, got %v", err)
	}
	// Option from another question does not belong here.
	if _, err := s.Submit(p1.ID, domain.Submission{QuestionID: "q1", OptionID: "ot"}, clock.Now()); err != domain.ErrOptionNotFound {
		t.Fatalf("expected option not found, got %v", err)
	}
}

func TestTimerLockAndStaleEpoch(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	timers := &manualTimers{}
	s := newTestSession(singleQuestionQuiz(), clock, timers)

	p1, _ := s.Join("Alice", "")
	p2, _ := s.Join("Bob", "")
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(timers.fns) != 1 {
		t.Fatalf("expected 1 scheduled lock timer, got %d", len(timers.fns))
	}

	// Only one of two players answers; the countdown expires.
	if _, err := s.Submit(p1.ID, domain.Submission{QuestionID: "q1", OptionID: "oa"}, clock.Now()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	clock.Advance(30 * time.Second)
	timers.fire(t, 0)

	if s.phase != domain.PhaseLeaderboard {
		t.Fatalf("expected leaderboard after timer lock, got %s", s.phase)
	}
	// The unanswered player simply scores nothing for the question.
	if s.players[p2.ID].Score != 0 {
		t.Fatalf("expected 0 for unanswered player, got %d", s.players[p2.ID].Score)
	}

	// Firing the same timer again is a stale epoch and must be ignored.
	epoch := s.epoch
	timers.fire(t, 0)
	if s.phase != domain.PhaseLeaderboard || s.epoch != epoch {
		t.Fatalf("stale timer must be discarded, phase=%s", s.phase)
	}
}

func TestEarlyLockLeavesTimerStale(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	timers := &manualTimers{}
	s := newTestSession(singleQuestionQuiz(), clock, timers)

	p1, _ := s.Join("Alice", "")
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.Submit(p1.ID, domain.Submission{QuestionID: "q1", OptionID: "oa"}, clock.Now()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if s.phase != domain.PhaseLeaderboard {
		t.Fatalf("sole player answering should lock early, got %s", s.phase)
	}

	// The original countdown still fires eventually; it must be a no-op.
	epoch := s.epoch
	timers.fire(t, 0)
	if s.phase != domain.PhaseLeaderboard || s.epoch != epoch {
		t.Fatalf("stale countdown changed state, phase=%s", s.phase)
	}
}

func TestAutoAdvanceTimer(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	timers := &manualTimers{}
	s := newSessionWithClock("s1", "ABC234", "host-1", twoQuestionQuiz(), sessionSettings{autoAdvance: 5 * time.Second}, clock.Now)
	s.schedule = timers.schedule
	s.newID = func() string { return "p1" }

	p1, _ := s.Join("Alice", "")
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.Submit(p1.ID, domain.Submission{QuestionID: "q1", OptionID: "oa"}, clock.Now()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// timers: [0] q1 countdown (stale), [1] auto-advance off the leaderboard.
	if len(timers.fns) != 2 {
		t.Fatalf("expected 2 timers, got %d", len(timers.fns))
	}
	clock.Advance(5 * time.Second)
	timers.fire(t, 1)
	if s.phase != domain.PhaseQuestionOpen || s.questionIdx != 1 {
		t.Fatalf("expected auto-advance to question 1, got phase=%s idx=%d", s.phase, s.questionIdx)
	}
}

func TestAdvanceThroughToFinish(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	timers := &manualTimers{}
	s := newTestSession(twoQuestionQuiz(), clock, timers)

	done := make(chan domain.SessionResult, 1)
	s.onFinished = func(result domain.SessionResult) { done <- result }

	p1, _ := s.Join("Alice", "u1")
	p2, _ := s.Join("Bob", "")
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := s.Submit(p1.ID, domain.Submission{QuestionID: "q1", OptionID: "oa"}, clock.Now()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	clock.Advance(15 * time.Second)
	if _, err := s.Submit(p2.ID, domain.Submission{QuestionID: "q1", OptionID: "ob"}, clock.Now()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := s.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if s.phase != domain.PhaseQuestionOpen || s.questionIdx != 1 {
		t.Fatalf("expected question 1 open, got phase=%s idx=%d", s.phase, s.questionIdx)
	}

	clock.Advance(2 * time.Second)
	if _, err := s.Submit(p1.ID, domain.Submission{QuestionID: "q2", OptionID: "ot"}, clock.Now()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.Submit(p2.ID, domain.Submission{QuestionID: "q2", OptionID: "of"}, clock.Now()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	checkScoreInvariant(t, s)

	// Advancing past the last question finishes the session.
	if err := s.Advance(); err != nil {
		t.Fatalf("final advance: %v", err)
	}
	if s.Status() != domain.StatusFinished {
		t.Fatalf("expected finished, got %s", s.Status())
	}

	select {
	case result := <-done:
		if len(result.Players) != 2 || len(result.Answers) != 4 {
			t.Fatalf("unexpected result sizes: players=%d answers=%d", len(result.Players), len(result.Answers))
		}
		var sum int
		for _, ans := range result.Answers {
			sum += ans.Awarded
		}
		var total int
		for _, player := range result.Players {
			total += player.Score
		}
		if sum != total {
			t.Fatalf("awarded sum %d != score total %d", sum, total)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onFinished was not invoked")
	}

	// Finished is terminal.
	if err := s.Advance(); err != domain.ErrSessionFinished {
		t.Fatalf("expected terminal state, got %v", err)
	}
	if err := s.End(); err != domain.ErrSessionFinished {
		t.Fatalf("expected terminal state, got %v", err)
	}
	if _, err := s.Submit(p1.ID, domain.Submission{QuestionID: "q2", OptionID: "ot"}, clock.Now()); err != domain.ErrSessionFinished {
		t.Fatalf("expected terminal state, got %v", err)
	}
}

func TestEndEarlyKeepsScores(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	timers := &manualTimers{}
	s := newTestSession(twoQuestionQuiz(), clock, timers)

	done := make(chan domain.SessionResult, 1)
	s.onFinished = func(result domain.SessionResult) { done <- result }

	p1, _ := s.Join("Alice", "")
	p2, _ := s.Join("Bob", "")
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.Submit(p1.ID, domain.Submission{QuestionID: "q1", OptionID: "oa"}, clock.Now()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := s.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	select {
	case result := <-done:
		if result.Players[0].Score != 1000 && result.Players[1].Score != 1000 {
			t.Fatalf("expected the earned score preserved, got %+v", result.Players)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onFinished was not invoked")
	}
	_ = p2
}

func TestSubscribeAudiences(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := newTestSession(singleQuestionQuiz(), clock, &manualTimers{})

	hostCh, cancelHost := s.Subscribe(true)
	playerCh, cancelPlayer := s.Subscribe(false)
	defer cancelHost()
	defer cancelPlayer()

	drain(hostCh)
	drain(playerCh)

	if _, err := s.Join("Alice", ""); err != nil {
		t.Fatalf("join: %v", err)
	}

	hostEvents := drain(hostCh)
	playerEvents := drain(playerCh)

	if !hasEvent(hostEvents, domain.EventPlayerJoined) {
		t.Fatalf("host should see playerJoined, got %v", eventTypes(hostEvents))
	}
	if hasEvent(playerEvents, domain.EventPlayerJoined) {
		t.Fatalf("players must not receive host-only events, got %v", eventTypes(playerEvents))
	}
	if !hasEvent(playerEvents, domain.EventLeaderboard) {
		t.Fatalf("players should see the lobby leaderboard, got %v", eventTypes(playerEvents))
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !hasEvent(drain(playerCh), domain.EventQuestionOpened) {
		t.Fatal("players should see questionOpened")
	}
}

func drain(ch <-chan domain.Event) []domain.Event {
	var events []domain.Event
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func hasEvent(events []domain.Event, typ domain.EventType) bool {
	for _, ev := range events {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

func eventTypes(events []domain.Event) []domain.EventType {
	types := make([]domain.EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}
