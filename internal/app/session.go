package app

import (
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"pinquiz-service/internal/domain"
)

const maxNicknameLen = 50

// sessionSettings tunes per-session behavior; zero values fall back to
// sensible defaults (minimum one player, no auto-advance).
type sessionSettings struct {
	minPlayers  int
	autoAdvance time.Duration
}

// Session owns one live run of a quiz. Every mutation — join, submission,
// host action, timer firing — is applied under its mutex, one logical
// operation at a time. Independent sessions share nothing, so games proceed
// fully in parallel.
type Session struct {
	id       string
	joinCode string
	hostID   string
	quiz     domain.Quiz
	settings sessionSettings

	now      func() time.Time
	newID    func() string
	schedule func(time.Duration, func())

	// onFinished runs once, asynchronously, after the transition to finished.
	onFinished func(domain.SessionResult)

	mu             sync.RWMutex
	status         domain.SessionStatus
	phase          domain.Phase
	questionIdx    int
	epoch          uint64 // bumped on every phase entry; stale timers compare against it
	phaseStartedAt time.Time
	startedAt      time.Time
	finishedAt     time.Time
	players        map[string]*domain.Player
	joinOrder      []string
	answers        map[string]map[string]*domain.Answer // questionID -> playerID -> answer
	subscribers    map[chan domain.Event]bool           // channel -> receives host-only events
}

// NewSession is exported for infrastructure layers and tests that need to
// seed sessions directly.
func NewSession(id, joinCode, hostID string, quiz domain.Quiz) *Session {
	return newSession(id, joinCode, hostID, quiz, sessionSettings{})
}

func newSession(id, joinCode, hostID string, quiz domain.Quiz, settings sessionSettings) *Session {
	return newSessionWithClock(id, joinCode, hostID, quiz, settings, time.Now)
}

// newSessionWithClock allows deterministic timestamps in tests.
func newSessionWithClock(id, joinCode, hostID string, quiz domain.Quiz, settings sessionSettings, now func() time.Time) *Session {
	return &Session{
		id:       id,
		joinCode: joinCode,
		hostID:   hostID,
		quiz:     quiz,
		settings: settings,
		now:      now,
		newID:    uuid.NewString,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
		status:      domain.StatusWaiting,
		phase:       domain.PhaseLobby,
		questionIdx: -1,
		players:     make(map[string]*domain.Player),
		answers:     make(map[string]map[string]*domain.Answer),
		subscribers: make(map[chan domain.Event]bool),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// JoinCode returns the code players type to find this session.
func (s *Session) JoinCode() string { return s.joinCode }

// HostID returns the identity the session was created by.
func (s *Session) HostID() string { return s.hostID }

// QuizTitle exposes the snapshot's title for host displays.
func (s *Session) QuizTitle() string { return s.quiz.Title }

// QuestionCount exposes the snapshot's length for host displays.
func (s *Session) QuestionCount() int { return len(s.quiz.Questions) }

// Status reports the coarse lifecycle state.
func (s *Session) Status() domain.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Join registers a new player while the session is still in its lobby.
// Nicknames are compared with case-sensitive exact match, as persisted.
func (s *Session) Join(nickname, userID string) (domain.Player, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" || utf8.RuneCountInString(nickname) > maxNicknameLen {
		return domain.Player{}, domain.ErrNicknameInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case domain.StatusFinished:
		return domain.Player{}, domain.ErrSessionFinished
	case domain.StatusInProgress:
		return domain.Player{}, domain.ErrSessionStarted
	}
	for _, p := range s.players {
		if p.Nickname == nickname {
			return domain.Player{}, domain.ErrNicknameTaken
		}
	}

	now := s.now()
	player := &domain.Player{
		ID:       s.newID(),
		UserID:   userID,
		Nickname: nickname,
		JoinedAt: now,
		LastSeen: now,
	}
	s.players[player.ID] = player
	s.joinOrder = append(s.joinOrder, player.ID)

	s.emitLocked(domain.Event{Type: domain.EventPlayerJoined, HostOnly: true, Payload: domain.PlayerJoinedPayload{
		PlayerID:    player.ID,
		Nickname:    player.Nickname,
		JoinedAt:    player.JoinedAt,
		PlayerCount: len(s.players),
	}})
	s.emitLocked(domain.Event{Type: domain.EventLeaderboard, Payload: s.leaderboardLocked()})
	return *player, nil
}

// Touch refreshes a player's last-seen timestamp. Liveness is host-visible
// information only and never affects gameplay.
func (s *Session) Touch(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	player.LastSeen = s.now()
	return nil
}

// Start moves the session out of the lobby and opens the first question.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case domain.StatusFinished:
		return domain.ErrSessionFinished
	case domain.StatusInProgress:
		return domain.ErrWrongPhase
	}
	min := s.settings.minPlayers
	if min < 1 {
		min = 1
	}
	if len(s.players) < min {
		return domain.ErrNotEnoughPlayers
	}
	if len(s.quiz.Questions) == 0 {
		return domain.ErrQuizEmpty
	}

	s.status = domain.StatusInProgress
	s.startedAt = s.now()
	s.openQuestionLocked(0)
	return nil
}

// Advance is the host's "next" action from a leaderboard pause.
func (s *Session) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusFinished {
		return domain.ErrSessionFinished
	}
	if s.phase != domain.PhaseLeaderboard {
		return domain.ErrWrongPhase
	}
	s.advanceLocked()
	return nil
}

// End finishes the session early, keeping all scores earned so far.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusFinished {
		return domain.ErrSessionFinished
	}
	s.finishLocked()
	return nil
}

// Leaderboard returns a consistent snapshot without touching the write path.
func (s *Session) Leaderboard() domain.Leaderboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leaderboardLocked()
}

// Players returns the roster in join order, including last-seen timestamps
// for the host's connectivity display.
func (s *Session) Players() []domain.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roster := make([]domain.Player, 0, len(s.joinOrder))
	for _, id := range s.joinOrder {
		roster = append(roster, *s.players[id])
	}
	return roster
}

// Subscribe returns a channel receiving this session's events. Host
// subscribers additionally receive host-only events. The caller must invoke
// the returned cancel function to avoid leaks.
func (s *Session) Subscribe(host bool) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 16)

	s.mu.Lock()
	s.subscribers[ch] = host
	initial := domain.Event{Type: domain.EventSessionState, Payload: s.statePayloadLocked()}
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) currentQuestionLocked() *domain.Question {
	return &s.quiz.Questions[s.questionIdx]
}

func (s *Session) openQuestionLocked(idx int) {
	s.questionIdx = idx
	s.phase = domain.PhaseQuestionOpen
	s.epoch++
	s.phaseStartedAt = s.now()

	q := s.currentQuestionLocked()
	if s.answers[q.ID] == nil {
		s.answers[q.ID] = make(map[string]*domain.Answer)
	}

	s.emitLocked(domain.Event{Type: domain.EventSessionState, Payload: s.statePayloadLocked()})
	s.emitLocked(domain.Event{Type: domain.EventQuestionOpened, Payload: domain.QuestionOpenedPayload{
		Index:       idx,
		Total:       len(s.quiz.Questions),
		Question:    q.View(),
		TimeLimitMs: q.TimeLimit.Milliseconds(),
		StartedAt:   s.phaseStartedAt,
	}})

	if q.TimeLimit > 0 {
		epoch := s.epoch
		s.schedule(q.TimeLimit, func() { s.timerLock(epoch) })
	}
}

// timerLock fires when a question's countdown expires. The epoch check
// discards timers scheduled for a phase the session has already left.
func (s *Session) timerLock(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch || s.phase != domain.PhaseQuestionOpen {
		return
	}
	s.lockQuestionLocked()
}

func (s *Session) lockQuestionLocked() {
	q := s.currentQuestionLocked()
	s.phase = domain.PhaseQuestionLocked
	s.epoch++

	// Scoring happens eagerly on submit; this pass only repairs a correct
	// answer that somehow missed its award.
	for _, ans := range s.answers[q.ID] {
		if ans.Correct && ans.Awarded == 0 {
			ans.Awarded = Score(true, ans.Elapsed, q.TimeLimit, q.Points)
			s.players[ans.PlayerID].Score += ans.Awarded
		}
	}

	s.emitLocked(domain.Event{Type: domain.EventSessionState, Payload: s.statePayloadLocked()})
	s.emitLocked(domain.Event{Type: domain.EventQuestionLocked, Payload: domain.QuestionLockedPayload{
		QuestionID:      q.ID,
		CorrectOptionID: correctOptionID(*q),
		Answered:        len(s.answers[q.ID]),
	}})

	s.showLeaderboardLocked()
}

func (s *Session) showLeaderboardLocked() {
	s.phase = domain.PhaseLeaderboard
	s.epoch++

	s.emitLocked(domain.Event{Type: domain.EventSessionState, Payload: s.statePayloadLocked()})
	s.emitLocked(domain.Event{Type: domain.EventLeaderboard, Payload: s.leaderboardLocked()})

	if s.settings.autoAdvance > 0 {
		epoch := s.epoch
		s.schedule(s.settings.autoAdvance, func() { s.timerAdvance(epoch) })
	}
}

// timerAdvance fires the auto-advance countdown; a manual host action that
// advanced first leaves a stale epoch behind and the firing is discarded.
func (s *Session) timerAdvance(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch || s.phase != domain.PhaseLeaderboard {
		return
	}
	s.advanceLocked()
}

func (s *Session) advanceLocked() {
	if s.questionIdx+1 < len(s.quiz.Questions) {
		s.openQuestionLocked(s.questionIdx + 1)
		return
	}
	s.finishLocked()
}

func (s *Session) finishLocked() {
	s.status = domain.StatusFinished
	s.phase = domain.PhaseFinished
	s.epoch++
	s.finishedAt = s.now()

	s.emitLocked(domain.Event{Type: domain.EventSessionState, Payload: s.statePayloadLocked()})
	s.emitLocked(domain.Event{Type: domain.EventSessionFinished, Payload: domain.SessionFinishedPayload{
		Final: s.leaderboardLocked(),
	}})

	if s.onFinished != nil {
		go s.onFinished(s.resultLocked())
	}
}

func (s *Session) statePayloadLocked() domain.SessionStatePayload {
	return domain.SessionStatePayload{
		Status:        s.status,
		Phase:         s.phase,
		QuestionIndex: s.questionIdx,
	}
}

func (s *Session) leaderboardLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(s.players))
	for _, player := range s.players {
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID: player.ID,
			Nickname: player.Nickname,
			Score:    player.Score,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		// Tie-break by who joined earlier, then nickname, so the order is stable.
		pi := s.players[entries[i].PlayerID]
		pj := s.players[entries[j].PlayerID]
		if !pi.JoinedAt.Equal(pj.JoinedAt) {
			return pi.JoinedAt.Before(pj.JoinedAt)
		}
		return entries[i].Nickname < entries[j].Nickname
	})

	return domain.Leaderboard{
		SessionID: s.id,
		Entries:   entries,
		UpdatedAt: s.now(),
	}
}

func (s *Session) resultLocked() domain.SessionResult {
	players := make([]domain.Player, 0, len(s.joinOrder))
	for _, id := range s.joinOrder {
		players = append(players, *s.players[id])
	}
	var answers []domain.Answer
	for _, q := range s.quiz.Questions {
		for _, id := range s.joinOrder {
			if ans, ok := s.answers[q.ID][id]; ok {
				answers = append(answers, *ans)
			}
		}
	}
	return domain.SessionResult{
		SessionID:  s.id,
		QuizID:     s.quiz.ID,
		HostID:     s.hostID,
		JoinCode:   s.joinCode,
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
		Players:    players,
		Answers:    answers,
	}
}

func (s *Session) emitLocked(ev domain.Event) {
	for ch, host := range s.subscribers {
		if ev.HostOnly && !host {
			continue
		}
		select {
		case ch <- ev:
		default:
			// Drop the oldest pending event so a slow consumer never blocks
			// the session's write path.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func correctOptionID(q domain.Question) string {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt.ID
		}
	}
	return ""
}
