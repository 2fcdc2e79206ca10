package app

import (
	"context"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"pinquiz-service/internal/domain"
)

// SessionRepository is the arena of live sessions, keyed by id with a
// join-code index. Implementations only hold references; sessions guard
// their own state.
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	GetByCode(joinCode string) (*Session, bool)
	Delete(sessionID string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// CodeRegistry reserves join codes so two live sessions never share one.
// A released code may be reused by a later session.
type CodeRegistry interface {
	Reserve(ctx context.Context, code string) (bool, error)
	Release(ctx context.Context, code string) error
}

// ResultStore persists a finished session's record exactly once.
type ResultStore interface {
	SaveSessionResult(ctx context.Context, result domain.SessionResult) error
}

// Settings carries the game tunables read from config.
type Settings struct {
	MinPlayers  int
	CodeLength  int
	AutoAdvance time.Duration // 0 means the host drives every advance
	SaveRetries int
}

// Join codes avoid 0/O/1/I so they survive being read out loud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	defaultCodeLength = 6
	codeAttempts      = 10
	saveBackoff       = 250 * time.Millisecond
)

// GameService is the session coordinator: it owns session creation, routes
// player and host actions to the right session, and persists results when
// sessions finish.
type GameService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	codes    CodeRegistry
	results  ResultStore
	settings Settings
	now      func() time.Time
}

func NewGameService(sessions SessionRepository, quizzes QuizRepository, codes CodeRegistry, results ResultStore, settings Settings) *GameService {
	return &GameService{
		sessions: sessions,
		quizzes:  quizzes,
		codes:    codes,
		results:  results,
		settings: settings,
		now:      time.Now,
	}
}

// CreateSession snapshots the quiz, reserves a unique join code and opens a
// lobby. The snapshot insulates the running game from later quiz edits.
func (g *GameService) CreateSession(ctx context.Context, quizID, hostID string) (*Session, error) {
	quiz, err := g.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := validateQuiz(quiz); err != nil {
		return nil, err
	}

	code, err := g.reserveCode(ctx)
	if err != nil {
		return nil, err
	}

	session := newSessionWithClock(uuid.NewString(), code, hostID, quiz, sessionSettings{
		minPlayers:  g.settings.MinPlayers,
		autoAdvance: g.settings.AutoAdvance,
	}, g.now)
	session.onFinished = g.sessionFinished
	g.sessions.Put(session)
	return session, nil
}

// JoinSession adds a player to the lobby found under joinCode. Codes are
// matched case-insensitively.
func (g *GameService) JoinSession(ctx context.Context, joinCode, nickname, userID string) (*Session, domain.Player, error) {
	session, ok := g.sessions.GetByCode(normalizeCode(joinCode))
	if !ok {
		return nil, domain.Player{}, domain.ErrSessionNotFound
	}
	player, err := session.Join(nickname, userID)
	if err != nil {
		return nil, domain.Player{}, err
	}
	return session, player, nil
}

// StartSession is the host's "start" action.
func (g *GameService) StartSession(ctx context.Context, sessionID string) error {
	session, ok := g.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.Start()
}

// AdvancePhase is the host's "next" action from a leaderboard pause.
func (g *GameService) AdvancePhase(ctx context.Context, sessionID string) error {
	session, ok := g.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.Advance()
}

// EndSession finishes a session early, keeping all scores earned so far.
func (g *GameService) EndSession(ctx context.Context, sessionID string) error {
	session, ok := g.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.End()
}

// SubmitAnswer records one answer attempt; the result is returned to the
// submitting caller only.
func (g *GameService) SubmitAnswer(ctx context.Context, sessionID, playerID string, sub domain.Submission) (domain.AnswerResult, error) {
	session, ok := g.sessions.Get(sessionID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}
	return session.Submit(playerID, sub, g.now())
}

// Touch refreshes a player's last-seen timestamp for the host's display.
func (g *GameService) Touch(ctx context.Context, sessionID, playerID string) error {
	session, ok := g.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.Touch(playerID)
}

// Leaderboard serves a read-only snapshot without entering the write path.
func (g *GameService) Leaderboard(ctx context.Context, sessionID string) (domain.Leaderboard, error) {
	session, ok := g.sessions.Get(sessionID)
	if !ok {
		return domain.Leaderboard{}, domain.ErrSessionNotFound
	}
	return session.Leaderboard(), nil
}

// Subscribe returns a channel of session events. The caller must invoke the
// returned cancel function to avoid leaks.
func (g *GameService) Subscribe(ctx context.Context, sessionID string, host bool) (<-chan domain.Event, func(), error) {
	session, ok := g.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe(host)
	return ch, cancel, nil
}

// sessionFinished persists the record with bounded retries, then frees the
// join code and drops the session from the arena. Persistence failures never
// reach live gameplay; the session is already finished when this runs.
func (g *GameService) sessionFinished(result domain.SessionResult) {
	ctx := context.Background()

	var err error
	retries := g.settings.SaveRetries
	if retries < 0 {
		retries = 0
	}
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			time.Sleep(saveBackoff * time.Duration(attempt))
		}
		if err = g.results.SaveSessionResult(ctx, result); err == nil {
			break
		}
		log.Printf("save session %s result (attempt %d/%d): %v", result.SessionID, attempt+1, retries+1, err)
	}
	if err != nil {
		log.Printf("session %s results left unsaved after %d attempts", result.SessionID, retries+1)
	}

	if err := g.codes.Release(ctx, result.JoinCode); err != nil {
		log.Printf("release join code %s: %v", result.JoinCode, err)
	}
	g.sessions.Delete(result.SessionID)
}

// reserveCode draws random codes until the registry accepts one. Codes are
// unique among non-finished sessions; finishing a session releases its code
// for reuse.
func (g *GameService) reserveCode(ctx context.Context) (string, error) {
	length := g.settings.CodeLength
	if length <= 0 {
		length = defaultCodeLength
	}
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code := randomCode(length)
		ok, err := g.codes.Reserve(ctx, code)
		if err != nil {
			return "", err
		}
		if ok {
			return code, nil
		}
	}
	return "", domain.ErrCodeSpaceExhausted
}

func randomCode(length int) string {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return b.String()
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// validateQuiz enforces the snapshot invariants: at least one question, at
// least two options each, exactly one correct option, and true/false
// questions shaped as exactly two options.
func validateQuiz(quiz domain.Quiz) error {
	if len(quiz.Questions) == 0 {
		return domain.ErrQuizEmpty
	}
	for _, q := range quiz.Questions {
		if len(q.Options) < 2 {
			return domain.ErrQuizInvalid
		}
		if q.Type == domain.QuestionTrueFalse && len(q.Options) != 2 {
			return domain.ErrQuizInvalid
		}
		correct := 0
		for _, opt := range q.Options {
			if opt.Correct {
				correct++
			}
		}
		if correct != 1 {
			return domain.ErrQuizInvalid
		}
	}
	return nil
}
