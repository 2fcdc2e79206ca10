package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizEmpty rejects creating a session over a quiz with no questions.
	ErrQuizEmpty = errors.New("quiz has no questions")
	// ErrQuizInvalid rejects quiz content violating option invariants.
	ErrQuizInvalid = errors.New("quiz content invalid")
	// ErrSessionNotFound is returned for unknown session ids or join codes.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPlayerNotFound is returned when a player acts without having joined.
	ErrPlayerNotFound = errors.New("player not found in session")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates the option does not belong to the question.
	ErrOptionNotFound = errors.New("option not found")

	// ErrNicknameInvalid rejects empty or over-long nicknames.
	ErrNicknameInvalid = errors.New("nickname must be 1-50 characters")
	// ErrNicknameTaken rejects a nickname already used in the session.
	ErrNicknameTaken = errors.New("nickname already taken")
	// ErrSessionStarted rejects joins after the session left the lobby.
	ErrSessionStarted = errors.New("session already started")

	// ErrWrongPhase rejects an action incompatible with the current phase.
	ErrWrongPhase = errors.New("action not allowed in current phase")
	// ErrDuplicateAnswer enforces first-write-wins per (player, question).
	ErrDuplicateAnswer = errors.New("answer already submitted")
	// ErrNotEnoughPlayers rejects starting below the configured minimum.
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	// ErrSessionFinished rejects any mutation of a finished session.
	ErrSessionFinished = errors.New("session already finished")

	// ErrCodeSpaceExhausted means join-code generation kept colliding.
	ErrCodeSpaceExhausted = errors.New("could not reserve a unique join code")
)
