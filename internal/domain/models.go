package domain

import "time"

// QuestionType distinguishes how a question's options are structured.
type QuestionType string

const (
	// QuestionSingleChoice has two or more options, exactly one correct.
	QuestionSingleChoice QuestionType = "single_choice"
	// QuestionTrueFalse has exactly two options, one correct.
	QuestionTrueFalse QuestionType = "true_false"
)

// AnswerOption is one selectable answer for a question.
type AnswerOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Correct   bool   `json:"correct"`
	SortOrder int    `json:"sortOrder"`
}

// Question models a timed question with a configured base score.
type Question struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Type      QuestionType   `json:"type"`
	Options   []AnswerOption `json:"options"`
	TimeLimit time.Duration  `json:"timeLimit"` // zero means no countdown
	Points    int            `json:"points"`    // defaults to 1 if zero
	SortOrder int            `json:"sortOrder"`
}

// Quiz is the immutable ordered question set a session is played against.
// Sessions keep their own snapshot so later edits never reach a live game.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// SessionStatus is the coarse lifecycle of a session.
type SessionStatus string

const (
	StatusWaiting    SessionStatus = "waiting"
	StatusInProgress SessionStatus = "in_progress"
	StatusFinished   SessionStatus = "finished"
)

// Phase is the step within a session for the active question.
type Phase string

const (
	PhaseLobby          Phase = "lobby"
	PhaseQuestionOpen   Phase = "question_open"
	PhaseQuestionLocked Phase = "question_locked"
	PhaseLeaderboard    Phase = "leaderboard"
	PhaseFinished       Phase = "finished"
)

// Player is a participant joined into a session. UserID is empty for guests.
type Player struct {
	ID       string
	UserID   string
	Nickname string
	JoinedAt time.Time
	LastSeen time.Time
	Score    int
}

// Answer records one immutable submission for a (player, question) pair.
type Answer struct {
	PlayerID   string
	QuestionID string
	OptionID   string
	AnsweredAt time.Time
	Elapsed    time.Duration
	Correct    bool
	Awarded    int
}

// Submission models the answer signal from a player connection.
type Submission struct {
	QuestionID string
	OptionID   string
}

// AnswerResult summarizes a submission's outcome for the submitting player only.
type AnswerResult struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
	TotalScore int    `json:"totalScore"`
}

// LeaderboardEntry is a snapshot-friendly view of a player's standing.
type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// Leaderboard captures the ordered scoreboard for a session.
type Leaderboard struct {
	SessionID string             `json:"sessionId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// SessionResult is the record handed to storage once a session finishes.
// Its shape mirrors the quiz_sessions / quiz_session_players /
// quiz_session_answers tables.
type SessionResult struct {
	SessionID  string
	QuizID     string
	HostID     string
	JoinCode   string
	StartedAt  time.Time
	FinishedAt time.Time
	Players    []Player
	Answers    []Answer
}
