package domain

import "time"

// EventType tags outbound session events.
type EventType string

const (
	EventSessionCreated  EventType = "sessionCreated"
	EventPlayerJoined    EventType = "playerJoined"
	EventSessionState    EventType = "sessionState"
	EventQuestionOpened  EventType = "questionOpened"
	EventQuestionLocked  EventType = "questionLocked"
	EventLeaderboard     EventType = "leaderboard"
	EventSessionFinished EventType = "sessionFinished"
)

// Event is one outbound notification produced after an applied operation.
// HostOnly events are delivered only to host subscribers.
type Event struct {
	Type     EventType `json:"type"`
	HostOnly bool      `json:"-"`
	Payload  any       `json:"payload"`
}

// SessionCreatedPayload announces a fresh lobby to its host.
type SessionCreatedPayload struct {
	SessionID     string `json:"sessionId"`
	JoinCode      string `json:"joinCode"`
	QuizTitle     string `json:"quizTitle"`
	QuestionCount int    `json:"questionCount"`
}

// PlayerJoinedPayload tells the host who just entered the lobby.
type PlayerJoinedPayload struct {
	PlayerID    string    `json:"playerId"`
	Nickname    string    `json:"nickname"`
	JoinedAt    time.Time `json:"joinedAt"`
	PlayerCount int       `json:"playerCount"`
}

// SessionStatePayload describes the public state after a transition.
type SessionStatePayload struct {
	Status        SessionStatus `json:"status"`
	Phase         Phase         `json:"phase"`
	QuestionIndex int           `json:"questionIndex"`
}

// OptionView is an answer option with its correctness flag stripped.
type OptionView struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	SortOrder int    `json:"sortOrder"`
}

// QuestionView is the player-safe projection of a question.
type QuestionView struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []OptionView `json:"options"`
}

// QuestionOpenedPayload starts a question round.
type QuestionOpenedPayload struct {
	Index       int          `json:"index"`
	Total       int          `json:"total"`
	Question    QuestionView `json:"question"`
	TimeLimitMs int64        `json:"timeLimitMs"`
	StartedAt   time.Time    `json:"startedAt"`
}

// QuestionLockedPayload reveals the answer once the round closes.
type QuestionLockedPayload struct {
	QuestionID      string `json:"questionId"`
	CorrectOptionID string `json:"correctOptionId"`
	Answered        int    `json:"answered"`
}

// SessionFinishedPayload carries the final standings.
type SessionFinishedPayload struct {
	Final Leaderboard `json:"final"`
}

// View strips correctness flags so a question can be shown to players.
func (q Question) View() QuestionView {
	options := make([]OptionView, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, OptionView{ID: opt.ID, Text: opt.Text, SortOrder: opt.SortOrder})
	}
	return QuestionView{ID: q.ID, Text: q.Text, Type: q.Type, Options: options}
}
