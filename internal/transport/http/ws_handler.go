package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"pinquiz-service/internal/app"
	"pinquiz-service/internal/domain"
)

// WSHandler exposes the session engine over two websocket endpoints: one the
// host drives the game from, one players join and answer through.
type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type joinedPayload struct {
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId"`
	Nickname  string `json:"nickname"`
}

// ServeHost creates a session for the connecting host and streams its events.
// Inbound messages drive the game: start, next, end.
func (h *WSHandler) ServeHost(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	hostID := r.URL.Query().Get("hostId")
	if quizID == "" || hostID == "" {
		http.Error(w, "missing quizId or hostId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.service.CreateSession(r.Context(), quizID, hostID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	events, cancel, err := h.service.Subscribe(r.Context(), session.ID(), true)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send, finish := startConnPumps(conn, events)
	defer finish()

	send <- outboundMessage[any]{Type: string(domain.EventSessionCreated), Payload: domain.SessionCreatedPayload{
		SessionID:     session.ID(),
		JoinCode:      session.JoinCode(),
		QuizTitle:     session.QuizTitle(),
		QuestionCount: session.QuestionCount(),
	}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		var actionErr error
		switch inbound.Type {
		case "start":
			actionErr = h.service.StartSession(r.Context(), session.ID())
		case "next":
			actionErr = h.service.AdvancePhase(r.Context(), session.ID())
		case "end":
			actionErr = h.service.EndSession(r.Context(), session.ID())
		default:
			actionErr = errUnsupported
		}
		if actionErr != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: actionErr.Error()}}
		}
	}
}

// ServePlayer joins the connecting player by code and streams public events.
// Inbound messages are answers and heartbeats.
func (h *WSHandler) ServePlayer(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	nickname := r.URL.Query().Get("name")
	userID := r.URL.Query().Get("userId")
	if code == "" || nickname == "" {
		http.Error(w, "missing code or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, player, err := h.service.JoinSession(r.Context(), code, nickname, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	events, cancel, err := h.service.Subscribe(r.Context(), session.ID(), false)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send, finish := startConnPumps(conn, events)
	defer finish()

	send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{
		SessionID: session.ID(),
		PlayerID:  player.ID,
		Nickname:  player.Nickname,
	}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			result, err := h.service.SubmitAnswer(r.Context(), session.ID(), player.ID, domain.Submission{
				QuestionID: payload.QuestionID,
				OptionID:   payload.OptionID,
			})
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			// Private acknowledgment, delivered only on this connection.
			send <- outboundMessage[any]{Type: "answerResult", Payload: result}
		case "heartbeat":
			_ = h.service.Touch(r.Context(), session.ID(), player.ID)
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}
}

var errUnsupported = unsupportedError{}

type unsupportedError struct{}

func (unsupportedError) Error() string { return "unsupported message type" }

// startConnPumps wires a writer goroutine (sole writer on the connection)
// and an event-fanout goroutine. The returned finish func tears both down.
func startConnPumps(conn *websocket.Conn, events <-chan domain.Event) (chan outboundMessage[any], func()) {
	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(ev.Type), Payload: ev.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	finish := func() {
		close(closeSignals)
		<-eventsDone
		close(send)
		<-writerDone
	}
	return send, finish
}
