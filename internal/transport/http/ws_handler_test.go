package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pinquiz-service/internal/app"
	"pinquiz-service/internal/domain"
	"pinquiz-service/internal/infra/memory"
)

func TestWebSocketGameFlow(t *testing.T) {
	archive := memory.NewResultArchive()
	service := app.NewGameService(
		memory.NewSessionStore(),
		memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute),
		memory.NewCodeRegistry(),
		archive,
		app.Settings{MinPlayers: 1},
	)
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/host", wsHandler.ServeHost)
	mux.HandleFunc("/ws/play", wsHandler.ServePlayer)
	server := httptest.NewServer(mux)
	defer server.Close()

	wsBase := "ws" + server.URL[len("http"):]

	host, _, err := websocket.DefaultDialer.Dial(wsBase+"/ws/host?quizId=quiz-1&hostId=h1", nil)
	if err != nil {
		t.Fatalf("host dial: %v", err)
	}
	defer host.Close()

	created := readUntil(t, host, "sessionCreated")
	joinCode, _ := created["joinCode"].(string)
	sessionID, _ := created["sessionId"].(string)
	if joinCode == "" || sessionID == "" {
		t.Fatalf("expected join code and session id, got %+v", created)
	}

	player, _, err := websocket.DefaultDialer.Dial(wsBase+"/ws/play?code="+joinCode+"&name=Alice", nil)
	if err != nil {
		t.Fatalf("player dial: %v", err)
	}
	defer player.Close()

	readUntil(t, player, "joined")

	if err := host.WriteJSON(map[string]any{"type": "start"}); err != nil {
		t.Fatalf("start: %v", err)
	}

	opened := readUntil(t, player, "questionOpened")
	question, _ := opened["question"].(map[string]any)
	options, _ := question["options"].([]any)
	if len(options) != 2 {
		t.Fatalf("expected 2 options, got %+v", question)
	}
	for _, raw := range options {
		opt := raw.(map[string]any)
		if _, leaked := opt["correct"]; leaked {
			t.Fatalf("correctness flag leaked to players: %+v", opt)
		}
	}

	if err := player.WriteJSON(map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionId": "q1", "optionId": "o2"},
	}); err != nil {
		t.Fatalf("answer: %v", err)
	}

	ack := readUntil(t, player, "answerResult")
	if correct, _ := ack["correct"].(bool); !correct {
		t.Fatalf("expected correct ack, got %+v", ack)
	}
	if awarded, _ := ack["awarded"].(float64); awarded <= 0 {
		t.Fatalf("expected points awarded, got %+v", ack)
	}

	// Sole player answered, so the question locked early; reveal reaches everyone.
	locked := readUntil(t, player, "questionLocked")
	if locked["correctOptionId"] != "o2" {
		t.Fatalf("expected revealed answer, got %+v", locked)
	}

	if err := host.WriteJSON(map[string]any{"type": "next"}); err != nil {
		t.Fatalf("next: %v", err)
	}
	final := readUntil(t, player, "sessionFinished")
	if final["final"] == nil {
		t.Fatalf("expected final leaderboard, got %+v", final)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := archive.Result(sessionID); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("finished session was not persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPlayerRejectedWithoutParams(t *testing.T) {
	service := app.NewGameService(
		memory.NewSessionStore(),
		memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute),
		memory.NewCodeRegistry(),
		memory.NewResultArchive(),
		app.Settings{},
	)
	wsHandler := NewWSHandler(service)

	server := httptest.NewServer(http.HandlerFunc(wsHandler.ServePlayer))
	defer server.Close()

	resp, err := http.Get(server.URL + "?code=ABC234")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// readUntil reads frames until one of the wanted type arrives, returning its payload.
func readUntil(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg.Payload
		}
		if msg.Type == "error" {
			t.Fatalf("unexpected error frame while waiting for %s: %+v", want, msg.Payload)
		}
	}
	t.Fatalf("did not receive %s", want)
	return nil
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Flow test",
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is 2 + 2?",
					Type: domain.QuestionSingleChoice,
					Options: []domain.AnswerOption{
						{ID: "o1", Text: "3", SortOrder: 1},
						{ID: "o2", Text: "4", Correct: true, SortOrder: 2},
					},
					TimeLimit: 30 * time.Second,
					Points:    1000,
					SortOrder: 1,
				},
			},
		},
	}
}
