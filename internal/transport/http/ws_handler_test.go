package http

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/domain"
	"quizmaster-service/internal/infra/memory"
)

func TestWebSocketAnswerFlow(t *testing.T) {
	service, quiz := newTestService(t)
	session, err := service.StartSession(context.Background(), quiz.ID, true)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	server := httptest.NewServer(NewRouter(service, slog.Default()))
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?sessionId=" + session.ID + "&participantId=" + domain.SoloParticipantID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if typ, _ := readNext(conn, t); typ != "session" {
		t.Fatalf("expected session snapshot first, got %s", typ)
	}

	answer := map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"questionId": "q1",
			"answer":     "4",
			"timeSpent":  0,
		},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	answerSeen := false
	updateSeen := false
	for i := 0; i < 6 && !(answerSeen && updateSeen); i++ {
		typ, payload := readNext(conn, t)
		switch typ {
		case "answerResult":
			answerSeen = true
			if payload["score"] != float64(150) {
				t.Fatalf("unexpected score %v", payload["score"])
			}
		case "session":
			if results, ok := payload["results"].([]any); ok && len(results) == 1 {
				updateSeen = true
			}
		case "error":
			t.Fatalf("server error %v", payload)
		}
	}
	if !answerSeen || !updateSeen {
		t.Fatalf("expected answerResult and session update, got answerResult=%v session=%v", answerSeen, updateSeen)
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	service, _ := newTestService(t)
	server := httptest.NewServer(NewRouter(service, slog.Default()))
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?sessionId=nope"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %+v", resp)
	}
}

func readNext(conn *websocket.Conn, t *testing.T) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg.Type, msg.Payload
}

func newTestService(t *testing.T) (*app.QuizService, domain.Quiz) {
	t.Helper()
	repo := memory.NewRepository()
	service := app.NewQuizService(repo, memory.NewQuizCache(repo, time.Minute))
	quiz, err := service.CreateQuiz(context.Background(), domain.Quiz{
		Title: "Arithmetic",
		Questions: []domain.Question{
			{ID: "q1", Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4", TimeLimit: 30},
		},
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	return service, quiz
}
