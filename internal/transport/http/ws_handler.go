package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"quizmaster-service/internal/app"
)

// WSHandler streams a session to a watcher and accepts play messages from it.
type WSHandler struct {
	service  *app.QuizService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
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
	Answer     string `json:"answer"`
	TimeSpent  int    `json:"timeSpent"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades /ws?sessionId=&participantId= and sends the session on connect and on
// every later change of it. Inbound messages: answer, timeUp, end.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	participantID := r.URL.Query().Get("participantId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	// subscribe before reading so no change between the read and the upgrade is lost
	changes, cancel := h.service.State().Subscribe()
	defer cancel()

	session, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	changesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write failed", "session", sessionID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(changesDone)
		for {
			select {
			case change, ok := <-changes:
				if !ok {
					return
				}
				if change.SessionID != sessionID {
					continue
				}
				msg := outboundMessage{Type: "session", Payload: change.Session}
				if change.Kind == app.ChangeSessionDeleted {
					msg = outboundMessage{Type: "sessionDeleted", Payload: map[string]string{"sessionId": sessionID}}
				}
				select {
				case send <- msg:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage{Type: "session", Payload: session}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		msg, ok := h.handle(r, sessionID, participantID, inbound)
		if !ok {
			continue
		}
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	close(closeSignals)
	<-changesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(r *http.Request, sessionID, participantID string, inbound inboundMessage) (outboundMessage, bool) {
	ctx := r.Context()
	switch inbound.Type {
	case "answer", "timeUp":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid answer payload"), true
		}
		var (
			out app.AnswerOutcome
			err error
		)
		if inbound.Type == "answer" {
			out, err = h.service.SubmitAnswer(ctx, sessionID, participantID, payload.QuestionID, payload.Answer, payload.TimeSpent)
		} else {
			out, err = h.service.TimeUp(ctx, sessionID, participantID, payload.QuestionID)
		}
		if err != nil {
			return errorMessage(err.Error()), true
		}
		return outboundMessage{Type: "answerResult", Payload: out.Result}, true
	case "end":
		if _, err := h.service.EndSession(ctx, sessionID); err != nil {
			return errorMessage(err.Error()), true
		}
		return outboundMessage{}, false
	default:
		return errorMessage("unsupported message type"), true
	}
}

func errorMessage(msg string) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Message: msg}}
}
