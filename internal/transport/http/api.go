package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/domain"
)

// API exposes the quiz service over REST.
type API struct {
	service *app.QuizService
	logger  *slog.Logger
}

func NewAPI(service *app.QuizService, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{service: service, logger: logger}
}

// NewRouter builds the full HTTP surface: REST routes, the websocket endpoint and /healthz.
func NewRouter(service *app.QuizService, logger *slog.Logger) http.Handler {
	api := NewAPI(service, logger)
	ws := NewWSHandler(service, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)
	r.Route("/api", api.Routes)
	return r
}

// Routes registers the REST routes on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/quizzes", a.handleListQuizzes)
	r.Post("/quizzes", a.handleCreateQuiz)
	r.Get("/quizzes/{quizID}", a.handleGetQuiz)
	r.Put("/quizzes/{quizID}", a.handleUpdateQuiz)
	r.Delete("/quizzes/{quizID}", a.handleDeleteQuiz)
	r.Post("/quizzes/{quizID}/import", a.handleImport)

	r.Get("/sessions", a.handleListSessions)
	r.Post("/sessions", a.handleStartSession)
	r.Get("/sessions/{sessionID}", a.handleGetSession)
	r.Delete("/sessions/{sessionID}", a.handleDeleteSession)
	r.Post("/sessions/{sessionID}/join", a.handleJoin)
	r.Post("/sessions/{sessionID}/leave", a.handleLeave)
	r.Post("/sessions/{sessionID}/answers", a.handleAnswer)
	r.Post("/sessions/{sessionID}/timeup", a.handleTimeUp)
	r.Post("/sessions/{sessionID}/end", a.handleEnd)
	r.Get("/sessions/{sessionID}/summary", a.handleSummary)
	r.Get("/sessions/{sessionID}/leaderboard", a.handleLeaderboard)
	r.Get("/sessions/{sessionID}/export", a.handleExport)
}

type startSessionRequest struct {
	QuizID string `json:"quizId"`
	IsSolo bool   `json:"isSolo"`
}

type joinRequest struct {
	Name string `json:"name"`
}

type participantRequest struct {
	ParticipantID string `json:"participantId"`
}

type answerRequest struct {
	ParticipantID string `json:"participantId"`
	QuestionID    string `json:"questionId"`
	Answer        string `json:"answer"`
	TimeSpent     int    `json:"timeSpent"`
}

type errorResponse struct {
	Error string `json:"error"`
	Index *int   `json:"index,omitempty"`
}

func (a *API) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := a.service.ListQuizzes(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (a *API) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var draft domain.Quiz
	if !a.decode(w, r, &draft) {
		return
	}
	quiz, err := a.service.CreateQuiz(r.Context(), draft)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (a *API) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.service.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) handleUpdateQuiz(w http.ResponseWriter, r *http.Request) {
	var quiz domain.Quiz
	if !a.decode(w, r, &quiz) {
		return
	}
	quiz.ID = chi.URLParam(r, "quizID")
	saved, err := a.service.UpdateQuiz(r.Context(), quiz)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (a *API) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteQuiz(r.Context(), chi.URLParam(r, "quizID")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	var raw []app.RawQuestion
	if !a.decode(w, r, &raw) {
		return
	}
	quiz, err := a.service.ImportQuestions(r.Context(), chi.URLParam(r, "quizID"), raw)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.service.ListSessions(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (a *API) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !a.decode(w, r, &req) {
		return
	}
	session, err := a.service.StartSession(r.Context(), req.QuizID, req.IsSolo)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.service.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !a.decode(w, r, &req) {
		return
	}
	participant, err := a.service.JoinRoom(r.Context(), chi.URLParam(r, "sessionID"), req.Name)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, participant)
}

func (a *API) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.service.LeaveRoom(r.Context(), chi.URLParam(r, "sessionID"), req.ParticipantID); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !a.decode(w, r, &req) {
		return
	}
	out, err := a.service.SubmitAnswer(r.Context(), chi.URLParam(r, "sessionID"), req.ParticipantID, req.QuestionID, req.Answer, req.TimeSpent)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleTimeUp(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !a.decode(w, r, &req) {
		return
	}
	out, err := a.service.TimeUp(r.Context(), chi.URLParam(r, "sessionID"), req.ParticipantID, req.QuestionID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleEnd(w http.ResponseWriter, r *http.Request) {
	session, err := a.service.EndSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := a.service.Summary(r.Context(), chi.URLParam(r, "sessionID"), r.URL.Query().Get("participantId"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := a.service.Leaderboard(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	rows, err := a.service.Export(r.Context(), chi.URLParam(r, "sessionID"), r.URL.Query().Get("participantId"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	filename := fmt.Sprintf("quiz_results_%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := app.WriteCSV(w, rows); err != nil {
		a.logger.Error("write export", "error", err)
	}
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	resp := errorResponse{Error: err.Error()}
	var importErr *domain.ImportError
	if errors.As(err, &importErr) {
		idx := importErr.Index
		resp.Index = &idx
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, resp)
}

// StatusFor maps the domain error taxonomy to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRepository):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
