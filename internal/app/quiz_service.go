package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizmaster-service/internal/domain"
	"quizmaster-service/internal/eventbus"
)

// SessionRepository is the durable owner of session documents. Writes replace the whole document.
type SessionRepository interface {
	ListSessions(ctx context.Context) ([]domain.QuizSession, error)
	GetSession(ctx context.Context, id string) (domain.QuizSession, error)
	CreateSession(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error)
	UpdateSession(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error)
	DeleteSession(ctx context.Context, id string) error
}

// QuizRepository is the durable owner of quiz documents.
type QuizRepository interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	GetQuiz(ctx context.Context, id string) (domain.Quiz, error)
	CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	UpdateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	DeleteQuiz(ctx context.Context, id string) error
}

// quizInvalidator is implemented by quiz stores that serve reads from a cache.
type quizInvalidator interface {
	Invalidate(id string)
}

// EventBus is the notify channel shared with other observers.
type EventBus interface {
	Publish(ctx context.Context, eventName string, payload any) error
	On(eventName string, handler eventbus.Handler) eventbus.Token
	Off(token eventbus.Token)
}

// AnswerOutcome is the result of a submission together with the persisted session.
type AnswerOutcome struct {
	Session domain.QuizSession       `json:"session"`
	Result  domain.ParticipantResult `json:"result"`
}

// QuizService contains the quiz and session use cases. It is the only writer of session
// results, cursor and status.
type QuizService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	state    *State
	locks    *keyedMutex
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger

	busMu sync.RWMutex
	bus   EventBus
	subs  []eventbus.Token
}

type Option func(*QuizService)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *QuizService) { s.newID = newID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *QuizService) { s.logger = logger }
}

func NewQuizService(store SessionRepository, quizzes QuizRepository, opts ...Option) *QuizService {
	s := &QuizService{
		sessions: store,
		quizzes:  quizzes,
		state:    NewState(),
		locks:    newKeyedMutex(),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State exposes the local cache for observers.
func (s *QuizService) State() *State { return s.state }

// Load fetches quizzes and sessions from the repositories into State.
func (s *QuizService) Load(ctx context.Context) error {
	if _, err := s.ListQuizzes(ctx); err != nil {
		return err
	}
	_, err := s.ListSessions(ctx)
	return err
}

func (s *QuizService) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	quizzes, err := s.quizzes.ListQuizzes(ctx)
	if err != nil {
		return nil, domain.WrapRepository("list quizzes", err)
	}
	s.state.Dispatch(QuizzesLoaded{Quizzes: quizzes})
	return quizzes, nil
}

func (s *QuizService) GetQuiz(ctx context.Context, id string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, id)
	if err != nil {
		return domain.Quiz{}, domain.WrapRepository("get quiz", err)
	}
	return quiz, nil
}

// CreateQuiz assigns an id and creation time, fills defaults and stores the quiz.
func (s *QuizService) CreateQuiz(ctx context.Context, draft domain.Quiz) (domain.Quiz, error) {
	quiz := draft.Clone()
	quiz.ID = s.newID()
	quiz.CreatedAt = s.now().UTC()
	s.applyQuizDefaults(&quiz)
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, err
	}

	saved, err := s.quizzes.CreateQuiz(ctx, quiz)
	if err != nil {
		return domain.Quiz{}, domain.WrapRepository("create quiz", err)
	}
	s.state.Dispatch(QuizSaved{Quiz: saved})
	s.notify(ctx, domain.EventQuizSaved, domain.QuizEvent{QuizID: saved.ID})
	return saved, nil
}

// UpdateQuiz replaces a stored quiz with the complete document.
func (s *QuizService) UpdateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	if quiz.ID == "" {
		return domain.Quiz{}, domain.Invalid("quiz id is required")
	}
	quiz = quiz.Clone()
	s.applyQuizDefaults(&quiz)
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, err
	}

	unlock := s.locks.lock("quiz:" + quiz.ID)
	defer unlock()

	saved, err := s.quizzes.UpdateQuiz(ctx, quiz)
	if err != nil {
		return domain.Quiz{}, domain.WrapRepository("update quiz", err)
	}
	s.state.Dispatch(QuizSaved{Quiz: saved})
	s.notify(ctx, domain.EventQuizSaved, domain.QuizEvent{QuizID: saved.ID})
	return saved, nil
}

func (s *QuizService) DeleteQuiz(ctx context.Context, id string) error {
	unlock := s.locks.lock("quiz:" + id)
	defer unlock()

	if err := s.quizzes.DeleteQuiz(ctx, id); err != nil {
		return domain.WrapRepository("delete quiz", err)
	}
	s.state.Dispatch(QuizDeleted{ID: id})
	s.notify(ctx, domain.EventQuizDeleted, domain.QuizEvent{QuizID: id})
	return nil
}

// ImportQuestions appends a batch of raw questions to a quiz. The batch is rejected as a
// whole on the first invalid item and the stored quiz is left untouched.
func (s *QuizService) ImportQuestions(ctx context.Context, quizID string, raw []RawQuestion) (domain.Quiz, error) {
	if len(raw) == 0 {
		return domain.Quiz{}, domain.Invalid("import batch is empty")
	}
	unlock := s.locks.lock("quiz:" + quizID)
	defer unlock()

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, domain.WrapRepository("get quiz", err)
	}
	imported, err := ParseQuestions(raw, quiz, s.newID)
	if err != nil {
		return domain.Quiz{}, err
	}

	updated := quiz.Clone()
	updated.Questions = append(updated.Questions, imported...)
	if err := updated.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	saved, err := s.quizzes.UpdateQuiz(ctx, updated)
	if err != nil {
		return domain.Quiz{}, domain.WrapRepository("update quiz", err)
	}
	s.state.Dispatch(QuizSaved{Quiz: saved})
	s.notify(ctx, domain.EventQuizSaved, domain.QuizEvent{QuizID: saved.ID})
	s.logger.Info("questions imported", "quiz", quizID, "count", len(imported))
	return saved, nil
}

func (s *QuizService) ListSessions(ctx context.Context) ([]domain.QuizSession, error) {
	sessions, err := s.sessions.ListSessions(ctx)
	if err != nil {
		return nil, domain.WrapRepository("list sessions", err)
	}
	s.state.Dispatch(SessionsLoaded{Sessions: sessions})
	return sessions, nil
}

// GetSession reads the authoritative session and reconciles the local cache with it.
func (s *QuizService) GetSession(ctx context.Context, id string) (domain.QuizSession, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.state.Dispatch(SessionDeleted{ID: id})
		}
		return domain.QuizSession{}, domain.WrapRepository("get session", err)
	}
	s.state.Dispatch(SessionSaved{Session: session})
	return session, nil
}

// StartSession creates a waiting session for a quiz that has at least one question.
func (s *QuizService) StartSession(ctx context.Context, quizID string, isSolo bool) (domain.QuizSession, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizSession{}, domain.WrapRepository("get quiz", err)
	}
	session, err := NewSession(quiz, isSolo, s.newID(), s.now().UTC())
	if err != nil {
		return domain.QuizSession{}, err
	}
	saved, err := s.sessions.CreateSession(ctx, session)
	if err != nil {
		return domain.QuizSession{}, domain.WrapRepository("create session", err)
	}
	s.state.Dispatch(SessionSaved{Session: saved})
	s.notify(ctx, domain.EventQuizStart, domain.SessionEvent{SessionID: saved.ID})
	s.logger.Info("session started", "session", saved.ID, "quiz", quizID, "solo", isSolo)
	return saved, nil
}

// SubmitAnswer scores and records an answer. Repeating a submission for the same
// participant and question replaces the earlier result.
func (s *QuizService) SubmitAnswer(ctx context.Context, sessionID, participantID, questionID, answer string, timeSpent int) (AnswerOutcome, error) {
	return s.recordAnswer(ctx, sessionID, participantID, questionID, func(domain.Question) (string, int) {
		return answer, timeSpent
	})
}

// TimeUp records an expired question window: empty answer, no score, full time spent.
func (s *QuizService) TimeUp(ctx context.Context, sessionID, participantID, questionID string) (AnswerOutcome, error) {
	return s.recordAnswer(ctx, sessionID, participantID, questionID, func(q domain.Question) (string, int) {
		return "", q.TimeLimit
	})
}

func (s *QuizService) recordAnswer(ctx context.Context, sessionID, participantID, questionID string, build func(domain.Question) (string, int)) (AnswerOutcome, error) {
	var result domain.ParticipantResult
	saved, err := s.mutateSession(ctx, sessionID, func(session domain.QuizSession) (domain.QuizSession, error) {
		if session.IsCompleted() {
			return session, domain.ErrSessionClosed
		}
		quiz, err := s.quizWithQuestion(ctx, session.QuizID, questionID)
		if err != nil {
			return session, err
		}
		question, _ := quiz.Question(questionID)
		answer, timeSpent := build(question)
		next, r, err := ApplyAnswer(session, quiz, Submission{
			ParticipantID: participantID,
			QuestionID:    questionID,
			Answer:        answer,
			TimeSpent:     timeSpent,
		}, s.now().UTC())
		result = r
		return next, err
	})
	if err != nil {
		return AnswerOutcome{}, err
	}
	s.notify(ctx, domain.EventAnswerSubmit, domain.SessionEvent{SessionID: sessionID, ParticipantID: participantID, QuestionID: questionID})
	return AnswerOutcome{Session: saved, Result: result}, nil
}

// quizWithQuestion loads a quiz and, when a cached copy lacks questionID, drops the cached
// entry and reads it again.
func (s *QuizService) quizWithQuestion(ctx context.Context, quizID, questionID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, domain.WrapRepository("get quiz", err)
	}
	if _, ok := quiz.Question(questionID); ok {
		return quiz, nil
	}
	inv, ok := s.quizzes.(quizInvalidator)
	if !ok {
		return quiz, nil
	}
	inv.Invalidate(quizID)
	quiz, err = s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, domain.WrapRepository("get quiz", err)
	}
	return quiz, nil
}

// EndSession completes the session. Ending a completed session is a benign no-op that
// returns the stored document with its original endedAt.
func (s *QuizService) EndSession(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	changed := false
	saved, err := s.mutateSession(ctx, sessionID, func(session domain.QuizSession) (domain.QuizSession, error) {
		next, ok := CloseSession(session, s.now().UTC())
		if !ok {
			return session, errNoChange
		}
		changed = true
		return next, nil
	})
	if err != nil {
		return domain.QuizSession{}, err
	}
	if changed {
		s.notify(ctx, domain.EventQuizEnd, domain.SessionEvent{SessionID: sessionID})
		s.logger.Info("session ended", "session", sessionID, "results", len(saved.Results))
	}
	return saved, nil
}

// JoinRoom adds a named participant with a fresh id.
func (s *QuizService) JoinRoom(ctx context.Context, sessionID, participantName string) (domain.Participant, error) {
	var participant domain.Participant
	_, err := s.mutateSession(ctx, sessionID, func(session domain.QuizSession) (domain.QuizSession, error) {
		next, p, err := AddParticipant(session, s.newID(), participantName, s.now().UTC())
		participant = p
		return next, err
	})
	if err != nil {
		return domain.Participant{}, err
	}
	s.notify(ctx, domain.EventParticipantJoin, domain.SessionEvent{SessionID: sessionID, ParticipantID: participant.ID})
	return participant, nil
}

// LeaveRoom removes a participant from the roster. Their results are kept.
func (s *QuizService) LeaveRoom(ctx context.Context, sessionID, participantID string) error {
	_, err := s.mutateSession(ctx, sessionID, func(session domain.QuizSession) (domain.QuizSession, error) {
		return RemoveParticipant(session, participantID)
	})
	if err != nil {
		return err
	}
	s.notify(ctx, domain.EventRoomLeave, domain.SessionEvent{SessionID: sessionID, ParticipantID: participantID})
	return nil
}

// DeleteSession removes a session and all of its results.
func (s *QuizService) DeleteSession(ctx context.Context, sessionID string) error {
	unlock := s.locks.lock("session:" + sessionID)
	defer unlock()

	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return domain.WrapRepository("delete session", err)
	}
	s.state.Dispatch(SessionDeleted{ID: sessionID})
	s.notify(ctx, domain.EventQuizEnd, domain.SessionEvent{SessionID: sessionID})
	return nil
}

// Summary reads the session and quiz and summarizes results, optionally for one participant.
func (s *QuizService) Summary(ctx context.Context, sessionID, participantID string) (Summary, error) {
	session, quiz, err := s.sessionWithQuiz(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(quiz, session, participantID), nil
}

func (s *QuizService) Leaderboard(ctx context.Context, sessionID string) ([]LeaderboardEntry, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return BuildLeaderboard(session), nil
}

// Export returns per-question rows resolved the same way as Summary.
func (s *QuizService) Export(ctx context.Context, sessionID, participantID string) ([]ExportRow, error) {
	session, quiz, err := s.sessionWithQuiz(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ExportRows(quiz, session, participantID), nil
}

func (s *QuizService) sessionWithQuiz(ctx context.Context, sessionID string) (domain.QuizSession, domain.Quiz, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.QuizSession{}, domain.Quiz{}, err
	}
	quiz, err := s.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return domain.QuizSession{}, domain.Quiz{}, err
	}
	return session, quiz, nil
}

var errNoChange = errors.New("no change")

// mutateSession serializes writers per session id, applies fn to the authoritative
// document and persists the full result. The local cache only sees repository responses.
func (s *QuizService) mutateSession(ctx context.Context, sessionID string, fn func(domain.QuizSession) (domain.QuizSession, error)) (domain.QuizSession, error) {
	unlock := s.locks.lock("session:" + sessionID)
	defer unlock()

	current, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return domain.QuizSession{}, domain.WrapRepository("get session", err)
	}
	next, err := fn(current.Clone())
	if errors.Is(err, errNoChange) {
		s.state.Dispatch(SessionSaved{Session: current})
		return current, nil
	}
	if err != nil {
		return domain.QuizSession{}, err
	}

	saved, err := s.sessions.UpdateSession(ctx, next)
	if err != nil {
		s.logger.Warn("session write failed", "session", sessionID, "error", err)
		return domain.QuizSession{}, domain.WrapRepository("update session", err)
	}
	s.state.Dispatch(SessionSaved{Session: saved})
	return saved, nil
}

func (s *QuizService) applyQuizDefaults(quiz *domain.Quiz) {
	if quiz.Settings.DefaultTimeLimit <= 0 {
		quiz.Settings.DefaultTimeLimit = domain.DefaultTimeLimit
	}
	if strings.TrimSpace(quiz.Category) == "" {
		quiz.Category = domain.DefaultCategory
	}
	if quiz.Questions == nil {
		quiz.Questions = []domain.Question{}
	}
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		if q.ID == "" {
			q.ID = s.newID()
		}
		if q.TimeLimit <= 0 {
			q.TimeLimit = quiz.Settings.DefaultTimeLimit
		}
		if q.Category == "" {
			q.Category = quiz.Category
		}
	}
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
