package memory

import (
	"context"
	"sort"
	"sync"

	"quizmaster-service/internal/domain"
)

// Repository is an in-memory implementation of app.QuizRepository and app.SessionRepository.
// Stored documents are deep-copied on every read and write.
type Repository struct {
	mu       sync.RWMutex
	quizzes  map[string]domain.Quiz
	sessions map[string]domain.QuizSession
}

func NewRepository() *Repository {
	return &Repository{
		quizzes:  make(map[string]domain.Quiz),
		sessions: make(map[string]domain.QuizSession),
	}
}

func (r *Repository) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(r.quizzes))
	for _, q := range r.quizzes {
		out = append(out, q.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Repository) GetQuiz(_ context.Context, id string) (domain.Quiz, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.quizzes[id]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return q.Clone(), nil
}

func (r *Repository) CreateQuiz(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quizzes[quiz.ID]; ok {
		return domain.Quiz{}, domain.Invalid("quiz %q already exists", quiz.ID)
	}
	r.quizzes[quiz.ID] = quiz.Clone()
	return quiz.Clone(), nil
}

func (r *Repository) UpdateQuiz(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quizzes[quiz.ID]; !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	r.quizzes[quiz.ID] = quiz.Clone()
	return quiz.Clone(), nil
}

func (r *Repository) DeleteQuiz(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quizzes[id]; !ok {
		return domain.ErrQuizNotFound
	}
	delete(r.quizzes, id)
	return nil
}

func (r *Repository) ListSessions(_ context.Context) ([]domain.QuizSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.QuizSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Repository) GetSession(_ context.Context, id string) (domain.QuizSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (r *Repository) CreateSession(_ context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; ok {
		return domain.QuizSession{}, domain.Invalid("session %q already exists", session.ID)
	}
	r.sessions[session.ID] = session.Clone()
	return session.Clone(), nil
}

func (r *Repository) UpdateSession(_ context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	r.sessions[session.ID] = session.Clone()
	return session.Clone(), nil
}

func (r *Repository) DeleteSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}
