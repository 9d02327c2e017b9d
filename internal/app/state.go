package app

import (
	"sort"
	"sync"

	"quizmaster-service/internal/domain"
)

// ChangeKind names what a Change carries.
type ChangeKind string

const (
	ChangeQuiz           ChangeKind = "quiz"
	ChangeQuizDeleted    ChangeKind = "quizDeleted"
	ChangeSession        ChangeKind = "session"
	ChangeSessionDeleted ChangeKind = "sessionDeleted"
)

// Change is delivered to State subscribers after an action is applied.
type Change struct {
	Kind      ChangeKind
	QuizID    string
	SessionID string
	Quiz      *domain.Quiz
	Session   *domain.QuizSession
}

// Action is a typed update of the State container.
type Action interface {
	apply(st *State) []Change
}

// QuizzesLoaded replaces the quiz cache with a repository listing.
type QuizzesLoaded struct{ Quizzes []domain.Quiz }

// QuizSaved stores a repository-confirmed quiz.
type QuizSaved struct{ Quiz domain.Quiz }

// QuizDeleted drops a quiz.
type QuizDeleted struct{ ID string }

// SessionsLoaded replaces the session cache with a repository listing.
type SessionsLoaded struct{ Sessions []domain.QuizSession }

// SessionSaved stores a repository-confirmed session.
type SessionSaved struct{ Session domain.QuizSession }

// SessionDeleted drops a session.
type SessionDeleted struct{ ID string }

// State is the local view of quizzes and sessions held by one observer. It is a cache:
// every entry comes from a repository response, never from an unconfirmed local edit.
type State struct {
	mu          sync.RWMutex
	quizzes     map[string]domain.Quiz
	sessions    map[string]domain.QuizSession
	subscribers map[chan Change]struct{}
}

func NewState() *State {
	return &State{
		quizzes:     make(map[string]domain.Quiz),
		sessions:    make(map[string]domain.QuizSession),
		subscribers: make(map[chan Change]struct{}),
	}
}

// Dispatch applies an action and notifies subscribers.
func (st *State) Dispatch(action Action) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, change := range action.apply(st) {
		st.broadcastLocked(change)
	}
}

func (st *State) Quiz(id string) (domain.Quiz, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	q, ok := st.quizzes[id]
	return q.Clone(), ok
}

func (st *State) Session(id string) (domain.QuizSession, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s.Clone(), ok
}

// Quizzes returns cached quizzes ordered by creation time.
func (st *State) Quizzes() []domain.Quiz {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(st.quizzes))
	for _, q := range st.quizzes {
		out = append(out, q.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Sessions returns cached sessions ordered by start time.
func (st *State) Sessions() []domain.QuizSession {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]domain.QuizSession, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Subscribe returns a channel of changes. The caller must invoke the returned cancel
// function to avoid leaks.
func (st *State) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 16)

	st.mu.Lock()
	st.subscribers[ch] = struct{}{}
	st.mu.Unlock()

	cancel := func() {
		st.mu.Lock()
		if _, ok := st.subscribers[ch]; ok {
			delete(st.subscribers, ch)
			close(ch)
		}
		st.mu.Unlock()
	}
	return ch, cancel
}

func (st *State) broadcastLocked(change Change) {
	for ch := range st.subscribers {
		select {
		case ch <- change:
		default:
			// slow reader: drop its oldest pending change to make room
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- change:
			default:
			}
		}
	}
}

func (a QuizzesLoaded) apply(st *State) []Change {
	st.quizzes = make(map[string]domain.Quiz, len(a.Quizzes))
	changes := make([]Change, 0, len(a.Quizzes))
	for _, q := range a.Quizzes {
		st.quizzes[q.ID] = q.Clone()
		quiz := q.Clone()
		changes = append(changes, Change{Kind: ChangeQuiz, QuizID: q.ID, Quiz: &quiz})
	}
	return changes
}

func (a QuizSaved) apply(st *State) []Change {
	st.quizzes[a.Quiz.ID] = a.Quiz.Clone()
	quiz := a.Quiz.Clone()
	return []Change{{Kind: ChangeQuiz, QuizID: quiz.ID, Quiz: &quiz}}
}

func (a QuizDeleted) apply(st *State) []Change {
	if _, ok := st.quizzes[a.ID]; !ok {
		return nil
	}
	delete(st.quizzes, a.ID)
	return []Change{{Kind: ChangeQuizDeleted, QuizID: a.ID}}
}

func (a SessionsLoaded) apply(st *State) []Change {
	st.sessions = make(map[string]domain.QuizSession, len(a.Sessions))
	changes := make([]Change, 0, len(a.Sessions))
	for _, s := range a.Sessions {
		st.sessions[s.ID] = s.Clone()
		session := s.Clone()
		changes = append(changes, Change{Kind: ChangeSession, SessionID: s.ID, QuizID: s.QuizID, Session: &session})
	}
	return changes
}

func (a SessionSaved) apply(st *State) []Change {
	st.sessions[a.Session.ID] = a.Session.Clone()
	session := a.Session.Clone()
	return []Change{{Kind: ChangeSession, SessionID: session.ID, QuizID: session.QuizID, Session: &session}}
}

func (a SessionDeleted) apply(st *State) []Change {
	if _, ok := st.sessions[a.ID]; !ok {
		return nil
	}
	delete(st.sessions, a.ID)
	return []Change{{Kind: ChangeSessionDeleted, SessionID: a.ID}}
}
