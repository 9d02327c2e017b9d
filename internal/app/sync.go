package app

import (
	"context"
	"errors"

	"quizmaster-service/internal/domain"
	"quizmaster-service/internal/eventbus"
)

// Attach connects the service to an event bus. Writes are announced on the bus and events
// from other observers trigger a refetch of the affected document. The returned function
// detaches the handlers.
func (s *QuizService) Attach(bus EventBus) func() {
	s.busMu.Lock()
	defer s.busMu.Unlock()
	s.detachLocked()

	s.bus = bus
	for _, name := range domain.SessionEvents {
		s.subs = append(s.subs, bus.On(name, s.onSessionEvent))
	}
	s.subs = append(s.subs,
		bus.On(domain.EventQuizSaved, s.onQuizEvent),
		bus.On(domain.EventQuizDeleted, s.onQuizEvent),
	)
	return func() {
		s.busMu.Lock()
		defer s.busMu.Unlock()
		if s.bus == bus {
			s.detachLocked()
		}
	}
}

func (s *QuizService) detachLocked() {
	if s.bus == nil {
		return
	}
	for _, token := range s.subs {
		s.bus.Off(token)
	}
	s.subs = nil
	s.bus = nil
}

func (s *QuizService) notify(ctx context.Context, eventName string, payload any) {
	s.busMu.RLock()
	bus := s.bus
	s.busMu.RUnlock()
	if bus == nil {
		return
	}
	// the write is already durable; a lost notification only delays other observers
	if err := bus.Publish(ctx, eventName, payload); err != nil {
		s.logger.Warn("event publish failed", "event", eventName, "error", err)
	}
}

func (s *QuizService) onSessionEvent(ctx context.Context, rec eventbus.Record) {
	var ev domain.SessionEvent
	if err := rec.Decode(&ev); err != nil || ev.SessionID == "" {
		s.logger.Warn("malformed session event", "event", rec.EventName, "key", rec.Key)
		return
	}
	if _, err := s.GetSession(ctx, ev.SessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("session refetch failed", "session", ev.SessionID, "error", err)
	}
}

func (s *QuizService) onQuizEvent(ctx context.Context, rec eventbus.Record) {
	var ev domain.QuizEvent
	if err := rec.Decode(&ev); err != nil || ev.QuizID == "" {
		s.logger.Warn("malformed quiz event", "event", rec.EventName, "key", rec.Key)
		return
	}
	if inv, ok := s.quizzes.(quizInvalidator); ok {
		inv.Invalidate(ev.QuizID)
	}
	quiz, err := s.quizzes.GetQuiz(ctx, ev.QuizID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.state.Dispatch(QuizDeleted{ID: ev.QuizID})
	case err != nil:
		s.logger.Warn("quiz refetch failed", "quiz", ev.QuizID, "error", err)
	default:
		s.state.Dispatch(QuizSaved{Quiz: quiz})
	}
}
