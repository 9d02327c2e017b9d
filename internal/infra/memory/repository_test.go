package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizmaster-service/internal/domain"
)

func TestRepositorySessionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	session := domain.QuizSession{
		ID:                   "s1",
		QuizID:               "quiz-1",
		StartedAt:            time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CurrentQuestionIndex: -1,
		Status:               domain.StatusWaiting,
	}

	if _, err := repo.UpdateSession(ctx, session); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update of missing session: expected not found, got %v", err)
	}
	if _, err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.CreateSession(ctx, session); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("duplicate create: expected validation error, got %v", err)
	}

	session.Status = domain.StatusActive
	session.Results = append(session.Results, domain.ParticipantResult{ParticipantID: "p", QuestionID: "q1", Score: 120})
	if _, err := repo.UpdateSession(ctx, session); err != nil {
		t.Fatalf("update: %v", err)
	}
	session.Results[0].Score = 0

	got, err := repo.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusActive || got.Results[0].Score != 120 {
		t.Fatalf("unexpected stored session %+v", got)
	}

	list, _ := repo.ListSessions(ctx)
	if len(list) != 1 {
		t.Fatalf("expected 1 session, got %d", len(list))
	}

	if err := repo.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetSession(ctx, "s1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestRepositoryListsQuizzesByCreation(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		_, _ = repo.CreateQuiz(ctx, domain.Quiz{ID: id, Title: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	list, err := repo.ListQuizzes(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list[0].ID != "c" || list[1].ID != "a" || list[2].ID != "b" {
		t.Fatalf("unexpected order %s %s %s", list[0].ID, list[1].ID, list[2].ID)
	}
	if err := repo.DeleteQuiz(ctx, "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}
