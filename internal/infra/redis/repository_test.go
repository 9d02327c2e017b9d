package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizmaster-service/internal/domain"
)

func TestRepositoryQuizRoundTrip(t *testing.T) {
	mr := runMiniredis(t)
	repo := NewRepository(newClient(mr))
	ctx := context.Background()

	quiz := sampleQuiz()
	if _, err := repo.CreateQuiz(ctx, quiz); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.CreateQuiz(ctx, quiz); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("duplicate create: expected validation error, got %v", err)
	}
	if !mr.Exists(quizzesKey) {
		t.Fatalf("expected quizzes hash to exist")
	}

	got, err := repo.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != quiz.Title || got.Questions[0].CorrectAnswer != "4" {
		t.Fatalf("unexpected quiz %+v", got)
	}

	missing := sampleQuiz()
	missing.ID = "nope"
	if _, err := repo.UpdateQuiz(ctx, missing); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("update missing: expected not found, got %v", err)
	}
	if err := repo.DeleteQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetQuiz(ctx, "quiz-1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestRepositorySessionReplace(t *testing.T) {
	mr := runMiniredis(t)
	repo := NewRepository(newClient(mr))
	ctx := context.Background()

	session := domain.QuizSession{
		ID:                   "s1",
		QuizID:               "quiz-1",
		StartedAt:            time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		IsSolo:               true,
		CurrentQuestionIndex: -1,
		Status:               domain.StatusWaiting,
		Participants:         []domain.Participant{},
		Results:              []domain.ParticipantResult{},
	}
	if _, err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}

	session.Status = domain.StatusActive
	session.CurrentQuestionIndex = 0
	session.Results = append(session.Results, domain.ParticipantResult{
		ParticipantID: domain.SoloParticipantID, QuestionID: "q1", Answer: "4", IsCorrect: true, TimeSpent: 3, Score: 145,
	})
	if _, err := repo.UpdateSession(ctx, session); err != nil {
		t.Fatalf("update: %v", err)
	}

	list, err := repo.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != domain.StatusActive || list[0].Results[0].Score != 145 {
		t.Fatalf("unexpected sessions %+v", list)
	}
	if err := repo.DeleteSession(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("delete missing: expected not found, got %v", err)
	}
}

func runMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:       "quiz-1",
		Title:    "Arithmetic",
		Category: domain.DefaultCategory,
		Questions: []domain.Question{
			{
				ID:            "q1",
				Text:          "What is 2 + 2?",
				Options:       []string{"3", "4"},
				CorrectAnswer: "4",
				TimeLimit:     30,
			},
		},
	}
}
