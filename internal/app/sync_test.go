package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/domain"
	"quizmaster-service/internal/eventbus"
	"quizmaster-service/internal/infra/memory"
)

func TestObserversConvergeThroughBus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := memory.NewRepository()
	medium := eventbus.NewMemoryMedium()

	host := app.NewQuizService(repo, repo, app.WithIDGenerator(sequentialIDs()))
	hostBus := eventbus.New(medium)
	host.Attach(hostBus)
	if err := hostBus.Start(ctx); err != nil {
		t.Fatalf("start host bus: %v", err)
	}

	watcher := app.NewQuizService(repo, repo)
	watcherBus := eventbus.New(medium)
	detach := watcher.Attach(watcherBus)
	defer detach()
	if err := watcherBus.Start(ctx); err != nil {
		t.Fatalf("start watcher bus: %v", err)
	}
	changes, stop := watcher.State().Subscribe()
	defer stop()

	quiz := createQuiz(t, host, oneQuestionQuiz())
	session, err := host.StartSession(ctx, quiz.ID, true)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := host.SubmitAnswer(ctx, session.ID, domain.SoloParticipantID, quiz.Questions[0].ID, "B", 0); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ch := <-changes:
			if ch.Kind == app.ChangeSession && ch.Session != nil && len(ch.Session.Results) == 1 {
				if ch.Session.Results[0].Score != 150 {
					t.Fatalf("watcher saw score %d", ch.Session.Results[0].Score)
				}
				if _, ok := watcher.State().Quiz(quiz.ID); !ok {
					t.Fatalf("watcher did not refetch the quiz")
				}
				return
			}
		case <-deadline:
			t.Fatalf("watcher never observed the submission")
		}
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	service.Attach(brokenBus{})

	quiz := createQuiz(t, service, oneQuestionQuiz())
	session, err := service.StartSession(ctx, quiz.ID, true)
	if err != nil {
		t.Fatalf("start should succeed when publish fails: %v", err)
	}
	if _, ok := service.State().Session(session.ID); !ok {
		t.Fatalf("session missing from state")
	}
}

func TestQuizEventRefreshesCachedQuiz(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := memory.NewRepository()
	medium := eventbus.NewMemoryMedium()

	server := app.NewQuizService(repo, memory.NewQuizCache(repo, time.Hour))
	serverBus := eventbus.New(medium)
	server.Attach(serverBus)
	if err := serverBus.Start(ctx); err != nil {
		t.Fatalf("start server bus: %v", err)
	}

	importer := app.NewQuizService(repo, memory.NewQuizCache(repo, time.Hour))
	importerBus := eventbus.New(medium)
	importer.Attach(importerBus)

	quiz := createQuiz(t, importer, oneQuestionQuiz())
	if _, err := server.GetQuiz(ctx, quiz.ID); err != nil {
		t.Fatalf("prime server cache: %v", err)
	}
	session, err := server.StartSession(ctx, quiz.ID, true)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	changes, stop := server.State().Subscribe()
	defer stop()

	updated, err := importer.ImportQuestions(ctx, quiz.ID, []app.RawQuestion{
		{"text": "Pick Y", "options": []any{"X", "Y"}, "correctAnswer": "Y"},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	imported := updated.Questions[1].ID

	deadline := time.After(2 * time.Second)
	for refreshed := false; !refreshed; {
		select {
		case ch := <-changes:
			if ch.Kind == app.ChangeQuiz && ch.QuizID == quiz.ID && ch.Quiz != nil && len(ch.Quiz.Questions) == 2 {
				refreshed = true
			}
		case <-deadline:
			t.Fatalf("server never saw the imported question")
		}
	}

	out, err := server.SubmitAnswer(ctx, session.ID, domain.SoloParticipantID, imported, "Y", 0)
	if err != nil {
		t.Fatalf("answer imported question: %v", err)
	}
	if out.Result.Score != 150 {
		t.Fatalf("expected 150, got %d", out.Result.Score)
	}
}

func TestAnswerReloadsQuizMissingQuestion(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	server := app.NewQuizService(repo, memory.NewQuizCache(repo, time.Hour))
	editor := app.NewQuizService(repo, repo)

	quiz := createQuiz(t, editor, oneQuestionQuiz())
	session, err := server.StartSession(ctx, quiz.ID, true)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	updated, err := editor.ImportQuestions(ctx, quiz.ID, []app.RawQuestion{
		{"text": "Pick Y", "options": []any{"X", "Y"}, "correctAnswer": "Y"},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if _, err := server.SubmitAnswer(ctx, session.ID, domain.SoloParticipantID, updated.Questions[1].ID, "X", 3); err != nil {
		t.Fatalf("answer question added behind the cache: %v", err)
	}
	if _, err := server.SubmitAnswer(ctx, session.ID, domain.SoloParticipantID, "missing", "X", 3); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
}

type brokenBus struct{}

func (brokenBus) Publish(context.Context, string, any) error { return context.DeadlineExceeded }

func (brokenBus) On(string, eventbus.Handler) eventbus.Token { return 0 }

func (brokenBus) Off(eventbus.Token) {}
