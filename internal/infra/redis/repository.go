package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"quizmaster-service/internal/domain"
)

const (
	quizzesKey  = "quizmaster:quizzes"
	sessionsKey = "quizmaster:sessions"
)

// replaceIfExists keeps update-of-missing a not-found instead of an implicit create.
var replaceIfExists = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// Repository stores quiz and session documents as JSON values of two Redis hashes keyed by id.
type Repository struct {
	client *redis.Client
}

func NewRepository(client *redis.Client) *Repository {
	return &Repository{client: client}
}

func (r *Repository) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	out, err := listDocs[domain.Quiz](ctx, r.client, quizzesKey)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Repository) GetQuiz(ctx context.Context, id string) (domain.Quiz, error) {
	return getDoc[domain.Quiz](ctx, r.client, quizzesKey, id, domain.ErrQuizNotFound)
}

func (r *Repository) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	return quiz, createDoc(ctx, r.client, quizzesKey, quiz.ID, quiz)
}

func (r *Repository) UpdateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	return quiz, replaceDoc(ctx, r.client, quizzesKey, quiz.ID, quiz, domain.ErrQuizNotFound)
}

func (r *Repository) DeleteQuiz(ctx context.Context, id string) error {
	return deleteDoc(ctx, r.client, quizzesKey, id, domain.ErrQuizNotFound)
}

func (r *Repository) ListSessions(ctx context.Context) ([]domain.QuizSession, error) {
	out, err := listDocs[domain.QuizSession](ctx, r.client, sessionsKey)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Repository) GetSession(ctx context.Context, id string) (domain.QuizSession, error) {
	return getDoc[domain.QuizSession](ctx, r.client, sessionsKey, id, domain.ErrSessionNotFound)
}

func (r *Repository) CreateSession(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	return session, createDoc(ctx, r.client, sessionsKey, session.ID, session)
}

func (r *Repository) UpdateSession(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	return session, replaceDoc(ctx, r.client, sessionsKey, session.ID, session, domain.ErrSessionNotFound)
}

func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	return deleteDoc(ctx, r.client, sessionsKey, id, domain.ErrSessionNotFound)
}

func listDocs[T any](ctx context.Context, client *redis.Client, key string) ([]T, error) {
	raw, err := client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	out := make([]T, 0, len(raw))
	for id, data := range raw {
		var doc T
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", key, id, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func getDoc[T any](ctx context.Context, client *redis.Client, key, id string, notFound error) (T, error) {
	var doc T
	data, err := client.HGet(ctx, key, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return doc, notFound
	}
	if err != nil {
		return doc, fmt.Errorf("hget %s %s: %w", key, id, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode %s %s: %w", key, id, err)
	}
	return doc, nil
}

func createDoc(ctx context.Context, client *redis.Client, key, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	ok, err := client.HSetNX(ctx, key, id, data).Result()
	if err != nil {
		return fmt.Errorf("hsetnx %s %s: %w", key, id, err)
	}
	if !ok {
		return domain.Invalid("%s already exists", id)
	}
	return nil
}

func replaceDoc(ctx context.Context, client *redis.Client, key, id string, doc any, notFound error) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	n, err := replaceIfExists.Run(ctx, client, []string{key}, id, data).Int()
	if err != nil {
		return fmt.Errorf("replace %s %s: %w", key, id, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func deleteDoc(ctx context.Context, client *redis.Client, key, id string, notFound error) error {
	n, err := client.HDel(ctx, key, id).Result()
	if err != nil {
		return fmt.Errorf("hdel %s %s: %w", key, id, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
