package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizmaster-service/internal/domain"
)

// Repository stores quiz and session documents as JSONB rows.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := r.pool.Query(ctx, `SELECT data FROM quizzes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return scanDocs[domain.Quiz](rows)
}

func (r *Repository) GetQuiz(ctx context.Context, id string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := r.loadDoc(ctx, `SELECT data FROM quizzes WHERE id=$1`, id, &quiz)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return quiz, nil
}

func (r *Repository) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	data, err := json.Marshal(quiz)
	if err != nil {
		return domain.Quiz{}, err
	}
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO quizzes (id, data, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		quiz.ID, data, quiz.CreatedAt)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("insert quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Quiz{}, domain.Invalid("quiz %q already exists", quiz.ID)
	}
	return quiz, nil
}

func (r *Repository) UpdateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	data, err := json.Marshal(quiz)
	if err != nil {
		return domain.Quiz{}, err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE quizzes SET data=$2 WHERE id=$1`, quiz.ID, data)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("update quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (r *Repository) DeleteQuiz(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (r *Repository) ListSessions(ctx context.Context) ([]domain.QuizSession, error) {
	rows, err := r.pool.Query(ctx, `SELECT data FROM quiz_sessions ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return scanDocs[domain.QuizSession](rows)
}

func (r *Repository) GetSession(ctx context.Context, id string) (domain.QuizSession, error) {
	var session domain.QuizSession
	err := r.loadDoc(ctx, `SELECT data FROM quiz_sessions WHERE id=$1`, id, &session)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

func (r *Repository) CreateSession(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return domain.QuizSession{}, err
	}
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO quiz_sessions (id, quiz_id, data, status, started_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		session.ID, session.QuizID, data, string(session.Status), session.StartedAt)
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("insert session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.QuizSession{}, domain.Invalid("session %q already exists", session.ID)
	}
	return session, nil
}

func (r *Repository) UpdateSession(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return domain.QuizSession{}, err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_sessions SET data=$2, status=$3 WHERE id=$1`,
		session.ID, data, string(session.Status))
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quiz_sessions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *Repository) loadDoc(ctx context.Context, query, id string, dst any) error {
	var raw []byte
	if err := r.pool.QueryRow(ctx, query, id).Scan(&raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", id, err)
	}
	return nil
}

func scanDocs[T any](rows pgx.Rows) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}
