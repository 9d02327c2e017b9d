package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"quizmaster-service/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS quizzes (
	id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_sessions (
	id TEXT PRIMARY KEY,
	quiz_id TEXT NOT NULL,
	data TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TEXT NOT NULL
);
`

// Repository keeps quiz and session documents in a local SQLite file.
type Repository struct {
	db *sql.DB
}

func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer; concurrent connections would contend on the file lock
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return queryDocs[domain.Quiz](ctx, r.db, `SELECT data FROM quizzes ORDER BY created_at, id`)
}

func (r *Repository) GetQuiz(ctx context.Context, id string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := r.loadDoc(ctx, `SELECT data FROM quizzes WHERE id = ?`, id, &quiz)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, err
}

func (r *Repository) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	data, err := json.Marshal(quiz)
	if err != nil {
		return domain.Quiz{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO quizzes (id, data, created_at) VALUES (?, ?, ?)`,
		quiz.ID, string(data), timeKey(quiz.CreatedAt))
	if err := expectOne(res, err, domain.Invalid("quiz %q already exists", quiz.ID)); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

func (r *Repository) UpdateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	data, err := json.Marshal(quiz)
	if err != nil {
		return domain.Quiz{}, err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE quizzes SET data = ? WHERE id = ?`, string(data), quiz.ID)
	if err := expectOne(res, err, domain.ErrQuizNotFound); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

func (r *Repository) DeleteQuiz(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id = ?`, id)
	return expectOne(res, err, domain.ErrQuizNotFound)
}

func (r *Repository) ListSessions(ctx context.Context) ([]domain.QuizSession, error) {
	return queryDocs[domain.QuizSession](ctx, r.db, `SELECT data FROM quiz_sessions ORDER BY started_at, id`)
}

func (r *Repository) GetSession(ctx context.Context, id string) (domain.QuizSession, error) {
	var session domain.QuizSession
	err := r.loadDoc(ctx, `SELECT data FROM quiz_sessions WHERE id = ?`, id, &session)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return session, err
}

func (r *Repository) CreateSession(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return domain.QuizSession{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO quiz_sessions (id, quiz_id, data, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.QuizID, string(data), string(session.Status), timeKey(session.StartedAt))
	if err := expectOne(res, err, domain.Invalid("session %q already exists", session.ID)); err != nil {
		return domain.QuizSession{}, err
	}
	return session, nil
}

func (r *Repository) UpdateSession(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return domain.QuizSession{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE quiz_sessions SET data = ?, status = ? WHERE id = ?`,
		string(data), string(session.Status), session.ID)
	if err := expectOne(res, err, domain.ErrSessionNotFound); err != nil {
		return domain.QuizSession{}, err
	}
	return session, nil
}

func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM quiz_sessions WHERE id = ?`, id)
	return expectOne(res, err, domain.ErrSessionNotFound)
}

func (r *Repository) loadDoc(ctx context.Context, query, id string, dst any) error {
	var raw string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&raw); err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), dst)
}

func queryDocs[T any](ctx context.Context, db *sql.DB, query string) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var doc T
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func expectOne(res sql.Result, err error, none error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}

// timeKey renders t so that lexical order matches chronological order.
func timeKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}
