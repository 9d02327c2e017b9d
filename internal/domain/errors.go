package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input to a core operation.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference to a quiz, session, question or participant that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSessionClosed is returned when mutating a completed session.
	ErrSessionClosed = errors.New("quiz session is completed")
	// ErrRepository marks a failure of the persistence boundary.
	ErrRepository = errors.New("repository failure")
)

var (
	ErrQuizNotFound        = fmt.Errorf("quiz %w", ErrNotFound)
	ErrSessionNotFound     = fmt.Errorf("quiz session %w", ErrNotFound)
	ErrQuestionNotFound    = fmt.Errorf("question %w", ErrNotFound)
	ErrParticipantNotFound = fmt.Errorf("participant %w", ErrNotFound)
	// ErrEmptyQuiz is returned when starting a session on a quiz without questions.
	ErrEmptyQuiz = fmt.Errorf("%w: quiz has no questions", ErrValidation)
)

// Invalid builds a validation error with a description of the offending input.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ImportError reports the first invalid item of a question import batch.
type ImportError struct {
	Index  int
	Reason string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("invalid question at index %d: %s", e.Index, e.Reason)
}

func (e *ImportError) Unwrap() error { return ErrValidation }

// RepositoryError wraps a failed persistence call.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

func (e *RepositoryError) Is(target error) bool { return target == ErrRepository }

// WrapRepository tags err as a RepositoryError unless it already carries a domain meaning
// (not found, validation) that callers match on.
func WrapRepository(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrRepository) {
		return err
	}
	return &RepositoryError{Op: op, Err: err}
}
