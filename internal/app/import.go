package app

import (
	"errors"
	"fmt"
	"strings"

	"quizmaster-service/internal/domain"
)

// RawQuestion is one undecoded item of an import batch, as read from JSON or YAML.
type RawQuestion map[string]any

// ParseQuestions converts an import batch into questions for quiz. It stops at the first
// invalid item and returns an *domain.ImportError naming it.
func ParseQuestions(raw []RawQuestion, quiz domain.Quiz, newID func() string) ([]domain.Question, error) {
	defaultLimit := quiz.Settings.DefaultTimeLimit
	if defaultLimit <= 0 {
		defaultLimit = domain.DefaultTimeLimit
	}
	category := quiz.Category
	if category == "" {
		category = domain.DefaultCategory
	}

	out := make([]domain.Question, 0, len(raw))
	for i, item := range raw {
		q, err := parseQuestion(item, defaultLimit, category)
		if err != nil {
			return nil, &domain.ImportError{Index: i, Reason: err.Error()}
		}
		q.ID = newID()
		out = append(out, q)
	}
	return out, nil
}

func parseQuestion(item RawQuestion, defaultLimit int, category string) (domain.Question, error) {
	text, _ := item["text"].(string)
	if strings.TrimSpace(text) == "" {
		return domain.Question{}, errors.New("text is required")
	}
	rawOptions, ok := item["options"].([]any)
	if !ok {
		return domain.Question{}, errors.New("options must be an array")
	}
	options := make([]string, 0, len(rawOptions))
	for _, o := range rawOptions {
		s, ok := o.(string)
		if !ok {
			return domain.Question{}, fmt.Errorf("option %v is not a string", o)
		}
		options = append(options, s)
	}
	correct, _ := item["correctAnswer"].(string)
	if correct == "" {
		return domain.Question{}, errors.New("correctAnswer is required")
	}

	q := domain.Question{
		Text:          text,
		Options:       options,
		CorrectAnswer: correct,
		TimeLimit:     defaultLimit,
		Category:      category,
	}
	if limit, ok := asInt(item["timeLimit"]); ok && limit > 0 {
		q.TimeLimit = limit
	}
	if c, ok := item["category"].(string); ok && c != "" {
		q.Category = c
	}
	if shuffle, ok := item["shuffleOptions"].(bool); ok {
		q.ShuffleOptions = shuffle
	}
	if err := q.Validate(); err != nil {
		return domain.Question{}, errors.New(strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": "))
	}
	return q, nil
}

// asInt accepts the numeric shapes produced by encoding/json and yaml.v3.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
