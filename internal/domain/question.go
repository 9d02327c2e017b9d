package domain

import "strings"

// Validate checks the question invariants: non-empty text, at least two unique non-empty
// options, a correct answer that is one of the options and a positive time limit.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return Invalid("question text is required")
	}
	if len(q.Options) < 2 {
		return Invalid("question %q needs at least 2 options", q.Text)
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return Invalid("question %q has an empty option", q.Text)
		}
		if _, dup := seen[opt]; dup {
			return Invalid("question %q has duplicate option %q", q.Text, opt)
		}
		seen[opt] = struct{}{}
	}
	if _, ok := seen[q.CorrectAnswer]; !ok {
		return Invalid("question %q: correct answer %q is not one of the options", q.Text, q.CorrectAnswer)
	}
	if q.TimeLimit <= 0 {
		return Invalid("question %q: time limit must be positive", q.Text)
	}
	return nil
}

// RenameOption replaces the option at index i. If it was the correct answer the correct
// answer follows the new text.
func (q *Question) RenameOption(i int, text string) error {
	if i < 0 || i >= len(q.Options) {
		return Invalid("option index %d out of range", i)
	}
	for j, opt := range q.Options {
		if j != i && opt == text {
			return Invalid("option %q already exists", text)
		}
	}
	old := q.Options[i]
	q.Options[i] = text
	if q.CorrectAnswer == old {
		q.CorrectAnswer = text
	}
	return nil
}

// RemoveOption drops the option at index i and clears the correct answer if it pointed at it.
func (q *Question) RemoveOption(i int) error {
	if i < 0 || i >= len(q.Options) {
		return Invalid("option index %d out of range", i)
	}
	if len(q.Options) <= 2 {
		return Invalid("a question keeps at least 2 options")
	}
	removed := q.Options[i]
	q.Options = append(q.Options[:i:i], q.Options[i+1:]...)
	if q.CorrectAnswer == removed {
		q.CorrectAnswer = ""
	}
	return nil
}

// SetCorrectAnswer points the correct answer at an existing option.
func (q *Question) SetCorrectAnswer(option string) error {
	for _, opt := range q.Options {
		if opt == option {
			q.CorrectAnswer = option
			return nil
		}
	}
	return Invalid("%q is not an option of question %q", option, q.Text)
}

// Validate checks the quiz for storage. An empty question list is allowed here; it only
// prevents starting a session.
func (q Quiz) Validate() error {
	if strings.TrimSpace(q.Title) == "" {
		return Invalid("quiz title is required")
	}
	ids := make(map[string]struct{}, len(q.Questions))
	for _, question := range q.Questions {
		if question.ID == "" {
			return Invalid("question %q has no id", question.Text)
		}
		if _, dup := ids[question.ID]; dup {
			return Invalid("duplicate question id %q", question.ID)
		}
		ids[question.ID] = struct{}{}
		if err := question.Validate(); err != nil {
			return err
		}
	}
	return nil
}
