package domain

import (
	"errors"
	"testing"
)

func TestQuestionValidate(t *testing.T) {
	valid := Question{ID: "q1", Text: "Pick B", Options: []string{"A", "B", "C"}, CorrectAnswer: "B", TimeLimit: 30}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid question, got %v", err)
	}

	cases := map[string]Question{
		"empty text":       {Text: " ", Options: []string{"A", "B"}, CorrectAnswer: "A", TimeLimit: 10},
		"one option":       {Text: "x", Options: []string{"A"}, CorrectAnswer: "A", TimeLimit: 10},
		"duplicate option": {Text: "x", Options: []string{"A", "A"}, CorrectAnswer: "A", TimeLimit: 10},
		"dangling answer":  {Text: "x", Options: []string{"A", "B"}, CorrectAnswer: "C", TimeLimit: 10},
		"zero time limit":  {Text: "x", Options: []string{"A", "B"}, CorrectAnswer: "A"},
	}
	for name, q := range cases {
		if err := q.Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestRenameOptionRepointsCorrectAnswer(t *testing.T) {
	q := Question{Text: "x", Options: []string{"A", "B"}, CorrectAnswer: "B", TimeLimit: 10}
	if err := q.RenameOption(1, "Bee"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if q.CorrectAnswer != "Bee" {
		t.Fatalf("expected correct answer to follow rename, got %q", q.CorrectAnswer)
	}
	if err := q.RenameOption(0, "Ay"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if q.CorrectAnswer != "Bee" {
		t.Fatalf("renaming another option must not move the answer, got %q", q.CorrectAnswer)
	}
}

func TestRenameOptionRejectsDuplicate(t *testing.T) {
	q := Question{Text: "x", Options: []string{"A", "B"}, CorrectAnswer: "B", TimeLimit: 10}
	if err := q.RenameOption(0, "B"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if q.Options[0] != "A" || q.CorrectAnswer != "B" {
		t.Fatalf("rejected rename changed the question: %+v", q)
	}
	if err := q.RenameOption(1, "B"); err != nil {
		t.Fatalf("renaming an option to itself: %v", err)
	}
}

func TestRemoveOptionClearsCorrectAnswer(t *testing.T) {
	q := Question{Text: "x", Options: []string{"A", "B", "C"}, CorrectAnswer: "C", TimeLimit: 10}
	if err := q.RemoveOption(2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if q.CorrectAnswer != "" {
		t.Fatalf("expected cleared correct answer, got %q", q.CorrectAnswer)
	}
	if err := q.RemoveOption(0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected refusal below two options, got %v", err)
	}
	if err := q.SetCorrectAnswer("B"); err != nil {
		t.Fatalf("set correct: %v", err)
	}
	if err := q.SetCorrectAnswer("Z"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown option, got %v", err)
	}
}

func TestQuizValidateRejectsDuplicateQuestionIDs(t *testing.T) {
	q := Question{ID: "q1", Text: "x", Options: []string{"A", "B"}, CorrectAnswer: "A", TimeLimit: 10}
	quiz := Quiz{Title: "Quiz", Questions: []Question{q, q}}
	if err := quiz.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
	if err := (Quiz{Title: "Empty"}).Validate(); err != nil {
		t.Fatalf("empty quiz is storable, got %v", err)
	}
}

func TestRepositoryErrorMatchesTaxonomy(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapRepository("update session", cause)
	if !errors.Is(err, ErrRepository) || !errors.Is(err, cause) {
		t.Fatalf("expected repository error wrapping cause, got %v", err)
	}
	if got := WrapRepository("get quiz", ErrQuizNotFound); !errors.Is(got, ErrNotFound) || errors.Is(got, ErrRepository) {
		t.Fatalf("not found must pass through unchanged, got %v", got)
	}
	if !errors.Is(&ImportError{Index: 0, Reason: "missing text"}, ErrValidation) {
		t.Fatalf("import errors are validation errors")
	}
}

func TestSessionCloneDoesNotAlias(t *testing.T) {
	s := QuizSession{Results: []ParticipantResult{{ParticipantID: "p", QuestionID: "q"}}}
	c := s.Clone()
	c.Results[0].Score = 99
	if s.Results[0].Score != 0 {
		t.Fatalf("clone shares results with original")
	}
}
