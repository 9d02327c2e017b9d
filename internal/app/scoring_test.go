package app

import (
	"testing"

	"quizmaster-service/internal/domain"
)

func TestScore(t *testing.T) {
	q := domain.Question{Options: []string{"A", "B", "C"}, CorrectAnswer: "B", TimeLimit: 30}

	tests := []struct {
		name      string
		answer    string
		timeSpent int
		correct   bool
		score     int
	}{
		{"instant", "B", 0, true, 150},
		{"ten seconds", "B", 10, true, 133},
		{"at limit", "B", 30, true, 100},
		{"wrong", "A", 5, false, 0},
		{"empty", "", 0, false, 0},
		{"one second", "B", 1, true, 148},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(q, tt.answer, tt.timeSpent)
			if got.IsCorrect != tt.correct || got.Score != tt.score {
				t.Fatalf("Score(%q, %d) = %+v, want correct=%v score=%d", tt.answer, tt.timeSpent, got, tt.correct, tt.score)
			}
		})
	}
}

func TestScoreCorrectnessMatchesAnswer(t *testing.T) {
	q := domain.Question{Options: []string{"x", "y", "z"}, CorrectAnswer: "z", TimeLimit: 7}
	for _, answer := range append(q.Options, "other") {
		for ts := 0; ts <= 10; ts++ {
			got := Score(q, answer, ClampTimeSpent(ts, q.TimeLimit))
			if got.IsCorrect != (answer == q.CorrectAnswer) {
				t.Fatalf("answer %q t=%d: correctness %v", answer, ts, got.IsCorrect)
			}
			if got.IsCorrect && (got.Score < BaseScore || got.Score > BaseScore+MaxTimeBonus) {
				t.Fatalf("score %d out of range", got.Score)
			}
			if !got.IsCorrect && got.Score != 0 {
				t.Fatalf("incorrect answer scored %d", got.Score)
			}
		}
	}
}

func TestClampTimeSpent(t *testing.T) {
	if got := ClampTimeSpent(-3, 30); got != 0 {
		t.Fatalf("negative: got %d", got)
	}
	if got := ClampTimeSpent(45, 30); got != 30 {
		t.Fatalf("over limit: got %d", got)
	}
	if got := ClampTimeSpent(12, 30); got != 12 {
		t.Fatalf("in range: got %d", got)
	}
	q := domain.Question{Options: []string{"A", "B"}, CorrectAnswer: "A", TimeLimit: 30}
	if s := Score(q, "A", ClampTimeSpent(90, q.TimeLimit)).Score; s != 100 {
		t.Fatalf("clamped overtime scored %d", s)
	}
}
