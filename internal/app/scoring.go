package app

import "quizmaster-service/internal/domain"

const (
	BaseScore    = 100
	MaxTimeBonus = 50
)

// Outcome is the scored evaluation of one answer.
type Outcome struct {
	IsCorrect bool
	Score     int
}

// Score evaluates an answer. timeSpent must already be clamped to [0, TimeLimit] with
// ClampTimeSpent. The bonus is floor((1 - t/limit) * 50), computed in integers so the
// result is identical on every platform.
func Score(question domain.Question, answer string, timeSpent int) Outcome {
	if answer != question.CorrectAnswer || answer == "" {
		return Outcome{}
	}
	bonus := 0
	if question.TimeLimit > 0 {
		bonus = MaxTimeBonus * (question.TimeLimit - timeSpent) / question.TimeLimit
		if bonus < 0 {
			bonus = 0
		}
	}
	return Outcome{IsCorrect: true, Score: BaseScore + bonus}
}

// ClampTimeSpent bounds a reported duration to the question window.
func ClampTimeSpent(timeSpent, timeLimit int) int {
	if timeSpent < 0 {
		return 0
	}
	if timeLimit > 0 && timeSpent > timeLimit {
		return timeLimit
	}
	return timeSpent
}
