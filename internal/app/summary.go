package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"quizmaster-service/internal/domain"
)

type OptionTag string

const (
	OptionCorrect           OptionTag = "correct"
	OptionSelectedIncorrect OptionTag = "selected-incorrect"
	OptionNeutral           OptionTag = "neutral"
)

type QuestionStatus string

const (
	StatusCorrect   QuestionStatus = "correct"
	StatusIncorrect QuestionStatus = "incorrect"
	StatusNoAnswer  QuestionStatus = "no-answer"
)

// SoloDisplayName is the leaderboard name of the solo participant.
const SoloDisplayName = "You"

type OptionView struct {
	Text string    `json:"text"`
	Tag  OptionTag `json:"tag"`
}

// QuestionBreakdown is the resolved outcome of one quiz question.
type QuestionBreakdown struct {
	QuestionID    string                    `json:"questionId"`
	Text          string                    `json:"text"`
	CorrectAnswer string                    `json:"correctAnswer"`
	Status        QuestionStatus            `json:"status"`
	Result        *domain.ParticipantResult `json:"result,omitempty"`
	Options       []OptionView              `json:"options"`
}

// Summary aggregates the results of one participant, or of everyone when ParticipantID is empty.
// A question counts as answered when it has any result, including a recorded time-up.
type Summary struct {
	ParticipantID   string              `json:"participantId,omitempty"`
	TotalQuestions  int                 `json:"totalQuestions"`
	Answered        int                 `json:"answered"`
	Correct         int                 `json:"correct"`
	TotalScore      int                 `json:"totalScore"`
	AccuracyPercent int                 `json:"accuracyPercent"`
	AvgTimeSpent    int                 `json:"avgTimeSpent"`
	Questions       []QuestionBreakdown `json:"questions"`
}

type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Score         int    `json:"score"`
	Correct       int    `json:"correct"`
}

// ExportRow is one line of the results export.
type ExportRow struct {
	Question      string
	Answer        string
	CorrectAnswer string
	Correct       bool
	TimeSpent     int
	Score         int
}

var exportHeader = []string{"Question", "Your Answer", "Correct Answer", "Result", "Time Spent", "Score"}

func Summarize(quiz domain.Quiz, session domain.QuizSession, participantID string) Summary {
	results := session.ResultsFor(participantID)
	sum := Summary{
		ParticipantID:  participantID,
		TotalQuestions: len(quiz.Questions),
		Questions:      make([]QuestionBreakdown, 0, len(quiz.Questions)),
	}

	timeTotal := 0
	for _, r := range results {
		sum.TotalScore += r.Score
		timeTotal += r.TimeSpent
		if r.IsCorrect {
			sum.Correct++
		}
	}
	sum.AccuracyPercent = roundedRatio(sum.Correct*100, sum.TotalQuestions)
	sum.AvgTimeSpent = roundedRatio(timeTotal, len(results))

	for _, q := range quiz.Questions {
		res, ok := resultFor(results, q.ID)
		b := QuestionBreakdown{
			QuestionID:    q.ID,
			Text:          q.Text,
			CorrectAnswer: q.CorrectAnswer,
			Status:        StatusNoAnswer,
			Options:       make([]OptionView, 0, len(q.Options)),
		}
		if ok {
			sum.Answered++
			r := res
			b.Result = &r
			b.Status = StatusIncorrect
			if res.IsCorrect {
				b.Status = StatusCorrect
			}
		}
		for _, opt := range q.Options {
			b.Options = append(b.Options, OptionView{Text: opt, Tag: optionTag(q, opt, b.Result)})
		}
		sum.Questions = append(sum.Questions, b)
	}
	return sum
}

func optionTag(q domain.Question, option string, result *domain.ParticipantResult) OptionTag {
	if option == q.CorrectAnswer {
		return OptionCorrect
	}
	if result != nil && option == result.Answer && !result.IsCorrect {
		return OptionSelectedIncorrect
	}
	return OptionNeutral
}

// BuildLeaderboard ranks participants by summed score. Ties keep participant order; ids that
// only appear in results follow the roster in order of their first result.
func BuildLeaderboard(session domain.QuizSession) []LeaderboardEntry {
	if session.IsSolo {
		entry := LeaderboardEntry{ParticipantID: domain.SoloParticipantID, Name: SoloDisplayName}
		for _, r := range session.ResultsFor(domain.SoloParticipantID) {
			entry.Score += r.Score
			if r.IsCorrect {
				entry.Correct++
			}
		}
		return []LeaderboardEntry{entry}
	}

	entries := make([]LeaderboardEntry, 0, len(session.Participants))
	index := make(map[string]int, len(session.Participants))
	for _, p := range session.Participants {
		index[p.ID] = len(entries)
		entries = append(entries, LeaderboardEntry{ParticipantID: p.ID, Name: p.Name})
	}
	for _, r := range session.Results {
		i, ok := index[r.ParticipantID]
		if !ok {
			i = len(entries)
			index[r.ParticipantID] = i
			entries = append(entries, LeaderboardEntry{ParticipantID: r.ParticipantID, Name: r.ParticipantID})
		}
		entries[i].Score += r.Score
		if r.IsCorrect {
			entries[i].Correct++
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	return entries
}

// ExportRows resolves one row per quiz question, in quiz order.
func ExportRows(quiz domain.Quiz, session domain.QuizSession, participantID string) []ExportRow {
	results := session.ResultsFor(participantID)
	rows := make([]ExportRow, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		row := ExportRow{Question: q.Text, Answer: "Not answered", CorrectAnswer: q.CorrectAnswer}
		if r, ok := resultFor(results, q.ID); ok {
			row.Answer = r.Answer
			row.Correct = r.IsCorrect
			row.TimeSpent = r.TimeSpent
			row.Score = r.Score
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteCSV renders rows with a header line.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, row := range rows {
		result := "Incorrect"
		if row.Correct {
			result = "Correct"
		}
		record := []string{
			row.Question,
			row.Answer,
			row.CorrectAnswer,
			result,
			fmt.Sprintf("%ds", row.TimeSpent),
			strconv.Itoa(row.Score),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func resultFor(results []domain.ParticipantResult, questionID string) (domain.ParticipantResult, bool) {
	for _, r := range results {
		if r.QuestionID == questionID {
			return r, true
		}
	}
	return domain.ParticipantResult{}, false
}

// roundedRatio is num/den rounded half up, 0 when den is 0.
func roundedRatio(num, den int) int {
	if den <= 0 {
		return 0
	}
	return (2*num + den) / (2 * den)
}
