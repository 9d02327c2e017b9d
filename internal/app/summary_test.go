package app

import (
	"bytes"
	"strings"
	"testing"

	"quizmaster-service/internal/domain"
)

func summarySession() (domain.Quiz, domain.QuizSession) {
	quiz := engineQuiz()
	session := domain.QuizSession{
		ID:     "s1",
		QuizID: quiz.ID,
		Participants: []domain.Participant{
			{ID: "p1", Name: "Ann"},
			{ID: "p2", Name: "Ben"},
		},
		Status: domain.StatusActive,
		Results: []domain.ParticipantResult{
			{ParticipantID: "p1", QuestionID: "q1", Answer: "a", IsCorrect: true, TimeSpent: 4, Score: 130},
			{ParticipantID: "p1", QuestionID: "q2", Answer: "a", TimeSpent: 3},
			{ParticipantID: "p2", QuestionID: "q1", Answer: "", TimeSpent: 10},
			{ParticipantID: "p1", QuestionID: "q3", Answer: "", TimeSpent: 10},
		},
	}
	return quiz, session
}

func TestSummarizeParticipant(t *testing.T) {
	quiz, session := summarySession()
	sum := Summarize(quiz, session, "p1")

	if sum.TotalQuestions != 3 || sum.Answered != 3 || sum.Correct != 1 || sum.TotalScore != 130 {
		t.Fatalf("unexpected totals %+v", sum)
	}
	if sum.AccuracyPercent != 33 || sum.AvgTimeSpent != 6 {
		t.Fatalf("unexpected ratios accuracy=%d avg=%d", sum.AccuracyPercent, sum.AvgTimeSpent)
	}

	q2 := sum.Questions[1]
	if q2.Status != StatusIncorrect {
		t.Fatalf("q2 status %s", q2.Status)
	}
	if q2.Options[0].Tag != OptionSelectedIncorrect || q2.Options[1].Tag != OptionCorrect {
		t.Fatalf("unexpected q2 tags %+v", q2.Options)
	}
	if sum.Questions[0].Status != StatusCorrect {
		t.Fatalf("q1 status %s", sum.Questions[0].Status)
	}
}

func TestSummarizeNoAnswer(t *testing.T) {
	quiz, session := summarySession()
	sum := Summarize(quiz, session, "p2")
	if sum.Answered != 1 || sum.Questions[1].Status != StatusNoAnswer || sum.Questions[1].Result != nil {
		t.Fatalf("unexpected summary %+v", sum)
	}
	for _, o := range sum.Questions[1].Options {
		if o.Tag == OptionSelectedIncorrect {
			t.Fatalf("unanswered question has a selected option")
		}
	}
}

func TestBuildLeaderboardSolo(t *testing.T) {
	session := domain.QuizSession{
		IsSolo: true,
		Results: []domain.ParticipantResult{
			{ParticipantID: domain.SoloParticipantID, QuestionID: "q1", IsCorrect: true, Score: 140},
			{ParticipantID: domain.SoloParticipantID, QuestionID: "q2", Score: 0},
		},
	}
	board := BuildLeaderboard(session)
	if len(board) != 1 || board[0].Name != SoloDisplayName || board[0].Score != 140 || board[0].Correct != 1 {
		t.Fatalf("unexpected solo board %+v", board)
	}
}

func TestBuildLeaderboardAppendsUnknownIDs(t *testing.T) {
	_, session := summarySession()
	session.Results = append(session.Results, domain.ParticipantResult{ParticipantID: "gone", QuestionID: "q1", IsCorrect: true, Score: 150})
	board := BuildLeaderboard(session)
	if len(board) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(board))
	}
	if board[0].ParticipantID != "gone" || board[1].ParticipantID != "p1" || board[2].ParticipantID != "p2" {
		t.Fatalf("unexpected order %+v", board)
	}
}

func TestExportCSV(t *testing.T) {
	quiz, session := summarySession()
	quiz.Questions[0].Text = `Say "hi", please`
	rows := ExportRows(quiz, session, "p2")

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d lines", len(lines))
	}
	if lines[0] != "Question,Your Answer,Correct Answer,Result,Time Spent,Score" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != `"Say ""hi"", please",,a,Incorrect,10s,0` {
		t.Fatalf("unexpected time-up row %q", lines[1])
	}
	if lines[2] != "2,Not answered,b,Incorrect,0s,0" {
		t.Fatalf("unexpected unanswered row %q", lines[2])
	}
}
