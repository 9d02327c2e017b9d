package app

import (
	"strings"
	"time"

	"quizmaster-service/internal/domain"
)

// Submission is one answer event from a participant.
type Submission struct {
	ParticipantID string
	QuestionID    string
	Answer        string
	TimeSpent     int
}

// NewSession builds a waiting session for quiz. It fails for a quiz without questions.
func NewSession(quiz domain.Quiz, isSolo bool, id string, now time.Time) (domain.QuizSession, error) {
	if len(quiz.Questions) == 0 {
		return domain.QuizSession{}, domain.ErrEmptyQuiz
	}
	return domain.QuizSession{
		ID:                   id,
		QuizID:               quiz.ID,
		StartedAt:            now,
		IsSolo:               isSolo,
		Participants:         []domain.Participant{},
		CurrentQuestionIndex: -1,
		Status:               domain.StatusWaiting,
		Results:              []domain.ParticipantResult{},
	}, nil
}

// ApplyAnswer scores sub and upserts its result keyed by (participant, question).
// The input session is not modified.
func ApplyAnswer(session domain.QuizSession, quiz domain.Quiz, sub Submission, now time.Time) (domain.QuizSession, domain.ParticipantResult, error) {
	if session.IsCompleted() {
		return session, domain.ParticipantResult{}, domain.ErrSessionClosed
	}
	question, ok := quiz.Question(sub.QuestionID)
	if !ok {
		return session, domain.ParticipantResult{}, domain.ErrQuestionNotFound
	}
	if !canSubmit(session, sub.ParticipantID) {
		return session, domain.ParticipantResult{}, domain.ErrParticipantNotFound
	}

	timeSpent := ClampTimeSpent(sub.TimeSpent, question.TimeLimit)
	outcome := Score(question, sub.Answer, timeSpent)
	result := domain.ParticipantResult{
		ParticipantID: sub.ParticipantID,
		QuestionID:    sub.QuestionID,
		Answer:        sub.Answer,
		IsCorrect:     outcome.IsCorrect,
		TimeSpent:     timeSpent,
		Score:         outcome.Score,
		SubmittedAt:   now,
	}

	next := session.Clone()
	replaced := false
	for i := range next.Results {
		if next.Results[i].ParticipantID == result.ParticipantID && next.Results[i].QuestionID == result.QuestionID {
			next.Results[i] = result
			replaced = true
			break
		}
	}
	if !replaced {
		next.Results = append(next.Results, result)
	}

	if next.Status == domain.StatusWaiting {
		next.Status = domain.StatusActive
	}
	if idx := answeredCount(next, sub.ParticipantID) - 1; idx > next.CurrentQuestionIndex {
		next.CurrentQuestionIndex = idx
	}
	return next, result, nil
}

// CloseSession completes the session. Closing a completed session returns it unchanged
// with changed=false so endedAt is never rewritten.
func CloseSession(session domain.QuizSession, now time.Time) (domain.QuizSession, bool) {
	if session.IsCompleted() {
		return session, false
	}
	next := session.Clone()
	endedAt := now
	next.EndedAt = &endedAt
	next.Status = domain.StatusCompleted
	return next, true
}

// AddParticipant appends a participant with a caller-generated id.
func AddParticipant(session domain.QuizSession, id, name string, now time.Time) (domain.QuizSession, domain.Participant, error) {
	if session.IsCompleted() {
		return session, domain.Participant{}, domain.ErrSessionClosed
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return session, domain.Participant{}, domain.Invalid("participant name is required")
	}
	if session.IsSolo {
		return session, domain.Participant{}, domain.Invalid("solo sessions do not accept participants")
	}
	if session.HasParticipant(id) {
		return session, domain.Participant{}, domain.Invalid("participant id %q already in session", id)
	}
	participant := domain.Participant{ID: id, Name: name, JoinedAt: now}
	next := session.Clone()
	next.Participants = append(next.Participants, participant)
	return next, participant, nil
}

// RemoveParticipant drops a participant from the roster. Recorded results stay.
func RemoveParticipant(session domain.QuizSession, id string) (domain.QuizSession, error) {
	if session.IsCompleted() {
		return session, domain.ErrSessionClosed
	}
	if !session.HasParticipant(id) {
		return session, domain.ErrParticipantNotFound
	}
	next := session.Clone()
	next.Participants = next.Participants[:0]
	for _, p := range session.Participants {
		if p.ID != id {
			next.Participants = append(next.Participants, p)
		}
	}
	return next, nil
}

func canSubmit(session domain.QuizSession, participantID string) bool {
	if session.IsSolo {
		return participantID == domain.SoloParticipantID
	}
	return session.HasParticipant(participantID)
}

func answeredCount(session domain.QuizSession, participantID string) int {
	seen := make(map[string]struct{})
	for _, r := range session.Results {
		if r.ParticipantID == participantID {
			seen[r.QuestionID] = struct{}{}
		}
	}
	return len(seen)
}
