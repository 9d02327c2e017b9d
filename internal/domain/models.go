package domain

import (
	"time"
)

// SoloParticipantID is the implicit participant identity of every solo session.
const SoloParticipantID = "solo-player"

const (
	DefaultTimeLimit = 30
	DefaultCategory  = "General Knowledge"
)

// SessionStatus is the lifecycle state of a QuizSession.
type SessionStatus string

const (
	StatusWaiting   SessionStatus = "waiting"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// Question is a single multiple-choice item. CorrectAnswer always equals one of Options.
type Question struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	CorrectAnswer  string   `json:"correctAnswer"`
	TimeLimit      int      `json:"timeLimit"` // seconds
	Category       string   `json:"category"`
	ShuffleOptions bool     `json:"shuffleOptions"`
}

// QuizSettings holds per-quiz play options.
type QuizSettings struct {
	ShuffleQuestions bool `json:"shuffleQuestions"`
	DefaultTimeLimit int  `json:"defaultTimeLimit"`
}

// Quiz is an ordered question set.
type Quiz struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	CreatedAt   time.Time    `json:"createdAt"`
	Questions   []Question   `json:"questions"`
	Settings    QuizSettings `json:"settings"`
}

// Participant is an identified player within a session.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// ParticipantResult is the scored answer of one participant to one question.
// A session holds at most one per (ParticipantID, QuestionID).
type ParticipantResult struct {
	ParticipantID string    `json:"participantId"`
	QuestionID    string    `json:"questionId"`
	Answer        string    `json:"answer"`
	IsCorrect     bool      `json:"isCorrect"`
	TimeSpent     int       `json:"timeSpent"` // seconds
	Score         int       `json:"score"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// QuizSession is one play-through of a quiz.
type QuizSession struct {
	ID                   string              `json:"id"`
	QuizID               string              `json:"quizId"`
	StartedAt            time.Time           `json:"startedAt"`
	EndedAt              *time.Time          `json:"endedAt"`
	IsSolo               bool                `json:"isSolo"`
	Participants         []Participant       `json:"participants"`
	CurrentQuestionIndex int                 `json:"currentQuestionIndex"`
	Status               SessionStatus       `json:"status"`
	Results              []ParticipantResult `json:"results"`
}

// Question returns the question with the given id.
func (q Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// Clone returns a deep copy so callers never share slices with the stored document.
func (q Quiz) Clone() Quiz {
	out := q
	if q.Questions != nil {
		out.Questions = make([]Question, len(q.Questions))
		for i, question := range q.Questions {
			out.Questions[i] = question.Clone()
		}
	}
	return out
}

func (q Question) Clone() Question {
	out := q
	if q.Options != nil {
		out.Options = append([]string(nil), q.Options...)
	}
	return out
}

// Clone returns a deep copy of the session.
func (s QuizSession) Clone() QuizSession {
	out := s
	if s.EndedAt != nil {
		endedAt := *s.EndedAt
		out.EndedAt = &endedAt
	}
	if s.Participants != nil {
		out.Participants = append([]Participant(nil), s.Participants...)
	}
	if s.Results != nil {
		out.Results = append([]ParticipantResult(nil), s.Results...)
	}
	return out
}

// Result returns the result recorded for the (participant, question) pair.
func (s QuizSession) Result(participantID, questionID string) (ParticipantResult, bool) {
	for _, r := range s.Results {
		if r.ParticipantID == participantID && r.QuestionID == questionID {
			return r, true
		}
	}
	return ParticipantResult{}, false
}

// ResultsFor returns the results of one participant, or all results when participantID is empty.
func (s QuizSession) ResultsFor(participantID string) []ParticipantResult {
	if participantID == "" {
		return append([]ParticipantResult(nil), s.Results...)
	}
	var out []ParticipantResult
	for _, r := range s.Results {
		if r.ParticipantID == participantID {
			out = append(out, r)
		}
	}
	return out
}

func (s QuizSession) HasParticipant(id string) bool {
	for _, p := range s.Participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (s QuizSession) Participant(id string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

func (s QuizSession) IsCompleted() bool {
	return s.Status == StatusCompleted
}
