package domain

// Event names propagated between observers of the same sessions.
const (
	EventQuizStart       = "quiz:start"
	EventParticipantJoin = "participant:join"
	EventRoomLeave       = "room:leave"
	EventAnswerSubmit    = "answer:submit"
	EventQuestionNext    = "question:next"
	EventQuizEnd         = "quiz:end"
	EventQuizSaved       = "quiz:saved"
	EventQuizDeleted     = "quiz:deleted"
)

// SessionEvents lists the events that signal a changed session document.
var SessionEvents = []string{
	EventQuizStart,
	EventParticipantJoin,
	EventRoomLeave,
	EventAnswerSubmit,
	EventQuestionNext,
	EventQuizEnd,
}

// SessionEvent is the notify payload. It names what changed; observers refetch the document.
type SessionEvent struct {
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId,omitempty"`
	QuestionID    string `json:"questionId,omitempty"`
}

// QuizEvent signals a created, updated or deleted quiz.
type QuizEvent struct {
	QuizID string `json:"quizId"`
}
