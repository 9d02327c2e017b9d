package app

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"quizmaster-service/internal/domain"
)

var (
	ErrPlayFinished    = errors.New("play has no more questions")
	ErrAlreadyAnswered = errors.New("current question already answered")
)

// Play is one participant's cursor through a session. Question order is fixed when the play
// is created; the option order of a question is fixed until Next moves past it.
type Play struct {
	svc           *QuizService
	sessionID     string
	participantID string
	quiz          domain.Quiz
	rnd           *rand.Rand
	now           func() time.Time

	mu        sync.Mutex
	order     []domain.Question
	index     int
	options   []string
	shownAt   time.Time
	answered  bool
	ended     bool
	lastSaved domain.QuizSession
}

// NewPlay loads the session and its quiz and positions the cursor on the first question.
// rnd drives question and option shuffling; pass a seeded source for reproducible order.
func NewPlay(ctx context.Context, svc *QuizService, sessionID, participantID string, rnd *rand.Rand) (*Play, error) {
	session, err := svc.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, domain.ErrSessionClosed
	}
	quiz, err := svc.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return nil, err
	}
	if len(quiz.Questions) == 0 {
		return nil, domain.ErrEmptyQuiz
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	p := &Play{
		svc:           svc,
		sessionID:     sessionID,
		participantID: participantID,
		quiz:          quiz,
		rnd:           rnd,
		now:           svc.now,
		order:         append([]domain.Question(nil), quiz.Questions...),
		lastSaved:     session,
	}
	if quiz.Settings.ShuffleQuestions {
		rnd.Shuffle(len(p.order), func(i, j int) { p.order[i], p.order[j] = p.order[j], p.order[i] })
	}
	p.enter(0)
	return p, nil
}

func (p *Play) enter(i int) {
	p.index = i
	p.answered = false
	p.shownAt = p.now()
	q := p.order[i]
	p.options = append([]string(nil), q.Options...)
	if q.ShuffleOptions {
		p.rnd.Shuffle(len(p.options), func(a, b int) { p.options[a], p.options[b] = p.options[b], p.options[a] })
	}
}

// Current returns the question under the cursor and its display order of options.
func (p *Play) Current() (domain.Question, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order[p.index].Clone(), append([]string(nil), p.options...)
}

// Position returns the zero-based cursor and the number of questions.
func (p *Play) Position() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index, len(p.order)
}

// Remaining is the time left in the current question window.
func (p *Play) Remaining() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	limit := time.Duration(p.order[p.index].TimeLimit) * time.Second
	left := limit - p.now().Sub(p.shownAt)
	if left < 0 {
		return 0
	}
	return left
}

// Answered reports whether the current question already has a result from this play.
func (p *Play) Answered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.answered
}

// Session is the latest session document returned by the repository for this play.
func (p *Play) Session() domain.QuizSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSaved.Clone()
}

// Answer submits answer for the current question, timing it from when the question was shown.
func (p *Play) Answer(ctx context.Context, answer string) (AnswerOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpenLocked(); err != nil {
		return AnswerOutcome{}, err
	}
	q := p.order[p.index]
	elapsed := int(p.now().Sub(p.shownAt) / time.Second)
	out, err := p.svc.SubmitAnswer(ctx, p.sessionID, p.participantID, q.ID, answer, ClampTimeSpent(elapsed, q.TimeLimit))
	if err != nil {
		return AnswerOutcome{}, err
	}
	p.answered = true
	p.lastSaved = out.Session
	return out, nil
}

// TimeUp records the expired window of the current question.
func (p *Play) TimeUp(ctx context.Context) (AnswerOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpenLocked(); err != nil {
		return AnswerOutcome{}, err
	}
	out, err := p.svc.TimeUp(ctx, p.sessionID, p.participantID, p.order[p.index].ID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	p.answered = true
	p.lastSaved = out.Session
	return out, nil
}

// Next moves to the following question. Past the last question it ends the session once
// and reports done.
func (p *Play) Next(ctx context.Context) (done bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ended {
		return true, nil
	}
	if p.index+1 < len(p.order) {
		p.enter(p.index + 1)
		return false, nil
	}
	session, err := p.svc.EndSession(ctx, p.sessionID)
	if err != nil {
		return false, err
	}
	p.ended = true
	p.lastSaved = session
	return true, nil
}

// StartTimer arms a countdown for the current question that records a time-up when it
// expires. The caller stops it when the participant answers first.
func (p *Play) StartTimer(ctx context.Context, onTimeUp func(AnswerOutcome, error)) *QuestionTimer {
	return NewQuestionTimer(p.Remaining(), func() {
		out, err := p.TimeUp(ctx)
		if onTimeUp != nil {
			onTimeUp(out, err)
		}
	})
}

func (p *Play) checkOpenLocked() error {
	if p.ended {
		return ErrPlayFinished
	}
	if p.answered {
		return ErrAlreadyAnswered
	}
	return nil
}
