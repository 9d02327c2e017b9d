package app

import (
	"sync"
	"time"
)

// QuestionTimer is a single-shot countdown for one question window. onExpire runs at most
// once, and never after Stop has returned.
type QuestionTimer struct {
	once  sync.Once
	timer *time.Timer
	fired chan struct{}
}

func NewQuestionTimer(limit time.Duration, onExpire func()) *QuestionTimer {
	t := &QuestionTimer{fired: make(chan struct{})}
	t.timer = time.AfterFunc(limit, func() {
		t.once.Do(func() {
			onExpire()
			close(t.fired)
		})
	})
	return t
}

// Stop cancels the countdown. It reports whether the timer was stopped before expiring.
func (t *QuestionTimer) Stop() bool {
	stopped := false
	t.once.Do(func() { stopped = true })
	t.timer.Stop()
	return stopped
}

// Expired is closed after onExpire has returned.
func (t *QuestionTimer) Expired() <-chan struct{} { return t.fired }
