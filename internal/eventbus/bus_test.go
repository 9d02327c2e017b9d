package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"
)

type ping struct {
	SessionID string `json:"sessionId"`
}

func TestBusDeliversToOtherObserversOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	medium := NewMemoryMedium()
	sender := New(medium)
	receiver := New(medium)

	selfSeen := make(chan Record, 1)
	sender.On("answer:submit", func(_ context.Context, rec Record) { selfSeen <- rec })
	got := make(chan Record, 1)
	receiver.On("answer:submit", func(_ context.Context, rec Record) { got <- rec })

	if err := sender.Start(ctx); err != nil {
		t.Fatalf("start sender: %v", err)
	}
	if err := receiver.Start(ctx); err != nil {
		t.Fatalf("start receiver: %v", err)
	}

	if err := sender.Publish(ctx, "answer:submit", ping{SessionID: "s1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case rec := <-got:
		var p ping
		if err := rec.Decode(&p); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if p.SessionID != "s1" || rec.SenderID != sender.ID() {
			t.Fatalf("unexpected record %+v", rec)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("receiver did not get the event")
	}

	select {
	case <-selfSeen:
		t.Fatalf("sender received its own publish")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBusOffStopsDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	medium := NewMemoryMedium()
	sender := New(medium)
	receiver := New(medium)
	got := make(chan struct{}, 4)
	token := receiver.On("quiz:end", func(context.Context, Record) { got <- struct{}{} })
	marker := make(chan struct{}, 4)
	receiver.On("quiz:start", func(context.Context, Record) { marker <- struct{}{} })
	if err := receiver.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	receiver.Off(token)
	receiver.Off(token) // unknown token is ignored

	_ = sender.Publish(ctx, "quiz:end", ping{})
	_ = sender.Publish(ctx, "quiz:start", ping{})

	select {
	case <-marker:
	case <-time.After(2 * time.Second):
		t.Fatalf("marker event not delivered")
	}
	select {
	case <-got:
		t.Fatalf("handler fired after Off")
	default:
	}
}

func TestPublishCollectsExpiredRecords(t *testing.T) {
	ctx := context.Background()
	medium := NewMemoryMedium()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	bus := New(medium, WithClock(func() time.Time { return now }), WithRetention(5*time.Second))

	_ = bus.Publish(ctx, "quiz:start", ping{})
	_ = bus.Publish(ctx, "quiz:start", ping{})
	if medium.Len() != 2 {
		t.Fatalf("expected 2 retained records, got %d", medium.Len())
	}

	now = now.Add(6 * time.Second)
	_ = bus.Publish(ctx, "quiz:end", ping{})
	if medium.Len() != 1 {
		t.Fatalf("expected old records collected, got %d", medium.Len())
	}
}

func TestLateObserverMissesEarlierEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	medium := NewMemoryMedium()
	sender := New(medium)
	_ = sender.Publish(ctx, "quiz:start", ping{SessionID: "early"})

	late := New(medium)
	got := make(chan Record, 2)
	late.On("quiz:start", func(_ context.Context, rec Record) { got <- rec })
	if err := late.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = sender.Publish(ctx, "quiz:start", ping{SessionID: "later"})

	select {
	case rec := <-got:
		var p ping
		_ = rec.Decode(&p)
		if p.SessionID != "later" {
			t.Fatalf("late observer replayed %q", p.SessionID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("late observer got nothing")
	}
}

func TestStartStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := New(NewMemoryMedium())
	if err := bus.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
	select {
	case <-bus.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatch loop did not exit")
	}
}

func TestSecondStartIsRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := New(NewMemoryMedium())
	if err := bus.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := bus.Start(ctx); !errors.Is(err, ErrStarted) {
		t.Fatalf("expected ErrStarted, got %v", err)
	}
	cancel()
	select {
	case <-bus.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatch loop did not exit")
	}
}
