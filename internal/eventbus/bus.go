// Package eventbus propagates session change notifications between independent observers
// through a shared medium. Delivery is best-effort and at-most-once; receivers must treat
// an event as a hint to refetch from the repository, never as state.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultRetention is how long published records stay in the medium before any observer
// may collect them.
const DefaultRetention = 5 * time.Second

// ErrStarted is returned by a second call to Start.
var ErrStarted = errors.New("event bus already started")

// Record is one published event as stored in the medium.
type Record struct {
	Key       string          `json:"key"`
	EventName string          `json:"eventName"`
	Data      json.RawMessage `json:"data"`
	SenderID  string          `json:"senderId"`
	Timestamp int64           `json:"timestamp"` // unix millis
}

// Time returns the publish time of the record.
func (r Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Decode unmarshals the payload into v.
func (r Record) Decode(v any) error {
	return json.Unmarshal(r.Data, v)
}

// Medium is the shared transport. Append stores a record and notifies every current
// listener; Notifications streams records appended after the call returns.
type Medium interface {
	Append(ctx context.Context, rec Record) error
	Notifications(ctx context.Context) (<-chan Record, error)
	Expire(ctx context.Context, before time.Time) (int, error)
}

// Handler receives events published by other observers.
type Handler func(ctx context.Context, rec Record)

// Token identifies a registered handler.
type Token uint64

// Bus is one observer's endpoint on a medium.
type Bus struct {
	id        string
	medium    Medium
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
	seq       atomic.Uint64

	mu       sync.RWMutex
	handlers map[string]map[Token]Handler
	next     Token
	done     chan struct{}
	started  atomic.Bool
}

type Option func(*Bus)

// WithRetention sets the garbage collection window.
func WithRetention(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.retention = d
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// WithID fixes the sender id instead of generating one.
func WithID(id string) Option {
	return func(b *Bus) { b.id = id }
}

func New(medium Medium, opts ...Option) *Bus {
	b := &Bus{
		id:        uuid.New().String(),
		medium:    medium,
		retention: DefaultRetention,
		now:       time.Now,
		logger:    slog.Default(),
		handlers:  make(map[string]map[Token]Handler),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ID is the sender tag attached to every record this bus publishes.
func (b *Bus) ID() string { return b.id }

// Publish writes a record to the medium, then opportunistically collects expired records.
// A collection failure is logged and does not fail the publish.
func (b *Bus) Publish(ctx context.Context, eventName string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventName, err)
	}
	now := b.now()
	rec := Record{
		Key:       fmt.Sprintf("socket:%d:%s:%d", now.UnixMilli(), b.id, b.seq.Add(1)),
		EventName: eventName,
		Data:      data,
		SenderID:  b.id,
		Timestamp: now.UnixMilli(),
	}
	if err := b.medium.Append(ctx, rec); err != nil {
		return fmt.Errorf("publish %s: %w", eventName, err)
	}
	if n, err := b.medium.Expire(ctx, now.Add(-b.retention)); err != nil {
		b.logger.Warn("event cleanup failed", "error", err)
	} else if n > 0 {
		b.logger.Debug("expired events collected", "count", n)
	}
	return nil
}

// On registers handler for eventName.
func (b *Bus) On(eventName string, handler Handler) Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	if b.handlers[eventName] == nil {
		b.handlers[eventName] = make(map[Token]Handler)
	}
	b.handlers[eventName][b.next] = handler
	return b.next
}

// Off removes a handler. Unknown tokens are ignored.
func (b *Bus) Off(token Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, hs := range b.handlers {
		if _, ok := hs[token]; ok {
			delete(hs, token)
			if len(hs) == 0 {
				delete(b.handlers, name)
			}
			return
		}
	}
}

// Start subscribes to the medium and dispatches notifications on a background goroutine
// until ctx is cancelled or the medium closes the stream. Records published before Start
// returns are not delivered.
func (b *Bus) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrStarted
	}
	records, err := b.medium.Notifications(ctx)
	if err != nil {
		b.started.Store(false)
		return fmt.Errorf("subscribe to event medium: %w", err)
	}
	go func() {
		defer close(b.done)
		for {
			select {
			case rec, ok := <-records:
				if !ok {
					return
				}
				b.dispatch(ctx, rec)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Done is closed when the dispatch loop started by Start exits.
func (b *Bus) Done() <-chan struct{} { return b.done }

func (b *Bus) dispatch(ctx context.Context, rec Record) {
	if rec.SenderID == b.id {
		return
	}
	b.mu.RLock()
	tokens := make([]Token, 0, len(b.handlers[rec.EventName]))
	for t := range b.handlers[rec.EventName] {
		tokens = append(tokens, t)
	}
	slices.Sort(tokens)
	hs := make([]Handler, 0, len(tokens))
	for _, t := range tokens {
		hs = append(hs, b.handlers[rec.EventName][t])
	}
	b.mu.RUnlock()

	// registration order
	for _, h := range hs {
		h(ctx, rec)
	}
}
