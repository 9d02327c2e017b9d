package eventbus

import (
	"context"
	"sync"
	"time"
)

// MemoryMedium is an in-process medium shared by several Bus instances. Listeners with a
// full buffer miss the record.
type MemoryMedium struct {
	mu        sync.Mutex
	records   map[string]Record
	listeners map[chan Record]struct{}
}

func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{
		records:   make(map[string]Record),
		listeners: make(map[chan Record]struct{}),
	}
}

func (m *MemoryMedium) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Key] = rec
	for ch := range m.listeners {
		select {
		case ch <- rec:
		default:
		}
	}
	return nil
}

func (m *MemoryMedium) Notifications(ctx context.Context) (<-chan Record, error) {
	ch := make(chan Record, 64)
	m.mu.Lock()
	m.listeners[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.listeners, ch)
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}

func (m *MemoryMedium) Expire(_ context.Context, before time.Time) (int, error) {
	cutoff := before.UnixMilli()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, rec := range m.records {
		if rec.Timestamp < cutoff {
			delete(m.records, key)
			n++
		}
	}
	return n, nil
}

// Len reports how many records are currently retained.
func (m *MemoryMedium) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
