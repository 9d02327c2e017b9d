package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"quizmaster-service/internal/eventbus"
)

const (
	eventsKey     = "quizmaster:events"
	eventsChannel = "quizmaster:events"
)

// EventMedium shares event records between processes. Records are kept in a sorted set
// scored by publish time and announced on a pub/sub channel.
type EventMedium struct {
	client *redis.Client
	logger *slog.Logger
}

func NewEventMedium(client *redis.Client, logger *slog.Logger) *EventMedium {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventMedium{client: client, logger: logger}
}

func (m *EventMedium) Append(ctx context.Context, rec eventbus.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := m.client.TxPipeline()
	pipe.ZAdd(ctx, eventsKey, redis.Z{Score: float64(rec.Timestamp), Member: data})
	pipe.Publish(ctx, eventsChannel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Notifications subscribes to the channel. The subscription is confirmed before returning so
// records appended afterwards are not missed.
func (m *EventMedium) Notifications(ctx context.Context) (<-chan eventbus.Record, error) {
	sub := m.client.Subscribe(ctx, eventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", eventsChannel, err)
	}

	out := make(chan eventbus.Record, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var rec eventbus.Record
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					m.logger.Warn("dropping malformed event", "error", err)
					continue
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Expire removes records published strictly before the cutoff.
func (m *EventMedium) Expire(ctx context.Context, before time.Time) (int, error) {
	cutoff := "(" + strconv.FormatInt(before.UnixMilli(), 10)
	n, err := m.client.ZRemRangeByScore(ctx, eventsKey, "-inf", cutoff).Result()
	if err != nil {
		return 0, fmt.Errorf("expire events: %w", err)
	}
	return int(n), nil
}

// Retained reports how many records are currently stored.
func (m *EventMedium) Retained(ctx context.Context) (int64, error) {
	return m.client.ZCard(ctx, eventsKey).Result()
}
