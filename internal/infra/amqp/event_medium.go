package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"quizmaster-service/internal/eventbus"
)

// DefaultExchange is the fanout exchange shared by all observers.
const DefaultExchange = "quizmaster.events"

// EventMedium carries event records over a RabbitMQ fanout exchange. Each Notifications call
// gets its own exclusive queue; records are not kept beyond the per-message expiration.
type EventMedium struct {
	conn      *amqp.Connection
	exchange  string
	retention time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	publish *amqp.Channel
}

func Dial(url, exchange string, retention time.Duration, logger *slog.Logger) (*EventMedium, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if retention <= 0 {
		retention = eventbus.DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declareExchange(ch, exchange); err != nil {
		conn.Close()
		return nil, err
	}
	return &EventMedium{
		conn:      conn,
		exchange:  exchange,
		retention: retention,
		logger:    logger,
		publish:   ch,
	}, nil
}

func (m *EventMedium) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publish != nil {
		m.publish.Close()
	}
	return m.conn.Close()
}

func (m *EventMedium) Append(ctx context.Context, rec eventbus.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.publish.PublishWithContext(
		ctx,
		m.exchange,
		"",    // routing key, ignored by fanout
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   rec.Key,
			Body:        body,
			Timestamp:   rec.Time(),
			Expiration:  strconv.FormatInt(m.retention.Milliseconds(), 10),
		},
	)
}

func (m *EventMedium) Notifications(ctx context.Context) (<-chan eventbus.Record, error) {
	ch, err := m.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", m.exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}
	deliveries, err := ch.Consume(
		q.Name,
		"",    // consumer
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume: %w", err)
	}

	out := make(chan eventbus.Record, 64)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				var rec eventbus.Record
				if err := json.Unmarshal(d.Body, &rec); err != nil {
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

// Expire is a no-op: the broker drops messages once their expiration passes.
func (m *EventMedium) Expire(context.Context, time.Time) (int, error) {
	return 0, nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	err := ch.ExchangeDeclare(
		name,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}
