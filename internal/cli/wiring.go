package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/config"
	"quizmaster-service/internal/eventbus"
	"quizmaster-service/internal/infra/amqp"
	"quizmaster-service/internal/infra/memory"
	"quizmaster-service/internal/infra/postgres"
	redisinfra "quizmaster-service/internal/infra/redis"
	"quizmaster-service/internal/infra/sqlite"
)

type repository interface {
	app.SessionRepository
	app.QuizRepository
}

// runtime holds what a command built from config and the cleanups to run when it is done.
type runtime struct {
	service *app.QuizService
	bus     *eventbus.Bus
	redis   *redis.Client
	closers []func()
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// buildService wires storage, the quiz cache and, when withEvents is set, the event bus.
// The bus is attached but not started.
func buildService(ctx context.Context, cfg config.Config, withEvents bool) (*runtime, error) {
	rt := &runtime{}
	repo, err := rt.openStorage(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	quizzes := memory.NewQuizCache(repo, config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute))
	rt.service = app.NewQuizService(repo, quizzes, app.WithLogger(slog.Default()))

	if !withEvents {
		return rt, nil
	}
	medium, err := rt.openEvents(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if medium == nil {
		return rt, nil
	}
	rt.bus = eventbus.New(medium,
		eventbus.WithRetention(config.TTLDuration(cfg.Events.Retention, eventbus.DefaultRetention)),
		eventbus.WithLogger(slog.Default()),
	)
	detach := rt.service.Attach(rt.bus)
	rt.closers = append(rt.closers, detach)
	return rt, nil
}

func (rt *runtime) redisClient(cfg config.Config) *redis.Client {
	if rt.redis == nil {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		client := rt.redis
		rt.closers = append(rt.closers, func() { _ = client.Close() })
	}
	return rt.redis
}

func (rt *runtime) openStorage(ctx context.Context, cfg config.Config) (repository, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return memory.NewRepository(), nil
	case "redis":
		client := rt.redisClient(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return redisinfra.NewRepository(client), nil
	case "postgres":
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		return postgres.NewRepository(pool), nil
	case "sqlite":
		repo, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = repo.Close() })
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// openEvents returns a nil medium for the "none" driver.
func (rt *runtime) openEvents(cfg config.Config) (eventbus.Medium, error) {
	switch cfg.Events.Driver {
	case "none":
		return nil, nil
	case "memory":
		return eventbus.NewMemoryMedium(), nil
	case "redis":
		return redisinfra.NewEventMedium(rt.redisClient(cfg), slog.Default()), nil
	case "amqp":
		retention := config.TTLDuration(cfg.Events.Retention, eventbus.DefaultRetention)
		medium, err := amqp.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, retention, slog.Default())
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = medium.Close() })
		return medium, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
	}
}
