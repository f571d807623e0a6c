package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/heartmarshall/leerming-backend/internal/adapter/amqpnotify"
	"github.com/heartmarshall/leerming-backend/internal/adapter/postgres"
	"github.com/heartmarshall/leerming-backend/internal/adapter/postgres/flashcard"
	"github.com/heartmarshall/leerming-backend/internal/adapter/postgres/profile"
	"github.com/heartmarshall/leerming-backend/internal/adapter/postgres/reminderbatch"
	reviewrepo "github.com/heartmarshall/leerming-backend/internal/adapter/postgres/review"
	"github.com/heartmarshall/leerming-backend/internal/adapter/redisstore"
	"github.com/heartmarshall/leerming-backend/internal/config"
	"github.com/heartmarshall/leerming-backend/internal/scheduler"
	"github.com/heartmarshall/leerming-backend/internal/service/learner"
	"github.com/heartmarshall/leerming-backend/internal/service/reminder"
	"github.com/heartmarshall/leerming-backend/internal/service/review"
)

// App bundles the wired services and the infrastructure they run on.
// Transport layers (when one is added) hang handlers off the service fields.
type App struct {
	Review   *review.Service
	Reminder *reminder.Service
	Learner  *learner.Service

	log      *slog.Logger
	pool     *pgxpool.Pool
	redis    *redis.Client
	notifier *amqpnotify.Notifier
	runner   *scheduler.Runner
}

// reminderHook defers binding of the reminder service until after the
// review service is built; the two reference each other through interfaces.
type reminderHook struct {
	svc *reminder.Service
}

func (h *reminderHook) Reschedule(ctx context.Context, learnerID uuid.UUID) error {
	return h.svc.Reschedule(ctx, learnerID)
}

// New connects to Postgres, Redis and RabbitMQ and wires the services.
// Callers own the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := redisstore.NewClient(ctx, cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	notifier, err := amqpnotify.New(cfg.Notify)
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	runner := scheduler.NewRunner(logger)

	cards := flashcard.New(pool)
	reviews := reviewrepo.New(pool)
	profiles := profile.New(pool)
	batches := reminderbatch.New(pool)
	txm := postgres.NewTxManager(pool)

	sessions := redisstore.NewSessionStore(redisClient, cfg.Review.SessionTTL)

	hook := &reminderHook{}
	reviewSvc := review.NewService(logger, cards, reviews, sessions, profiles, hook, txm)
	reminderSvc := reminder.NewService(logger, batches, runner, notifier, reviewSvc, profiles)
	hook.svc = reminderSvc
	learnerSvc := learner.NewService(logger, profiles, reminderSvc)

	return &App{
		Review:   reviewSvc,
		Reminder: reminderSvc,
		Learner:  learnerSvc,
		log:      logger,
		pool:     pool,
		redis:    redisClient,
		notifier: notifier,
		runner:   runner,
	}, nil
}

// Close releases infrastructure in reverse dependency order.
func (a *App) Close() {
	a.runner.Shutdown()
	if err := a.notifier.Close(); err != nil {
		a.log.Warn("close rabbitmq", slog.String("error", err.Error()))
	}
	if err := a.redis.Close(); err != nil {
		a.log.Warn("close redis", slog.String("error", err.Error()))
	}
	a.pool.Close()
}

// Run is the daemon entry point. It loads configuration, wires the
// application, rehydrates persisted reminder batches into the job runner
// and blocks until the context is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
	)

	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Reminder.RestoreScheduled(ctx); err != nil {
		return fmt.Errorf("restore scheduled reminders: %w", err)
	}

	logger.Info("application started")

	<-ctx.Done()
	logger.Info("shutting down")

	return nil
}
