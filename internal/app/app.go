// Package app wires the shared dependencies of the server and worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/config"
	"github.com/scripta/scripta-api/internal/llm"
	"github.com/scripta/scripta-api/internal/notify"
	"github.com/scripta/scripta-api/internal/queue"
	"github.com/scripta/scripta-api/internal/repository"
	"github.com/scripta/scripta-api/internal/repository/postgres"
	"github.com/scripta/scripta-api/internal/service"
	"gorm.io/gorm"
)

type App struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Queue    *queue.Queue
	Repos    *repository.Repositories
	Services *service.Services
	Notifier *notify.Dispatcher
}

// Open connects to Postgres (running migrations) and Redis and builds the
// service layer.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	db, err := postgres.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	q := queue.New(rdb, cfg.QueueName, queue.Options{
		Attempts:         cfg.QueueAttempts,
		Backoff:          cfg.QueueBackoff,
		RemoveOnComplete: cfg.QueueRemoveOnComplete,
		RemoveOnFail:     cfg.QueueRemoveOnFail,
		LockDuration:     cfg.QueueLockDuration,
	})

	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY is not set, generation requests will fail")
	}
	generator := llm.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL, cfg.GenerationTimeout)

	notifier := notify.NewDispatcher(newSender(cfg, logger), cfg.NotifyTimeout, logger)

	repos := postgres.NewRepositories(db)
	services := service.NewServices(repos, notifier, generator, q, cfg, logger)

	return &App{
		DB:       db,
		Redis:    rdb,
		Queue:    q,
		Repos:    repos,
		Services: services,
		Notifier: notifier,
	}, nil
}

// Close waits for queued notifications, then releases the connections.
func (a *App) Close() {
	if a.Notifier != nil {
		a.Notifier.Wait()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

func newSender(cfg *config.Config, logger zerolog.Logger) notify.Sender {
	if cfg.PostmarkServerToken == "" {
		logger.Info().Msg("POSTMARK_SERVER_TOKEN not set, emails are written to the log")
		return notify.NewLogSender(logger)
	}
	return notify.NewPostmarkSender(cfg.PostmarkServerToken, cfg.EmailFrom)
}
