package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/scripta/scripta-api/internal/app"
	"github.com/scripta/scripta-api/internal/config"
	"github.com/scripta/scripta-api/internal/logger"
	"github.com/scripta/scripta-api/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := logger.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize")
	}
	defer a.Close()

	w := worker.New(a.Queue, a.Services.Generation, worker.Config{
		Concurrency:     cfg.WorkerConcurrency,
		PollInterval:    cfg.WorkerPollInterval,
		StalledInterval: cfg.WorkerStalledInterval,
		LockDuration:    cfg.QueueLockDuration,
	}, logger).WithPurger(a.Services.Auth)

	if err := w.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("worker stopped with error")
	}
}
