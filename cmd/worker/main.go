package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/clientportal/portal/internal/app"
	jobmetrics "github.com/clientportal/portal/internal/jobs"
	"github.com/clientportal/portal/internal/platform/db"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
	"github.com/clientportal/portal/jobs"
)

// idempotencyCleanupSpec runs the key cleanup nightly at 03:00 UTC.
const idempotencyCleanupSpec = "0 3 * * *"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	cleanupTask, err := jobs.NewIdempotencyCleanupTask(cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword},
		Logger:      logger,
		Metrics:     jobmetrics.NewMetrics(nil),
		Concurrency: cfg.WorkerConcurrency,
		Tasks: jobs.Handlers{
			Mailer:   jobs.LogMailer{From: cfg.MailFrom, Logger: logger},
			Activity: store.New(pool),
			Keys:     shared.NewIdempotencyStore(pool),
			Logger:   logger,
		},
		Cron: []jobs.CronRegistration{
			{Spec: idempotencyCleanupSpec, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
