// Package main is the entry point for the stockline background worker.
// It relays outbox events and purges expired bookkeeping rows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"stockline/internal/config"
	"stockline/internal/infrastructure/storage/postgres"
	"stockline/internal/infrastructure/telemetry"
	"stockline/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDev(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry, version)
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	poolCfg := postgres.DefaultPoolConfig(cfg.DB.DSN)
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txOpts := postgres.DefaultTxOptions()
	txOpts.StatementTimeout = cfg.DB.StatementTimeout
	txOpts.LockTimeout = cfg.DB.LockTimeout
	txm := postgres.NewTxManagerWithOptions(pool, txOpts)

	var handler postgres.OutboxHandler = logHandler(log.WithComponent("outbox"))
	if cfg.Worker.WebhookURL != "" {
		handler = newWebhookPublisher(cfg.Worker.WebhookURL, cfg.Worker.WebhookTimeout)
		log.Infow("relaying outbox events to webhook", "url", cfg.Worker.WebhookURL)
	}

	w := &worker{
		outbox:      postgres.NewOutboxRelay(txm, cfg.Worker.BatchSize, handler),
		idempotency: postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL),
		cfg:         cfg.Worker,
		log:         log.WithComponent("worker"),
	}

	log.Infow("starting worker",
		"version", version,
		"poll_interval", cfg.Worker.PollInterval,
		"batch_size", cfg.Worker.BatchSize,
	)
	w.Run(ctx)
	log.Info("worker stopped")
}

// logHandler acknowledges every event by logging it.
func logHandler(log *logger.Logger) postgres.OutboxHandlerFunc {
	return func(ctx context.Context, msg *postgres.OutboxMessage) error {
		log.Infow("outbox event",
			"event_id", msg.ID,
			"event_type", msg.EventType,
			"aggregate_id", msg.AggregateID,
			"retry", msg.RetryCount,
		)
		return nil
	}
}
