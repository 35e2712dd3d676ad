package main

import (
	"context"
	"time"

	"stockline/internal/config"
	"stockline/pkg/logger"
)

// Outbox is the relay surface the worker drives.
type Outbox interface {
	ProcessBatch(ctx context.Context) (int, error)
	PurgePublished(ctx context.Context, retention time.Duration) (int64, error)
}

// Expirer drops expired idempotency records.
type Expirer interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type worker struct {
	outbox      Outbox
	idempotency Expirer
	cfg         config.WorkerConfig
	log         *logger.Logger
}

// Run polls the outbox until ctx is cancelled. A full batch is followed
// immediately by another poll so a backlog drains without waiting.
func (w *worker) Run(ctx context.Context) {
	poll := time.NewTicker(w.cfg.PollInterval)
	defer poll.Stop()
	cleanup := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			w.drain(ctx)
		case <-cleanup.C:
			w.cleanup(ctx)
		}
	}
}

func (w *worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.outbox.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return
		}
		if n > 0 {
			w.log.Debugw("outbox batch published", "count", n)
		}
		if n < w.cfg.BatchSize {
			return
		}
	}
}

func (w *worker) cleanup(ctx context.Context) {
	if n, err := w.idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
	} else if n > 0 {
		w.log.Infow("expired idempotency keys removed", "count", n)
	}

	if n, err := w.outbox.PurgePublished(ctx, w.cfg.OutboxRetention); err != nil {
		w.log.Errorw("outbox purge failed", "error", err)
	} else if n > 0 {
		w.log.Infow("published outbox events purged", "count", n)
	}
}
