package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stockline/internal/config"
	"stockline/pkg/logger"
)

type fakeOutbox struct {
	batches   []int
	calls     int
	purged    time.Duration
	purgeErr  error
	processed int
}

func (f *fakeOutbox) ProcessBatch(context.Context) (int, error) {
	f.calls++
	if len(f.batches) == 0 {
		return 0, nil
	}
	n := f.batches[0]
	f.batches = f.batches[1:]
	if n < 0 {
		return 0, errors.New("db down")
	}
	f.processed += n
	return n, nil
}

func (f *fakeOutbox) PurgePublished(_ context.Context, retention time.Duration) (int64, error) {
	f.purged = retention
	return 3, f.purgeErr
}

type fakeExpirer struct{ calls int }

func (f *fakeExpirer) CleanupExpired(context.Context) (int64, error) {
	f.calls++
	return 1, nil
}

func newTestWorker(outbox Outbox, expirer Expirer) *worker {
	return &worker{
		outbox:      outbox,
		idempotency: expirer,
		cfg: config.WorkerConfig{
			PollInterval:    time.Millisecond,
			BatchSize:       10,
			CleanupInterval: time.Millisecond,
			OutboxRetention: time.Hour,
		},
		log: logger.NewNop(),
	}
}

func TestWorker_DrainContinuesWhileBatchesAreFull(t *testing.T) {
	outbox := &fakeOutbox{batches: []int{10, 10, 4, 10}}
	w := newTestWorker(outbox, &fakeExpirer{})

	w.drain(context.Background())

	assert.Equal(t, 3, outbox.calls)
	assert.Equal(t, 24, outbox.processed)
}

func TestWorker_DrainStopsOnError(t *testing.T) {
	outbox := &fakeOutbox{batches: []int{10, -1, 10}}
	w := newTestWorker(outbox, &fakeExpirer{})

	w.drain(context.Background())

	assert.Equal(t, 2, outbox.calls)
}

func TestWorker_Cleanup(t *testing.T) {
	outbox := &fakeOutbox{purgeErr: errors.New("ignored")}
	expirer := &fakeExpirer{}
	w := newTestWorker(outbox, expirer)

	w.cleanup(context.Background())

	assert.Equal(t, 1, expirer.calls)
	assert.Equal(t, time.Hour, outbox.purged)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	w := newTestWorker(&fakeOutbox{}, &fakeExpirer{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
