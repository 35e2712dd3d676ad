package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockline/internal/core/id"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// DefaultOutboxMaxRetries is how often a message is handed out before it is marked failed.
const DefaultOutboxMaxRetries = 5

// OutboxMessage is one row of outbox_events.
type OutboxMessage struct {
	ID            id.ID           `db:"id"`
	AggregateType string          `db:"aggregate_type"` // e.g. "sale", "transfer"
	AggregateID   id.ID           `db:"aggregate_id"`
	EventType     string          `db:"event_type"` // e.g. "sale.create", "sale.payment"
	Payload       json.RawMessage `db:"payload"`
	Status        OutboxStatus    `db:"status"`
	RetryCount    int             `db:"retry_count"`
	LastError     *string         `db:"last_error"`
	NextRetryAt   *time.Time      `db:"next_retry_at"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
}

// DomainEvent is an event to be published via the outbox.
type DomainEvent struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// OutboxPublisher writes events to the outbox in the caller's transaction,
// so an event exists exactly when the change that produced it committed.
type OutboxPublisher struct {
	txManager *TxManager
	builder   sq.StatementBuilderType
}

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{
		txManager: txManager,
		builder:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Publish writes an event to the outbox. Must be called inside a transaction.
func (p *OutboxPublisher) Publish(ctx context.Context, event DomainEvent) error {
	return p.PublishBatch(ctx, []DomainEvent{event})
}

// PublishBatch writes several events with one INSERT.
func (p *OutboxPublisher) PublishBatch(ctx context.Context, events []DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	now := time.Now().UTC()
	q := p.builder.Insert("outbox_events").
		Columns("id", "aggregate_type", "aggregate_id", "event_type", "payload", "status", "created_at")
	for _, event := range events {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		q = q.Values(id.New(), event.AggregateType, event.AggregateID, event.EventType, payload, OutboxStatusPending, now)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build outbox insert: %w", err)
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return TranslateError(fmt.Errorf("insert outbox message: %w", err), "outbox message")
	}
	return nil
}

// OutboxHandler processes outbox messages.
type OutboxHandler interface {
	// Handle processes a message and returns error if failed
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error { return f(ctx, msg) }

// OutboxRelay claims pending messages and hands them to a handler.
// Used by the background worker.
type OutboxRelay struct {
	txManager  *TxManager
	builder    sq.StatementBuilderType
	batchSize  int
	maxRetries int
	handler    OutboxHandler
	now        func() time.Time
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, batchSize int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		txManager:  txManager,
		builder:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		batchSize:  batchSize,
		maxRetries: DefaultOutboxMaxRetries,
		handler:    handler,
		now:        time.Now,
	}
}

// ProcessBatch claims up to batchSize due messages with FOR UPDATE SKIP LOCKED,
// so several workers never handle the same message. Returns the number of
// messages handled successfully.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		processed = 0
		now := r.now().UTC()

		sql, args, err := r.builder.
			Select("id", "aggregate_type", "aggregate_id", "event_type", "payload", "status",
				"retry_count", "last_error", "next_retry_at", "created_at", "published_at").
			From("outbox_events").
			Where(sq.Eq{"status": OutboxStatusPending}).
			Where(sq.Or{sq.Eq{"next_retry_at": nil}, sq.LtOrEq{"next_retry_at": now}}).
			OrderBy("created_at").
			Limit(uint64(r.batchSize)).
			Suffix("FOR UPDATE SKIP LOCKED").
			ToSql()
		if err != nil {
			return fmt.Errorf("build outbox select: %w", err)
		}

		var messages []*OutboxMessage
		if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &messages, sql, args...); err != nil {
			return TranslateError(fmt.Errorf("fetch outbox messages: %w", err), "outbox message")
		}

		for _, msg := range messages {
			if err := r.processMessage(ctx, msg, now); err != nil {
				return err
			}
			if msg.Status == OutboxStatusPublished {
				processed++
			}
		}
		return nil
	})
	return processed, err
}

// processMessage hands msg to the handler and records the outcome. A handler
// error is not returned; it schedules a retry with linear backoff instead.
func (r *OutboxRelay) processMessage(ctx context.Context, msg *OutboxMessage, now time.Time) error {
	update := r.builder.Update("outbox_events").Where(sq.Eq{"id": msg.ID})

	if handleErr := r.handler.Handle(ctx, msg); handleErr != nil {
		msg.RetryCount++
		errStr := handleErr.Error()
		msg.LastError = &errStr
		next := now.Add(time.Duration(msg.RetryCount) * time.Minute)
		msg.NextRetryAt = &next
		if msg.RetryCount >= r.maxRetries {
			msg.Status = OutboxStatusFailed
		}
		update = update.
			Set("retry_count", msg.RetryCount).
			Set("last_error", errStr).
			Set("next_retry_at", next).
			Set("status", msg.Status)
	} else {
		msg.Status = OutboxStatusPublished
		msg.PublishedAt = &now
		update = update.
			Set("status", msg.Status).
			Set("published_at", now)
	}

	sql, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build outbox update: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return TranslateError(fmt.Errorf("update outbox message: %w", err), "outbox message")
	}
	return nil
}

// PurgePublished deletes published messages older than retention.
func (r *OutboxRelay) PurgePublished(ctx context.Context, retention time.Duration) (int64, error) {
	sql, args, err := r.builder.Delete("outbox_events").
		Where(sq.Eq{"status": OutboxStatusPublished}).
		Where(sq.Lt{"published_at": r.now().UTC().Add(-retention)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build outbox purge: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, TranslateError(fmt.Errorf("purge outbox: %w", err), "outbox message")
	}
	return tag.RowsAffected(), nil
}
