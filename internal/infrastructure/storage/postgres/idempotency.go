package postgres

import (
	"context"
	"fmt"
	"time"

	"stockline/internal/core/apperror"
	"stockline/internal/infrastructure/idempotency"
)

// IdempotencyStore keeps idempotency keys in the idempotency_keys table.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
	now       func() time.Time
}

// NewIdempotencyStore creates a PostgreSQL-backed idempotency store.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl, now: time.Now}
}

type idempotencyRow struct {
	ActorID     string
	Operation   string
	Status      idempotency.Status
	RequestHash string
	Response    []byte
	StatusCode  *int
	ContentType *string
	UpdatedAt   time.Time
	Inserted    bool
}

// Acquire implements idempotency.Store.
func (s *IdempotencyStore) Acquire(ctx context.Context, key, actorID, operation, requestHash string) (*idempotency.Replay, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)

	// xmax = 0 only for a freshly inserted row
	var row idempotencyRow
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, actor_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			expires_at = GREATEST(idempotency_keys.expires_at, EXCLUDED.expires_at)
		RETURNING actor_id, operation, status, request_hash, response, response_status,
			response_content_type, updated_at, (xmax = 0) AS inserted
	`, key, actorID, operation, idempotency.StatusPending, requestHash, now, expiresAt).Scan(
		&row.ActorID, &row.Operation, &row.Status, &row.RequestHash, &row.Response,
		&row.StatusCode, &row.ContentType, &row.UpdatedAt, &row.Inserted,
	)
	if err != nil {
		return nil, TranslateError(fmt.Errorf("acquire idempotency key: %w", err), "idempotency key")
	}
	if row.Inserted {
		return nil, nil
	}

	if row.ActorID != actorID || row.Operation != operation || row.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", row.Operation).
			WithDetail("request_operation", operation)
	}

	switch row.Status {
	case idempotency.StatusSuccess, idempotency.StatusFailed:
		replay := &idempotency.Replay{Body: row.Response}
		if row.StatusCode != nil {
			replay.StatusCode = *row.StatusCode
		}
		if row.ContentType != nil {
			replay.ContentType = *row.ContentType
		}
		return idempotency.NormalizeReplay(replay), nil
	}

	// pending: reclaim a key abandoned by a crashed request
	if now.Sub(row.UpdatedAt) > time.Minute {
		tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
			UPDATE idempotency_keys SET updated_at = $1
			WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4
		`, now, key, idempotency.StatusPending, row.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("reclaim stale key: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil, nil
		}
	}
	return nil, apperror.NewIdempotencyConflict(key)
}

// Complete implements idempotency.Store.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, idempotency.StatusSuccess, statusCode, contentType, response)
}

// Fail implements idempotency.Store.
func (s *IdempotencyStore) Fail(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, idempotency.StatusFailed, statusCode, contentType, response)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status idempotency.Status, statusCode int, contentType string, response any) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE idempotency_keys
		SET status = $1,
		    response = $2,
		    response_status = $3,
		    response_content_type = $4,
		    updated_at = $5
		WHERE idempotency_key = $6
	`, status, idempotency.EncodeResponse(response), statusCode, contentType, s.now().UTC(), key)
	if err != nil {
		return fmt.Errorf("finish idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired keys.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM idempotency_keys WHERE expires_at < $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ idempotency.Store = (*IdempotencyStore)(nil)
