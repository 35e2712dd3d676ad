package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stockline/internal/config"
	"stockline/internal/core/apperror"
)

const redisKeyPrefix = "stockline:idempotency:"

// stalePending is how long a pending key blocks retries before it is
// considered abandoned by a crashed request.
const stalePending = time.Minute

type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

type redisRecord struct {
	ActorID     string    `json:"actor_id"`
	Operation   string    `json:"operation"`
	RequestHash string    `json:"request_hash"`
	Status      Status    `json:"status"`
	StatusCode  int       `json:"status_code,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RedisStore keeps keys in Redis with a TTL.
type RedisStore struct {
	client cmdable
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore wraps a go-redis client.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

// NewRedisClient opens and pings a client from configuration. REDIS_URL wins
// over the discrete address settings.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func redisOptions(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Acquire implements Store.
func (s *RedisStore) Acquire(ctx context.Context, key, actorID, operation, requestHash string) (*Replay, error) {
	now := s.now().UTC()
	pending := redisRecord{
		ActorID:     actorID,
		Operation:   operation,
		RequestHash: requestHash,
		Status:      StatusPending,
		UpdatedAt:   now,
	}
	payload, err := json.Marshal(pending)
	if err != nil {
		return nil, fmt.Errorf("marshal idempotency record: %w", err)
	}

	acquired, err := s.client.SetNX(ctx, redisKeyPrefix+key, payload, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if acquired {
		return nil, nil
	}

	stored, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		// expired between SETNX and GET
		return s.Acquire(ctx, key, actorID, operation, requestHash)
	}

	if stored.ActorID != actorID || stored.Operation != operation || stored.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", stored.Operation).
			WithDetail("request_operation", operation)
	}

	switch stored.Status {
	case StatusSuccess, StatusFailed:
		return NormalizeReplay(&Replay{
			StatusCode:  stored.StatusCode,
			ContentType: stored.ContentType,
			Body:        stored.Body,
		}), nil
	default:
		if now.Sub(stored.UpdatedAt) > stalePending {
			if err := s.client.Set(ctx, redisKeyPrefix+key, payload, s.ttl).Err(); err != nil {
				return nil, fmt.Errorf("reclaim stale key: %w", err)
			}
			return nil, nil
		}
		return nil, apperror.NewIdempotencyConflict(key)
	}
}

// Complete implements Store.
func (s *RedisStore) Complete(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, StatusSuccess, statusCode, contentType, response)
}

// Fail implements Store.
func (s *RedisStore) Fail(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, StatusFailed, statusCode, contentType, response)
}

func (s *RedisStore) finish(ctx context.Context, key string, status Status, statusCode int, contentType string, response any) error {
	rec, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &redisRecord{}
	}
	rec.Status = status
	rec.StatusCode = statusCode
	rec.ContentType = contentType
	rec.Body = EncodeResponse(response)
	rec.UpdatedAt = s.now().UTC()

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}
	return s.client.Set(ctx, redisKeyPrefix+key, payload, s.ttl).Err()
}

func (s *RedisStore) load(ctx context.Context, key string) (*redisRecord, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}
	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}

var _ Store = (*RedisStore)(nil)
