package idempotency

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockline/internal/config"
	"stockline/internal/core/apperror"
)

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = toString(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = toString(value)
	return redis.NewBoolResult(true, nil)
}

func toString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

func newTestStore(now *time.Time) *RedisStore {
	return &RedisStore{
		client: newMockCmdable(),
		ttl:    time.Hour,
		now:    func() time.Time { return *now },
	}
}

func TestRedisStore_AcquireCompleteReplay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := newTestStore(&now)

	replay, err := s.Acquire(ctx, "k1", "actor", "POST /sales", "hash")
	require.NoError(t, err)
	assert.Nil(t, replay)

	_, err = s.Acquire(ctx, "k1", "actor", "POST /sales", "hash")
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency), "in-flight key conflicts")

	require.NoError(t, s.Complete(ctx, "k1", http.StatusCreated, "application/json", map[string]string{"id": "s1"}))

	replay, err = s.Acquire(ctx, "k1", "actor", "POST /sales", "hash")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, http.StatusCreated, replay.StatusCode)
	assert.JSONEq(t, `{"id":"s1"}`, string(replay.Body))
}

func TestRedisStore_Mismatch(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := newTestStore(&now)

	_, err := s.Acquire(ctx, "k1", "actor", "POST /sales", "hash-a")
	require.NoError(t, err)

	_, err = s.Acquire(ctx, "k1", "actor", "POST /sales", "hash-b")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)
	assert.Equal(t, "Idempotency key mismatch", appErr.Message)
}

func TestRedisStore_ReclaimsStalePending(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := newTestStore(&now)

	_, err := s.Acquire(ctx, "k1", "actor", "op", "hash")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	replay, err := s.Acquire(ctx, "k1", "actor", "op", "hash")
	require.NoError(t, err)
	assert.Nil(t, replay)
}

func TestRedisStore_FailedIsReplayed(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := newTestStore(&now)

	_, err := s.Acquire(ctx, "k1", "actor", "op", "hash")
	require.NoError(t, err)
	require.NoError(t, s.Fail(ctx, "k1", http.StatusUnprocessableEntity, "", []byte(`{"code":"OVER_PAYMENT"}`)))

	replay, err := s.Acquire(ctx, "k1", "actor", "op", "hash")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, http.StatusUnprocessableEntity, replay.StatusCode)
	assert.Equal(t, "application/json", replay.ContentType)
}

func TestRedisOptions(t *testing.T) {
	_, err := redisOptions(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := redisOptions(config.RedisConfig{URL: "redis://:secret@cache:6380/2", PoolSize: 7})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = redisOptions(config.RedisConfig{Address: "localhost:6379", DB: 1})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 1, opts.DB)
}
