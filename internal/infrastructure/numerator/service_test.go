package numerator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "stockline/internal/core/numerator"
)

type fakeRow struct {
	val int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.val
	return nil
}

// fakeSequences emulates the upsert on document_sequences.
type fakeSequences struct {
	values map[string]int64
	calls  int
	err    error
}

func (f *fakeSequences) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.calls++
	if f.err != nil {
		return fakeRow{err: f.err}
	}
	key := args[0].(string)
	inc := int64(1)
	if len(args) > 1 {
		inc = args[1].(int64)
	}
	f.values[key] += inc
	return fakeRow{val: f.values[key]}
}

func newFake() (*fakeSequences, *Service) {
	f := &fakeSequences{values: make(map[string]int64)}
	return f, New(func(context.Context) Querier { return f })
}

func TestGetNextNumber_Strict(t *testing.T) {
	f, s := newFake()
	ctx := context.Background()
	period := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	first, err := s.GetNextNumber(ctx, corenumerator.DefaultConfig("SL"), nil, period)
	require.NoError(t, err)
	second, err := s.GetNextNumber(ctx, corenumerator.DefaultConfig("SL"), nil, period)
	require.NoError(t, err)
	other, err := s.GetNextNumber(ctx, corenumerator.DefaultConfig("TR"), nil, period)
	require.NoError(t, err)

	assert.Equal(t, "SL-2026-00001", first)
	assert.Equal(t, "SL-2026-00002", second)
	assert.Equal(t, "TR-2026-00001", other)
	assert.Equal(t, 3, f.calls)
}

func TestGetNextNumber_YearReset(t *testing.T) {
	_, s := newFake()
	ctx := context.Background()

	_, err := s.GetNextNumber(ctx, corenumerator.DefaultConfig("SL"), nil, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	got, err := s.GetNextNumber(ctx, corenumerator.DefaultConfig("SL"), nil, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "SL-2026-00001", got)
}

func TestGetNextNumber_CachedReservesRanges(t *testing.T) {
	f, s := newFake()
	ctx := context.Background()
	period := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 2}

	var got []string
	for range 3 {
		n, err := s.GetNextNumber(ctx, corenumerator.DefaultConfig("SL"), opts, period)
		require.NoError(t, err)
		got = append(got, n)
	}
	assert.Equal(t, []string{"SL-2026-00001", "SL-2026-00002", "SL-2026-00003"}, got)
	assert.Equal(t, 2, f.calls)
}

func TestGetNextNumber_Error(t *testing.T) {
	f, s := newFake()
	f.err = errors.New("conn closed")

	_, err := s.GetNextNumber(context.Background(), corenumerator.DefaultConfig("SL"), nil, time.Now())
	require.ErrorIs(t, err, f.err)
}

func TestSequenceKey(t *testing.T) {
	period := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	cfg := corenumerator.DefaultConfig("SL")
	assert.Equal(t, "SL_2026", SequenceKey(cfg, period))
	cfg.ResetPeriod = "month"
	assert.Equal(t, "SL_2026_07", SequenceKey(cfg, period))
	cfg.ResetPeriod = "never"
	assert.Equal(t, "SL", SequenceKey(cfg, period))
}
