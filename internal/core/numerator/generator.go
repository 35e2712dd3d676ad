package numerator

import (
	"context"
	"time"
)

// Generator issues sequential document numbers.
type Generator interface {
	// GetNextNumber returns the next number for cfg in period,
	// e.g. SL-2026-00042.
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)
}
