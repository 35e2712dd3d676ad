package stock

import (
	"context"

	"stockline/internal/core/id"
	"stockline/internal/core/types"
)

// Repository is the storage contract of the ledger.
// Lock methods must be called inside a transaction.
type Repository interface {
	// GetForUpdate locks an existing record. Returns nil when absent.
	GetForUpdate(ctx context.Context, itemID, locationID id.ID) (*Record, error)

	// EnsureForUpdate creates a zero record when absent and locks it.
	EnsureForUpdate(ctx context.Context, itemID, locationID id.ID) (*Record, error)

	// Save persists on_hand, reserved and min_stock of a locked record.
	Save(ctx context.Context, rec *Record) error

	// Get reads a record without locking. Returns nil when absent.
	Get(ctx context.Context, itemID, locationID id.ID) (*Record, error)

	// SumAvailable totals on_hand - reserved across all locations.
	SumAvailable(ctx context.Context, itemID id.ID) (types.Quantity, error)

	List(ctx context.Context, filter ListFilter) ([]Row, error)
	Summary(ctx context.Context, filter SummaryFilter) ([]SummaryRow, error)

	CreateMovements(ctx context.Context, movements []Movement) error
	MovementsByRecorder(ctx context.Context, recorderID id.ID) ([]Movement, error)
}
