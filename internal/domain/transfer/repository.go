package transfer

import (
	"context"

	"stockline/internal/core/id"
)

// Repository is the storage contract for transfers.
type Repository interface {
	// Create inserts the header and its lines.
	Create(ctx context.Context, t *Transfer) error
	Get(ctx context.Context, transferID id.ID) (*Transfer, error)
	List(ctx context.Context, filter ListFilter) ([]Transfer, error)
}
