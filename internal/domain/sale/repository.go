package sale

import (
	"context"

	"stockline/internal/core/id"
)

// Repository is the storage contract for sales.
type Repository interface {
	// Create inserts the header, its items and its payments.
	Create(ctx context.Context, s *Sale) error

	// GetForUpdate locks the sale header row.
	GetForUpdate(ctx context.Context, saleID id.ID) (*Sale, error)

	// Get reads a sale with its items and payments.
	Get(ctx context.Context, saleID id.ID) (*Sale, error)

	List(ctx context.Context, filter ListFilter) ([]Sale, error)

	// UpdatePaymentState persists Paid, Balance, Status and UpdatedAt.
	UpdatePaymentState(ctx context.Context, s *Sale) error

	// MarkDeliverySettled persists DeliverySettledAt and UpdatedAt.
	MarkDeliverySettled(ctx context.Context, s *Sale) error

	AddPayment(ctx context.Context, p *Payment) error
}
