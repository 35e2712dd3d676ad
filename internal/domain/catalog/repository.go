package catalog

import (
	"context"

	"stockline/internal/core/id"
)

// ItemFilter narrows item listings.
type ItemFilter struct {
	Search string
	Limit  int
	Offset int
}

// Repository is the storage contract of the catalog.
type Repository interface {
	CreateItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, itemID id.ID) (*Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, error)

	CreateLocation(ctx context.Context, loc *Location) error
	GetLocation(ctx context.Context, locationID id.ID) (*Location, error)
	ListLocations(ctx context.Context) ([]Location, error)

	// FindPrincipal returns the oldest active principal location, or nil.
	FindPrincipal(ctx context.Context) (*Location, error)
	// FindOwnedBy returns the active location owned by actorID, or nil.
	FindOwnedBy(ctx context.Context, actorID id.ID) (*Location, error)

	GetPaymentMethod(ctx context.Context, methodID id.ID) (*PaymentMethod, error)
	ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error)
}
