package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stockline/internal/core/id"
	"stockline/internal/domain/catalog"
	"stockline/internal/infrastructure/storage/postgres"
)

// Repo implements catalog.Repository.
type Repo struct {
	items     baseRepo[catalog.Item]
	locations baseRepo[catalog.Location]
	methods   baseRepo[catalog.PaymentMethod]
}

// New creates the catalog repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		items:     newBaseRepo[catalog.Item](txm, "items", "item"),
		locations: newBaseRepo[catalog.Location](txm, "locations", "location"),
		methods:   newBaseRepo[catalog.PaymentMethod](txm, "payment_methods", "payment method"),
	}
}

var _ catalog.Repository = (*Repo)(nil)

func (r *Repo) CreateItem(ctx context.Context, item *catalog.Item) error {
	return r.items.create(ctx, item)
}

func (r *Repo) UpdateItem(ctx context.Context, item *catalog.Item) error {
	return r.items.update(ctx, item.ID, item)
}

func (r *Repo) GetItem(ctx context.Context, itemID id.ID) (*catalog.Item, error) {
	return r.items.getByID(ctx, itemID)
}

// ListItems orders by name. Search matches a case-insensitive substring.
func (r *Repo) ListItems(ctx context.Context, filter catalog.ItemFilter) ([]catalog.Item, error) {
	q := r.items.baseSelect()
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"name": "%" + filter.Search + "%"})
	}
	return r.items.list(ctx, q.OrderBy("name", "id"), filter.Limit, filter.Offset)
}

func (r *Repo) CreateLocation(ctx context.Context, loc *catalog.Location) error {
	return r.locations.create(ctx, loc)
}

func (r *Repo) GetLocation(ctx context.Context, locationID id.ID) (*catalog.Location, error) {
	return r.locations.getByID(ctx, locationID)
}

func (r *Repo) ListLocations(ctx context.Context) ([]catalog.Location, error) {
	return r.locations.list(ctx, r.locations.baseSelect().OrderBy("created_at", "id"), 0, 0)
}

// FindPrincipal returns the oldest active principal location, or nil.
func (r *Repo) FindPrincipal(ctx context.Context) (*catalog.Location, error) {
	return r.locations.findOne(ctx, r.locations.baseSelect().
		Where(squirrel.Eq{"type": catalog.LocationPrincipal, "active": true}).
		OrderBy("created_at", "id"))
}

// FindOwnedBy returns the active location owned by actorID, or nil.
func (r *Repo) FindOwnedBy(ctx context.Context, actorID id.ID) (*catalog.Location, error) {
	return r.locations.findOne(ctx, r.locations.baseSelect().
		Where(squirrel.Eq{"owner_id": actorID, "active": true}).
		OrderBy("created_at"))
}

func (r *Repo) GetPaymentMethod(ctx context.Context, methodID id.ID) (*catalog.PaymentMethod, error) {
	return r.methods.getByID(ctx, methodID)
}

func (r *Repo) ListPaymentMethods(ctx context.Context) ([]catalog.PaymentMethod, error) {
	return r.methods.list(ctx, r.methods.baseSelect().OrderBy("code"), 0, 0)
}
