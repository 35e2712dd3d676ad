package memory

import (
	"context"
	"slices"
	"strings"

	"stockline/internal/core/apperror"
	"stockline/internal/core/id"
	"stockline/internal/domain/catalog"
)

// CatalogRepo implements catalog.Repository.
type CatalogRepo struct{ s *Store }

// Catalog returns the catalog view of the store.
func (s *Store) Catalog() *CatalogRepo { return &CatalogRepo{s: s} }

func (r *CatalogRepo) CreateItem(_ context.Context, item *catalog.Item) error {
	if err := r.s.lock("CreateItem"); err != nil {
		r.s.unlock()
		return err
	}
	defer r.s.unlock()
	r.s.st.items[item.ID] = *item
	return nil
}

func (r *CatalogRepo) UpdateItem(_ context.Context, item *catalog.Item) error {
	if err := r.s.lock("UpdateItem"); err != nil {
		r.s.unlock()
		return err
	}
	defer r.s.unlock()
	if _, ok := r.s.st.items[item.ID]; !ok {
		return apperror.NewNotFound("item", item.ID)
	}
	r.s.st.items[item.ID] = *item
	return nil
}

func (r *CatalogRepo) GetItem(_ context.Context, itemID id.ID) (*catalog.Item, error) {
	if err := r.s.lock("GetItem"); err != nil {
		r.s.unlock()
		return nil, err
	}
	defer r.s.unlock()
	item, ok := r.s.st.items[itemID]
	if !ok {
		return nil, apperror.NewNotFound("item", itemID)
	}
	return &item, nil
}

func (r *CatalogRepo) ListItems(_ context.Context, filter catalog.ItemFilter) ([]catalog.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]catalog.Item, 0, len(r.s.st.items))
	for _, it := range r.s.st.items {
		if filter.Search != "" && !strings.Contains(strings.ToLower(it.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, it)
	}
	slices.SortFunc(out, func(a, b catalog.Item) int { return strings.Compare(a.Name, b.Name) })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *CatalogRepo) CreateLocation(_ context.Context, loc *catalog.Location) error {
	if err := r.s.lock("CreateLocation"); err != nil {
		r.s.unlock()
		return err
	}
	defer r.s.unlock()
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = r.s.nextCreatedAt()
	}
	r.s.st.locations[loc.ID] = *loc
	return nil
}

func (r *CatalogRepo) GetLocation(_ context.Context, locationID id.ID) (*catalog.Location, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	loc, ok := r.s.st.locations[locationID]
	if !ok {
		return nil, apperror.NewNotFound("location", locationID)
	}
	return &loc, nil
}

func (r *CatalogRepo) ListLocations(_ context.Context) ([]catalog.Location, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sortedLocations(), nil
}

func (r *CatalogRepo) sortedLocations() []catalog.Location {
	out := make([]catalog.Location, 0, len(r.s.st.locations))
	for _, l := range r.s.st.locations {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b catalog.Location) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

func (r *CatalogRepo) FindPrincipal(_ context.Context) (*catalog.Location, error) {
	if err := r.s.lock("FindPrincipal"); err != nil {
		r.s.unlock()
		return nil, err
	}
	defer r.s.unlock()
	for _, l := range r.sortedLocations() {
		if l.Active && l.IsPrincipal() {
			return &l, nil
		}
	}
	return nil, nil
}

func (r *CatalogRepo) FindOwnedBy(_ context.Context, actorID id.ID) (*catalog.Location, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.sortedLocations() {
		if l.Active && l.OwnerID != nil && *l.OwnerID == actorID {
			return &l, nil
		}
	}
	return nil, nil
}

// AddPaymentMethod seeds a payment method.
func (r *CatalogRepo) AddPaymentMethod(m catalog.PaymentMethod) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.st.methods[m.ID] = m
}

func (r *CatalogRepo) GetPaymentMethod(_ context.Context, methodID id.ID) (*catalog.PaymentMethod, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.st.methods[methodID]
	if !ok {
		return nil, apperror.NewNotFound("payment method", methodID)
	}
	return &m, nil
}

func (r *CatalogRepo) ListPaymentMethods(_ context.Context) ([]catalog.PaymentMethod, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]catalog.PaymentMethod, 0, len(r.s.st.methods))
	for _, m := range r.s.st.methods {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b catalog.PaymentMethod) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

var _ catalog.Repository = (*CatalogRepo)(nil)

func paginate[T any](rows []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(rows) {
			return []T{}
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
