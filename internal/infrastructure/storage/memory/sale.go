package memory

import (
	"context"
	"slices"

	"stockline/internal/core/apperror"
	"stockline/internal/core/id"
	"stockline/internal/domain/sale"
)

// SaleRepo implements sale.Repository.
type SaleRepo struct{ s *Store }

// Sales returns the sale view of the store.
func (s *Store) Sales() *SaleRepo { return &SaleRepo{s: s} }

func (r *SaleRepo) Create(_ context.Context, sl *sale.Sale) error {
	if err := r.s.lock("CreateSale"); err != nil {
		r.s.unlock()
		return err
	}
	defer r.s.unlock()
	if _, ok := r.s.st.sales[sl.ID]; ok {
		return apperror.NewDuplicate("sale", "id", sl.ID.String())
	}
	for _, other := range r.s.st.sales {
		if other.Number == sl.Number {
			return apperror.NewDuplicate("sale", "number", sl.Number)
		}
	}
	cp := *sl
	cp.Items = slices.Clone(sl.Items)
	cp.Payments = slices.Clone(sl.Payments)
	r.s.st.sales[sl.ID] = cp
	return nil
}

func (r *SaleRepo) get(op string, saleID id.ID) (*sale.Sale, error) {
	if err := r.s.lock(op); err != nil {
		r.s.unlock()
		return nil, err
	}
	defer r.s.unlock()
	sl, ok := r.s.st.sales[saleID]
	if !ok {
		return nil, apperror.NewNotFound("sale", saleID)
	}
	sl.Items = slices.Clone(sl.Items)
	sl.Payments = slices.Clone(sl.Payments)
	return &sl, nil
}

func (r *SaleRepo) GetForUpdate(_ context.Context, saleID id.ID) (*sale.Sale, error) {
	return r.get("GetSaleForUpdate", saleID)
}

func (r *SaleRepo) Get(_ context.Context, saleID id.ID) (*sale.Sale, error) {
	return r.get("GetSale", saleID)
}

func (r *SaleRepo) List(_ context.Context, filter sale.ListFilter) ([]sale.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]sale.Sale, 0)
	for _, sl := range r.s.st.sales {
		if filter.Status != nil && sl.Status != *filter.Status {
			continue
		}
		if filter.LocationID != nil && sl.LocationID != *filter.LocationID {
			continue
		}
		if filter.ActorID != nil && sl.ActorID != *filter.ActorID {
			continue
		}
		sl.Items = nil
		sl.Payments = nil
		out = append(out, sl)
	}
	slices.SortFunc(out, func(a, b sale.Sale) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *SaleRepo) UpdatePaymentState(_ context.Context, sl *sale.Sale) error {
	if err := r.s.lock("UpdatePaymentState"); err != nil {
		r.s.unlock()
		return err
	}
	defer r.s.unlock()
	cur, ok := r.s.st.sales[sl.ID]
	if !ok {
		return apperror.NewNotFound("sale", sl.ID)
	}
	cur.Paid = sl.Paid
	cur.Balance = sl.Balance
	cur.Status = sl.Status
	cur.UpdatedAt = sl.UpdatedAt
	r.s.st.sales[sl.ID] = cur
	return nil
}

func (r *SaleRepo) MarkDeliverySettled(_ context.Context, sl *sale.Sale) error {
	if err := r.s.lock("MarkDeliverySettled"); err != nil {
		r.s.unlock()
		return err
	}
	defer r.s.unlock()
	cur, ok := r.s.st.sales[sl.ID]
	if !ok {
		return apperror.NewNotFound("sale", sl.ID)
	}
	cur.DeliverySettledAt = sl.DeliverySettledAt
	cur.UpdatedAt = sl.UpdatedAt
	r.s.st.sales[sl.ID] = cur
	return nil
}

func (r *SaleRepo) AddPayment(_ context.Context, p *sale.Payment) error {
	if err := r.s.lock("AddPayment"); err != nil {
		r.s.unlock()
		return err
	}
	defer r.s.unlock()
	cur, ok := r.s.st.sales[p.SaleID]
	if !ok {
		return apperror.NewNotFound("sale", p.SaleID)
	}
	cur.Payments = append(slices.Clone(cur.Payments), *p)
	r.s.st.sales[p.SaleID] = cur
	return nil
}

// SaleCount returns the number of stored sales.
func (r *SaleRepo) SaleCount() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.st.sales)
}

var _ sale.Repository = (*SaleRepo)(nil)
