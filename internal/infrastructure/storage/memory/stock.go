package memory

import (
	"context"
	"slices"
	"strings"

	"stockline/internal/core/id"
	"stockline/internal/core/types"
	"stockline/internal/domain/stock"
)

// StockRepo implements stock.Repository.
type StockRepo struct{ s *Store }

// Stock returns the stock view of the store.
func (s *Store) Stock() *StockRepo { return &StockRepo{s: s} }

func (r *StockRepo) GetForUpdate(_ context.Context, itemID, locationID id.ID) (*stock.Record, error) {
	if err := r.s.lock("GetForUpdate"); err != nil {
		r.s.unlock()
		return nil, err
	}
	defer r.s.unlock()
	rec, ok := r.s.st.stock[stockKey{itemID, locationID}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *StockRepo) EnsureForUpdate(_ context.Context, itemID, locationID id.ID) (*stock.Record, error) {
	if err := r.s.lock("EnsureForUpdate"); err != nil {
		r.s.unlock()
		return nil, err
	}
	defer r.s.unlock()
	key := stockKey{itemID, locationID}
	rec, ok := r.s.st.stock[key]
	if !ok {
		rec = stock.Record{ItemID: itemID, LocationID: locationID}
		r.s.st.stock[key] = rec
	}
	return &rec, nil
}

func (r *StockRepo) Save(_ context.Context, rec *stock.Record) error {
	if err := r.s.lock("Save"); err != nil {
		r.s.unlock()
		return err
	}
	defer r.s.unlock()
	r.s.st.stock[stockKey{rec.ItemID, rec.LocationID}] = *rec
	return nil
}

func (r *StockRepo) Get(_ context.Context, itemID, locationID id.ID) (*stock.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.st.stock[stockKey{itemID, locationID}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *StockRepo) SumAvailable(_ context.Context, itemID id.ID) (types.Quantity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total types.Quantity
	for k, rec := range r.s.st.stock {
		if k.item == itemID {
			total += rec.Available()
		}
	}
	return total, nil
}

func (r *StockRepo) List(_ context.Context, filter stock.ListFilter) ([]stock.Row, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]stock.Row, 0)
	for k, rec := range r.s.st.stock {
		if filter.LocationID != nil && k.location != *filter.LocationID {
			continue
		}
		if filter.ItemID != nil && k.item != *filter.ItemID {
			continue
		}
		if filter.BelowMin && !rec.BelowMin() {
			continue
		}
		row := stock.Row{Record: rec}
		if it, ok := r.s.st.items[k.item]; ok {
			row.ItemName = it.Name
			row.ItemUnit = string(it.Unit)
		}
		if loc, ok := r.s.st.locations[k.location]; ok {
			row.LocationName = loc.Name
		}
		out = append(out, row)
	}
	slices.SortFunc(out, func(a, b stock.Row) int {
		if a.Available() != b.Available() {
			if a.Available() < b.Available() {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ItemName, b.ItemName)
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *StockRepo) Summary(_ context.Context, filter stock.SummaryFilter) ([]stock.SummaryRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byItem := make(map[id.ID]*stock.SummaryRow)
	for k, rec := range r.s.st.stock {
		if filter.LocationID != nil && k.location != *filter.LocationID {
			continue
		}
		it := r.s.st.items[k.item]
		if filter.Search != "" && !strings.Contains(strings.ToLower(it.Name), strings.ToLower(filter.Search)) {
			continue
		}
		row, ok := byItem[k.item]
		if !ok {
			row = &stock.SummaryRow{ItemID: k.item, ItemName: it.Name, ItemUnit: string(it.Unit)}
			byItem[k.item] = row
		}
		row.OnHand += rec.OnHand
		row.Reserved += rec.Reserved
		row.Available += rec.Available()
		row.Locations++
	}
	out := make([]stock.SummaryRow, 0, len(byItem))
	for _, row := range byItem {
		out = append(out, *row)
	}
	slices.SortFunc(out, func(a, b stock.SummaryRow) int { return strings.Compare(a.ItemName, b.ItemName) })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *StockRepo) CreateMovements(_ context.Context, movements []stock.Movement) error {
	if err := r.s.lock("CreateMovements"); err != nil {
		r.s.unlock()
		return err
	}
	defer r.s.unlock()
	r.s.st.movements = append(r.s.st.movements, movements...)
	return nil
}

func (r *StockRepo) MovementsByRecorder(_ context.Context, recorderID id.ID) ([]stock.Movement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []stock.Movement
	for _, m := range r.s.st.movements {
		if m.RecorderID == recorderID {
			out = append(out, m)
		}
	}
	return out, nil
}

// AllMovements returns every recorded movement.
func (r *StockRepo) AllMovements() []stock.Movement {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return slices.Clone(r.s.st.movements)
}

var _ stock.Repository = (*StockRepo)(nil)
