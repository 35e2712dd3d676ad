package memory

import (
	"context"
	"slices"

	"stockline/internal/core/apperror"
	"stockline/internal/core/id"
	"stockline/internal/domain/transfer"
)

// TransferRepo implements transfer.Repository.
type TransferRepo struct{ s *Store }

// Transfers returns the transfer view of the store.
func (s *Store) Transfers() *TransferRepo { return &TransferRepo{s: s} }

func (r *TransferRepo) Create(_ context.Context, t *transfer.Transfer) error {
	if err := r.s.lock("CreateTransfer"); err != nil {
		r.s.unlock()
		return err
	}
	defer r.s.unlock()
	cp := *t
	cp.Lines = slices.Clone(t.Lines)
	r.s.st.transfers[t.ID] = cp
	return nil
}

func (r *TransferRepo) Get(_ context.Context, transferID id.ID) (*transfer.Transfer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.st.transfers[transferID]
	if !ok {
		return nil, apperror.NewNotFound("transfer", transferID)
	}
	t.Lines = slices.Clone(t.Lines)
	return &t, nil
}

func (r *TransferRepo) List(_ context.Context, filter transfer.ListFilter) ([]transfer.Transfer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]transfer.Transfer, 0)
	for _, t := range r.s.st.transfers {
		if filter.ToLocationID != nil && t.ToLocationID != *filter.ToLocationID {
			continue
		}
		t.Lines = nil
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b transfer.Transfer) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return paginate(out, filter.Limit, filter.Offset), nil
}

// TransferCount returns the number of stored transfers.
func (r *TransferRepo) TransferCount() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.st.transfers)
}

var _ transfer.Repository = (*TransferRepo)(nil)
