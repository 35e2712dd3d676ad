package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"stockline/internal/core/id"
	"stockline/internal/domain/sale"
	"stockline/internal/infrastructure/storage/postgres"
)

const (
	salesTable        = "sales"
	saleItemsTable    = "sale_items"
	salePaymentsTable = "sale_payments"
)

// SaleRepo implements sale.Repository.
type SaleRepo struct {
	baseDocumentRepo[sale.Sale]
}

// NewSaleRepo creates a new sale repository.
func NewSaleRepo(txm *postgres.TxManager) *SaleRepo {
	return &SaleRepo{baseDocumentRepo: newBaseDocumentRepo[sale.Sale](txm, salesTable, "sale")}
}

var _ sale.Repository = (*SaleRepo)(nil)

// Create inserts the header, items and payments in one batch.
func (r *SaleRepo) Create(ctx context.Context, s *sale.Sale) error {
	queries := make([]postgres.BatchQuery, 0, 1+len(s.Items)+len(s.Payments))

	header, err := r.insertQuery(salesTable, s)
	if err != nil {
		return err
	}
	queries = append(queries, header)

	for i := range s.Items {
		q, err := r.insertQuery(saleItemsTable, &s.Items[i])
		if err != nil {
			return err
		}
		queries = append(queries, q)
	}
	for i := range s.Payments {
		q, err := r.insertQuery(salePaymentsTable, &s.Payments[i])
		if err != nil {
			return err
		}
		queries = append(queries, q)
	}
	if err := r.execBatch(ctx, queries); err != nil {
		return fmt.Errorf("insert sale %s: %w", s.Number, err)
	}
	return nil
}

// GetForUpdate locks the header row.
func (r *SaleRepo) GetForUpdate(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	return r.getByID(ctx, saleID, true)
}

// Get reads a sale with its items and payments.
func (r *SaleRepo) Get(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	s, err := r.getByID(ctx, saleID, false)
	if err != nil {
		return nil, err
	}

	s.Items = make([]sale.Item, 0)
	if err := r.selectInto(ctx, &s.Items, r.Builder().
		Select(postgres.ExtractDBColumns[sale.Item]()...).
		From(saleItemsTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		OrderBy("line_no")); err != nil {
		return nil, err
	}

	s.Payments = make([]sale.Payment, 0)
	if err := r.selectInto(ctx, &s.Payments, r.Builder().
		Select(postgres.ExtractDBColumns[sale.Payment]()...).
		From(salePaymentsTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		OrderBy("paid_at", "id")); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SaleRepo) List(ctx context.Context, filter sale.ListFilter) ([]sale.Sale, error) {
	where := squirrel.And{}
	if filter.Status != nil {
		where = append(where, squirrel.Eq{"status": *filter.Status})
	}
	if filter.LocationID != nil {
		where = append(where, squirrel.Eq{"location_id": *filter.LocationID})
	}
	if filter.ActorID != nil {
		where = append(where, squirrel.Eq{"actor_id": *filter.ActorID})
	}
	if len(where) == 0 {
		return r.list(ctx, nil, filter.Limit, filter.Offset)
	}
	return r.list(ctx, where, filter.Limit, filter.Offset)
}

func (r *SaleRepo) UpdatePaymentState(ctx context.Context, s *sale.Sale) error {
	return r.exec(ctx, r.Builder().Update(salesTable).
		Set("paid", s.Paid).
		Set("balance", s.Balance).
		Set("status", s.Status).
		Set("updated_at", s.UpdatedAt).
		Where(squirrel.Eq{"id": s.ID}), s.ID)
}

func (r *SaleRepo) MarkDeliverySettled(ctx context.Context, s *sale.Sale) error {
	return r.exec(ctx, r.Builder().Update(salesTable).
		Set("delivery_settled_at", s.DeliverySettledAt).
		Set("updated_at", s.UpdatedAt).
		Where(squirrel.Eq{"id": s.ID}), s.ID)
}

func (r *SaleRepo) AddPayment(ctx context.Context, p *sale.Payment) error {
	q, err := r.insertQuery(salePaymentsTable, p)
	if err != nil {
		return err
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, q.SQL, q.Args...); err != nil {
		return postgres.TranslateError(fmt.Errorf("insert payment: %w", err), "payment")
	}
	return nil
}
