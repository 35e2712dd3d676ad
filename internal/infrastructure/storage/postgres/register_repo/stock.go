// Package register_repo provides the PostgreSQL stock ledger repository.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockline/internal/core/id"
	"stockline/internal/core/types"
	"stockline/internal/domain/stock"
	"stockline/internal/infrastructure/storage/postgres"
)

const (
	stockTable          = "stock"
	stockMovementsTable = "stock_movements"
)

var (
	stockColumns    = postgres.ExtractDBColumns[stock.Record]()
	movementColumns = postgres.ExtractDBColumns[stock.Movement]()
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm      *postgres.TxManager
	inserter *postgres.BatchInserter
	builder  squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock ledger repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:      txm,
		inserter: postgres.NewBatchInserter(txm),
		builder:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ stock.Repository = (*StockRepo)(nil)

func (r *StockRepo) recordQuery(itemID, locationID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(stockColumns...).
		From(stockTable).
		Where(squirrel.Eq{"item_id": itemID, "location_id": locationID})
}

func (r *StockRepo) getRecord(ctx context.Context, q squirrel.SelectBuilder) (*stock.Record, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rec stock.Record
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, postgres.TranslateError(fmt.Errorf("get stock: %w", err), "stock")
	}
	return &rec, nil
}

// GetForUpdate locks the row until the transaction ends.
func (r *StockRepo) GetForUpdate(ctx context.Context, itemID, locationID id.ID) (*stock.Record, error) {
	return r.getRecord(ctx, r.recordQuery(itemID, locationID).Suffix("FOR UPDATE"))
}

// EnsureForUpdate inserts a zero row if needed, then locks it. Concurrent
// first touches converge on the same row through ON CONFLICT.
func (r *StockRepo) EnsureForUpdate(ctx context.Context, itemID, locationID id.ID) (*stock.Record, error) {
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO stock (item_id, location_id, on_hand, reserved, min_stock, updated_at)
		VALUES ($1, $2, 0, 0, 0, now())
		ON CONFLICT (item_id, location_id) DO NOTHING
	`, itemID, locationID)
	if err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("ensure stock: %w", err), "stock")
	}
	rec, err := r.GetForUpdate(ctx, itemID, locationID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("stock row %s/%s vanished after insert", itemID, locationID)
	}
	return rec, nil
}

func (r *StockRepo) Save(ctx context.Context, rec *stock.Record) error {
	sql, args, err := r.builder.Update(stockTable).
		Set("on_hand", rec.OnHand).
		Set("reserved", rec.Reserved).
		Set("min_stock", rec.MinStock).
		Set("updated_at", rec.UpdatedAt).
		Where(squirrel.Eq{"item_id": rec.ItemID, "location_id": rec.LocationID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("save stock: %w", err), "stock")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save stock %s/%s: row not found", rec.ItemID, rec.LocationID)
	}
	return nil
}

func (r *StockRepo) Get(ctx context.Context, itemID, locationID id.ID) (*stock.Record, error) {
	return r.getRecord(ctx, r.recordQuery(itemID, locationID))
}

func (r *StockRepo) SumAvailable(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	var total int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(on_hand - reserved), 0)::BIGINT FROM stock WHERE item_id = $1`, itemID,
	).Scan(&total)
	if err != nil {
		return 0, postgres.TranslateError(fmt.Errorf("sum available: %w", err), "stock")
	}
	return types.Quantity(total), nil
}

// List joins item and location names, lowest available first.
func (r *StockRepo) List(ctx context.Context, filter stock.ListFilter) ([]stock.Row, error) {
	q := r.builder.Select(
		"s.item_id", "s.location_id", "s.on_hand", "s.reserved", "s.min_stock", "s.updated_at",
		"i.name AS item_name", "i.unit AS item_unit", "l.name AS location_name",
	).
		From("stock s").
		Join("items i ON i.id = s.item_id").
		Join("locations l ON l.id = s.location_id")

	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"s.location_id": *filter.LocationID})
	}
	if filter.ItemID != nil {
		q = q.Where(squirrel.Eq{"s.item_id": *filter.ItemID})
	}
	if filter.BelowMin {
		q = q.Where("s.min_stock > 0 AND s.on_hand - s.reserved < s.min_stock")
	}
	q = q.OrderBy("s.on_hand - s.reserved", "i.name")
	q = paginate(q, filter.Limit, filter.Offset)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows := make([]stock.Row, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("list stock: %w", err), "stock")
	}
	return rows, nil
}

// Summary aggregates each item across locations, ordered by item name.
func (r *StockRepo) Summary(ctx context.Context, filter stock.SummaryFilter) ([]stock.SummaryRow, error) {
	q := r.builder.Select(
		"i.id AS item_id", "i.name AS item_name", "i.unit AS item_unit",
		"SUM(s.on_hand)::BIGINT AS on_hand",
		"SUM(s.reserved)::BIGINT AS reserved",
		"SUM(s.on_hand - s.reserved)::BIGINT AS available",
		"COUNT(*) AS locations",
	).
		From("stock s").
		Join("items i ON i.id = s.item_id").
		GroupBy("i.id", "i.name", "i.unit").
		OrderBy("i.name")

	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"s.location_id": *filter.LocationID})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"i.name": "%" + filter.Search + "%"})
	}
	q = paginate(q, filter.Limit, filter.Offset)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows := make([]stock.SummaryRow, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("stock summary: %w", err), "stock")
	}
	return rows, nil
}

// CreateMovements appends movements with COPY.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []stock.Movement) error {
	rows := make([][]any, 0, len(movements))
	for _, m := range movements {
		values := postgres.StructToMap(m)
		row := make([]any, len(movementColumns))
		for i, col := range movementColumns {
			row[i] = values[col]
		}
		rows = append(rows, row)
	}
	if _, err := r.inserter.CopyFromSlice(ctx, stockMovementsTable, movementColumns, rows); err != nil {
		return fmt.Errorf("copy movements: %w", err)
	}
	return nil
}

func (r *StockRepo) MovementsByRecorder(ctx context.Context, recorderID id.ID) ([]stock.Movement, error) {
	sql, args, err := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	movements := make([]stock.Movement, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("list movements: %w", err), "stock movement")
	}
	return movements, nil
}

func paginate(q squirrel.SelectBuilder, limit, offset int) squirrel.SelectBuilder {
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return q
}
