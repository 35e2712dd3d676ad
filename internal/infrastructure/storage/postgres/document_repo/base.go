// Package document_repo provides the PostgreSQL repositories of sales and transfers.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockline/internal/core/apperror"
	"stockline/internal/core/id"
	"stockline/internal/infrastructure/storage/postgres"
)

// baseDocumentRepo holds the statements shared by document headers.
type baseDocumentRepo[T any] struct {
	txm        *postgres.TxManager
	batch      *postgres.BatchExecutor
	tableName  string
	entityName string
	selectCols []string
}

func newBaseDocumentRepo[T any](txm *postgres.TxManager, tableName, entityName string) baseDocumentRepo[T] {
	return baseDocumentRepo[T]{
		txm:        txm,
		batch:      postgres.NewBatchExecutor(txm),
		tableName:  tableName,
		entityName: entityName,
		selectCols: postgres.ExtractDBColumns[T](),
	}
}

// Builder returns a new squirrel builder.
func (r baseDocumentRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r baseDocumentRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.selectCols...).From(r.tableName)
}

// insertQuery renders an INSERT of v's "db" columns into table.
func (r baseDocumentRepo[T]) insertQuery(table string, v any) (postgres.BatchQuery, error) {
	sql, args, err := r.Builder().Insert(table).SetMap(postgres.StructToMap(v)).ToSql()
	if err != nil {
		return postgres.BatchQuery{}, fmt.Errorf("build insert %s: %w", table, err)
	}
	return postgres.BatchQuery{SQL: sql, Args: args}, nil
}

// execBatch sends the header and its lines in one round-trip.
func (r baseDocumentRepo[T]) execBatch(ctx context.Context, queries []postgres.BatchQuery) error {
	return r.batch.ExecuteBatch(ctx, r.entityName, queries)
}

func (r baseDocumentRepo[T]) getByID(ctx context.Context, entityID id.ID, forUpdate bool) (*T, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": entityID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	entity := new(T)
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(r.entityName, entityID.String())
		}
		return nil, postgres.TranslateError(fmt.Errorf("get %s: %w", r.entityName, err), r.entityName)
	}
	return entity, nil
}

// selectInto runs q and scans all rows into dst.
func (r baseDocumentRepo[T]) selectInto(ctx context.Context, dst any, q squirrel.SelectBuilder) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), dst, sql, args...); err != nil {
		return postgres.TranslateError(fmt.Errorf("select %s: %w", r.entityName, err), r.entityName)
	}
	return nil
}

// list returns headers newest first.
func (r baseDocumentRepo[T]) list(ctx context.Context, where squirrel.Sqlizer, limit, offset int) ([]T, error) {
	q := r.baseSelect().OrderBy("created_at DESC", "id DESC")
	if where != nil {
		q = q.Where(where)
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	items := make([]T, 0)
	if err := r.selectInto(ctx, &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

// exec runs an UPDATE and reports NotFound when no row matched.
func (r baseDocumentRepo[T]) exec(ctx context.Context, q squirrel.UpdateBuilder, entityID id.ID) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("update %s: %w", r.entityName, err), r.entityName)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID.String())
	}
	return nil
}
