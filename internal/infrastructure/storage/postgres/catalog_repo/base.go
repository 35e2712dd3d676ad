// Package catalog_repo provides the PostgreSQL catalog repository.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockline/internal/core/apperror"
	"stockline/internal/core/id"
	"stockline/internal/infrastructure/storage/postgres"
)

// baseRepo provides the CRUD statements shared by catalog tables.
type baseRepo[T any] struct {
	txm        *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
}

func newBaseRepo[T any](txm *postgres.TxManager, tableName, entityName string) baseRepo[T] {
	return baseRepo[T]{
		txm:        txm,
		tableName:  tableName,
		entityName: entityName,
		selectCols: postgres.ExtractDBColumns[T](),
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r baseRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r baseRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.selectCols...).From(r.tableName)
}

// create inserts entity using its "db" tags.
func (r baseRepo[T]) create(ctx context.Context, entity *T) error {
	sql, args, err := r.Builder().
		Insert(r.tableName).
		SetMap(postgres.StructToMap(entity)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(fmt.Errorf("insert %s: %w", r.tableName, err), r.entityName)
	}
	return nil
}

// update overwrites every column except id and created_at.
func (r baseRepo[T]) update(ctx context.Context, entityID id.ID, entity *T) error {
	data := postgres.StructToMap(entity)
	delete(data, "id")
	delete(data, "created_at")

	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(data).
		Where(squirrel.Eq{"id": entityID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("update %s: %w", r.tableName, err), r.entityName)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID.String())
	}
	return nil
}

// getByID reads one row; a missing row is a NotFound AppError.
func (r baseRepo[T]) getByID(ctx context.Context, entityID id.ID) (*T, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}), entityID.String())
}

// findOne is getOne with a nil result instead of NotFound.
func (r baseRepo[T]) findOne(ctx context.Context, q squirrel.SelectBuilder) (*T, error) {
	entity, err := r.getOne(ctx, q, "")
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	return entity, err
}

func (r baseRepo[T]) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*T, error) {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	entity := new(T)
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(r.entityName, key)
		}
		return nil, postgres.TranslateError(fmt.Errorf("get %s: %w", r.tableName, err), r.entityName)
	}
	return entity, nil
}

func (r baseRepo[T]) list(ctx context.Context, q squirrel.SelectBuilder, limit, offset int) ([]T, error) {
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	items := make([]T, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("list %s: %w", r.tableName, err), r.entityName)
	}
	return items, nil
}
