// Package tx decouples domain services from the database transaction implementation.
package tx

import (
	"context"
)

// Manager runs a unit of work atomically.
//
// fn's error rolls the transaction back; nil commits. Nested calls join the
// transaction already carried by ctx, so a ledger operation invoked from a
// sale shares the sale's row locks.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transactions for listings.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
