// Package memory is an in-process implementation of the storage contracts.
// Transactions are serialized and roll back by restoring a snapshot, which
// gives tests the same all-or-nothing behaviour as PostgreSQL.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"stockline/internal/core/id"
	"stockline/internal/domain/catalog"
	"stockline/internal/domain/sale"
	"stockline/internal/domain/stock"
	"stockline/internal/domain/transfer"
)

type stockKey struct {
	item     id.ID
	location id.ID
}

// AuditEntry is a recorded LogChange call.
type AuditEntry struct {
	EntityType string
	EntityID   id.ID
	Action     string
	Changes    any
}

type state struct {
	items     map[id.ID]catalog.Item
	locations map[id.ID]catalog.Location
	methods   map[id.ID]catalog.PaymentMethod
	stock     map[stockKey]stock.Record
	movements []stock.Movement
	sales     map[id.ID]sale.Sale
	transfers map[id.ID]transfer.Transfer
	audit     []AuditEntry
}

func newState() *state {
	return &state{
		items:     make(map[id.ID]catalog.Item),
		locations: make(map[id.ID]catalog.Location),
		methods:   make(map[id.ID]catalog.PaymentMethod),
		stock:     make(map[stockKey]stock.Record),
		sales:     make(map[id.ID]sale.Sale),
		transfers: make(map[id.ID]transfer.Transfer),
	}
}

func (s *state) clone() *state {
	c := &state{
		items:     maps.Clone(s.items),
		locations: maps.Clone(s.locations),
		methods:   maps.Clone(s.methods),
		stock:     maps.Clone(s.stock),
		movements: slices.Clone(s.movements),
		sales:     make(map[id.ID]sale.Sale, len(s.sales)),
		transfers: make(map[id.ID]transfer.Transfer, len(s.transfers)),
		audit:     slices.Clone(s.audit),
	}
	for k, v := range s.sales {
		v.Items = slices.Clone(v.Items)
		v.Payments = slices.Clone(v.Payments)
		c.sales[k] = v
	}
	for k, v := range s.transfers {
		v.Lines = slices.Clone(v.Lines)
		c.transfers[k] = v
	}
	return c
}

// Store holds all entities in memory.
type Store struct {
	txMu sync.Mutex // held for the whole transaction
	mu   sync.Mutex // guards st and faults
	st   *state

	faults map[string]error
	seq    int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		st:     newState(),
		faults: make(map[string]error),
	}
}

type txKey struct{}

// RunInTransaction implements tx.Manager. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// FailOn makes the named operation return err until cleared with a nil err.
// Operation names are the method names, e.g. "CreateMovements".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// lock acquires the state lock and returns the injected fault for op.
func (s *Store) lock(op string) error {
	s.mu.Lock()
	return s.faults[op]
}

func (s *Store) unlock() { s.mu.Unlock() }

// nextCreatedAt yields strictly increasing timestamps so ordering by
// creation time is deterministic within a test.
func (s *Store) nextCreatedAt() time.Time {
	s.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Millisecond)
}

// LogChange implements the Auditor contracts.
func (s *Store) LogChange(_ context.Context, entityType string, entityID id.ID, action string, changes any) error {
	if err := s.lock("LogChange"); err != nil {
		s.unlock()
		return err
	}
	defer s.unlock()
	s.st.audit = append(s.st.audit, AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    changes,
	})
	return nil
}

// AuditEntries returns a copy of the audit log.
func (s *Store) AuditEntries() []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.audit)
}
