package stock

import (
	"context"
	"fmt"
	"time"

	"stockline/internal/core/apperror"
	"stockline/internal/core/id"
	"stockline/internal/core/tx"
	"stockline/internal/core/types"
	"stockline/pkg/logger"
)

// Ledger maintains per-location quantities.
//
// Every mutating operation locks the affected record(s) with SELECT ... FOR
// UPDATE inside txm. Called from an outer transaction (a sale or a
// transfer) the operation joins it and the locks are held until that
// transaction ends.
type Ledger struct {
	repo Repository
	txm  tx.Manager
	now  func() time.Time
}

// NewLedger creates a stock ledger.
func NewLedger(repo Repository, txm tx.Manager) *Ledger {
	return &Ledger{
		repo: repo,
		txm:  txm,
		now:  time.Now,
	}
}

func requirePositive(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewInvalidQuantity("quantity must be positive").
			WithField("quantity").
			WithDetail("value", qty.String())
	}
	return nil
}

// Ensure returns the record for (item, location), creating it with zero quantities.
func (l *Ledger) Ensure(ctx context.Context, itemID, locationID id.ID) (*Record, error) {
	var rec *Record
	err := l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		rec, err = l.repo.EnsureForUpdate(ctx, itemID, locationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Increase adds qty to on_hand, creating the record if absent.
func (l *Ledger) Increase(ctx context.Context, itemID, locationID id.ID, qty types.Quantity) (*Record, error) {
	if err := requirePositive(qty); err != nil {
		return nil, err
	}
	var rec *Record
	err := l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		rec, err = l.repo.EnsureForUpdate(ctx, itemID, locationID)
		if err != nil {
			return fmt.Errorf("lock stock: %w", err)
		}
		rec.OnHand += qty
		return l.save(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Decrease removes qty from on_hand. Fails with InsufficientStock when
// on_hand < qty; reserved quantities are not consulted.
func (l *Ledger) Decrease(ctx context.Context, itemID, locationID id.ID, qty types.Quantity) (*Record, error) {
	if err := requirePositive(qty); err != nil {
		return nil, err
	}
	var rec *Record
	err := l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		rec, err = l.lockExisting(ctx, itemID, locationID)
		if err != nil {
			return err
		}
		if rec.OnHand < qty {
			return apperror.NewInsufficientStock(itemID.String(), qty, rec.OnHand).
				WithField("quantity").
				WithDetail("location_id", locationID.String())
		}
		rec.OnHand -= qty
		return l.save(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DebitAvailable removes qty from on_hand after checking on_hand - reserved.
// Used by sales, which must not consume stock reserved for someone else.
func (l *Ledger) DebitAvailable(ctx context.Context, itemID, locationID id.ID, qty types.Quantity) (*Record, error) {
	if err := requirePositive(qty); err != nil {
		return nil, err
	}
	var rec *Record
	err := l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		rec, err = l.lockExisting(ctx, itemID, locationID)
		if err != nil {
			return err
		}
		if available := rec.Available(); available < qty {
			return apperror.NewInsufficientStock(itemID.String(), qty, available).
				WithDetail("location_id", locationID.String())
		}
		rec.OnHand -= qty
		return l.save(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Reserve earmarks qty of available stock.
func (l *Ledger) Reserve(ctx context.Context, itemID, locationID id.ID, qty types.Quantity) (*Record, error) {
	if err := requirePositive(qty); err != nil {
		return nil, err
	}
	var rec *Record
	err := l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		rec, err = l.repo.EnsureForUpdate(ctx, itemID, locationID)
		if err != nil {
			return fmt.Errorf("lock stock: %w", err)
		}
		if available := rec.Available(); available < qty {
			return apperror.NewInsufficientAvailable(itemID.String(), qty, available).
				WithField("quantity").
				WithDetail("location_id", locationID.String())
		}
		rec.Reserved += qty
		return l.save(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Release returns reserved stock to available. Reserved never drops below zero;
// releasing on a missing record is a no-op.
func (l *Ledger) Release(ctx context.Context, itemID, locationID id.ID, qty types.Quantity) (*Record, error) {
	if err := requirePositive(qty); err != nil {
		return nil, err
	}
	var rec *Record
	err := l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		rec, err = l.repo.GetForUpdate(ctx, itemID, locationID)
		if err != nil {
			return fmt.Errorf("lock stock: %w", err)
		}
		if rec == nil {
			rec = &Record{ItemID: itemID, LocationID: locationID}
			return nil
		}
		rec.Reserved -= qty
		if rec.Reserved < 0 {
			rec.Reserved = 0
		}
		return l.save(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// TransferBetween moves qty from one location to another in one transaction.
func (l *Ledger) TransferBetween(ctx context.Context, itemID, fromID, toID id.ID, qty types.Quantity) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	if fromID == toID {
		return apperror.NewValidation("source and destination must differ").WithField("to_location_id")
	}
	return l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := l.Decrease(ctx, itemID, fromID, qty); err != nil {
			return err
		}
		_, err := l.Increase(ctx, itemID, toID, qty)
		return err
	})
}

// Adjustment is a manual correction of on_hand.
type Adjustment struct {
	ActorID    id.ID
	ItemID     id.ID
	LocationID id.ID
	Direction  Direction
	Quantity   types.Quantity
	Note       string
}

// Adjust applies a manual correction and records an ADJUST movement.
func (l *Ledger) Adjust(ctx context.Context, adj Adjustment) (*Record, error) {
	if !adj.Direction.IsValid() {
		return nil, apperror.NewValidation("direction must be 'in' or 'out'").WithField("direction")
	}
	if err := requirePositive(adj.Quantity); err != nil {
		return nil, err
	}

	var rec *Record
	err := l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if adj.Direction == DirectionIn {
			rec, err = l.Increase(ctx, adj.ItemID, adj.LocationID, adj.Quantity)
		} else {
			rec, err = l.Decrease(ctx, adj.ItemID, adj.LocationID, adj.Quantity)
		}
		if err != nil {
			return err
		}
		m := NewMovement(adj.ItemID, adj.LocationID, adj.Direction, adj.Quantity, ReasonAdjust, adj.ActorID, l.now())
		m.RecorderType = RecorderAdjustment
		m.RecorderID = m.ID
		if adj.Note != "" {
			note := adj.Note
			m.Note = &note
		}
		return l.RecordMovements(ctx, []Movement{m})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock adjusted",
		"item_id", adj.ItemID,
		"location_id", adj.LocationID,
		"direction", adj.Direction,
		"quantity", adj.Quantity.String(),
	)
	return rec, nil
}

// SetMinStock updates the minimum stock threshold for (item, location).
func (l *Ledger) SetMinStock(ctx context.Context, itemID, locationID id.ID, min types.Quantity) (*Record, error) {
	if min.IsNegative() {
		return nil, apperror.NewInvalidQuantity("min stock cannot be negative").WithField("min_stock")
	}
	var rec *Record
	err := l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		rec, err = l.repo.EnsureForUpdate(ctx, itemID, locationID)
		if err != nil {
			return fmt.Errorf("lock stock: %w", err)
		}
		rec.MinStock = min
		return l.save(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Available returns on_hand - reserved at one location, or across all
// locations when locationID is nil.
func (l *Ledger) Available(ctx context.Context, itemID id.ID, locationID *id.ID) (types.Quantity, error) {
	if locationID == nil {
		return l.repo.SumAvailable(ctx, itemID)
	}
	rec, err := l.repo.Get(ctx, itemID, *locationID)
	if err != nil {
		return 0, fmt.Errorf("get stock: %w", err)
	}
	if rec == nil {
		return 0, nil
	}
	return rec.Available(), nil
}

// List returns stock rows ordered by available quantity.
func (l *Ledger) List(ctx context.Context, filter ListFilter) ([]Row, error) {
	return l.repo.List(ctx, filter)
}

// Summary returns per-item totals.
func (l *Ledger) Summary(ctx context.Context, filter SummaryFilter) ([]SummaryRow, error) {
	return l.repo.Summary(ctx, filter)
}

// RecordMovements appends audit movements. Must run inside the transaction
// that changed the quantities.
func (l *Ledger) RecordMovements(ctx context.Context, movements []Movement) error {
	if len(movements) == 0 {
		return nil
	}

	for i, m := range movements {
		if !m.Quantity.IsPositive() {
			return apperror.NewValidation(fmt.Sprintf("movement %d: quantity must be positive", i))
		}
		if id.IsNil(m.RecorderID) {
			return apperror.NewValidation(fmt.Sprintf("movement %d: recorder_id is required", i))
		}
	}

	if err := l.repo.CreateMovements(ctx, movements); err != nil {
		return fmt.Errorf("create movements: %w", err)
	}

	logger.Debug(ctx, "recorded stock movements",
		"count", len(movements),
		"recorder_id", movements[0].RecorderID,
	)
	return nil
}

// Movements returns the movements written by one sale, transfer or adjustment.
func (l *Ledger) Movements(ctx context.Context, recorderID id.ID) ([]Movement, error) {
	return l.repo.MovementsByRecorder(ctx, recorderID)
}

// lockExisting locks a record, treating a missing one as zero stock.
func (l *Ledger) lockExisting(ctx context.Context, itemID, locationID id.ID) (*Record, error) {
	rec, err := l.repo.GetForUpdate(ctx, itemID, locationID)
	if err != nil {
		return nil, fmt.Errorf("lock stock: %w", err)
	}
	if rec == nil {
		rec = &Record{ItemID: itemID, LocationID: locationID}
	}
	return rec, nil
}

func (l *Ledger) save(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = l.now()
	if err := l.repo.Save(ctx, rec); err != nil {
		return fmt.Errorf("save stock: %w", err)
	}
	return nil
}

// NewMovement builds a movement with a fresh id.
func NewMovement(itemID, locationID id.ID, dir Direction, qty types.Quantity, reason Reason, actorID id.ID, at time.Time) Movement {
	return Movement{
		ID:         id.New(),
		ItemID:     itemID,
		LocationID: locationID,
		Direction:  dir,
		Quantity:   qty,
		Reason:     reason,
		ActorID:    actorID,
		CreatedAt:  at,
	}
}
