package transfer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockline/internal/core/apperror"
	"stockline/internal/core/id"
	"stockline/internal/core/numerator"
	"stockline/internal/core/tx"
	"stockline/internal/core/types"
	"stockline/internal/domain/catalog"
	"stockline/internal/domain/pricing"
	"stockline/internal/domain/stock"
	"stockline/pkg/logger"
)

// CatalogReader is the catalog surface a transfer needs.
type CatalogReader interface {
	GetItem(ctx context.Context, itemID id.ID) (*catalog.Item, error)
	GetLocation(ctx context.Context, locationID id.ID) (*catalog.Location, error)
	FindPrincipal(ctx context.Context) (*catalog.Location, error)
}

// StockMover is the ledger surface a transfer needs.
type StockMover interface {
	TransferBetween(ctx context.Context, itemID, fromID, toID id.ID, qty types.Quantity) error
	RecordMovements(ctx context.Context, movements []stock.Movement) error
}

// Auditor records business events.
type Auditor interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes any) error
}

// Observer receives transfer outcomes for metrics.
type Observer interface {
	ObserveTransfer(result string, lines int)
}

// Service executes transfers.
type Service struct {
	repo      Repository
	catalog   CatalogReader
	stock     StockMover
	txm       tx.Manager
	policy    pricing.Policy
	numerator numerator.Generator
	audit     Auditor
	metrics   Observer
	now       func() time.Time
}

// NewService creates a transfer service. audit and metrics may be nil.
func NewService(
	repo Repository,
	catalogReader CatalogReader,
	mover StockMover,
	txm tx.Manager,
	policy pricing.Policy,
	gen numerator.Generator,
	audit Auditor,
	metrics Observer,
) *Service {
	return &Service{
		repo:      repo,
		catalog:   catalogReader,
		stock:     mover,
		txm:       txm,
		policy:    policy,
		numerator: gen,
		audit:     audit,
		metrics:   metrics,
		now:       time.Now,
	}
}

// CreateRequest is a validated transfer request.
type CreateRequest struct {
	ActorID      id.ID
	ToLocationID id.ID
	Note         string
	Lines        []LineInput
}

// Create moves every line from the principal location to the destination
// in one transaction. A failing line aborts the whole transfer.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Transfer, error) {
	if err := validate(req); err != nil {
		s.observe(err, 0)
		return nil, err
	}

	var created *Transfer
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.execute(ctx, req)
		return err
	})
	if err != nil {
		s.observe(err, 0)
		return nil, err
	}

	s.observe(nil, len(created.Lines))
	logger.Info(ctx, "transfer completed",
		"transfer_id", created.ID,
		"number", created.Number,
		"from", created.FromLocationID,
		"to", created.ToLocationID,
		"lines", len(created.Lines),
	)
	return created, nil
}

func validate(req CreateRequest) error {
	if len(req.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithField("lines")
	}
	if id.IsNil(req.ToLocationID) {
		return apperror.NewValidation("destination is required").WithField("to_location_id")
	}
	if len(req.Note) > MaxNoteLength {
		return apperror.NewValidation(fmt.Sprintf("note must be at most %d characters", MaxNoteLength)).
			WithField("note")
	}
	for i, l := range req.Lines {
		if id.IsNil(l.ItemID) {
			return apperror.NewValidation("item is required").WithField("lines").WithDetail("line", i+1)
		}
		if !l.Quantity.IsPositive() {
			return apperror.NewInvalidQuantity("quantity must be positive").WithField("lines").WithDetail("line", i+1)
		}
	}
	return nil
}

func (s *Service) execute(ctx context.Context, req CreateRequest) (*Transfer, error) {
	principal, err := s.catalog.FindPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal location: %w", err)
	}
	if principal == nil {
		return nil, catalog.ErrNoPrincipal()
	}

	dest, err := s.catalog.GetLocation(ctx, req.ToLocationID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewValidation("destination location does not exist").WithField("to_location_id")
		}
		return nil, fmt.Errorf("get destination: %w", err)
	}
	if !dest.Active {
		return nil, apperror.NewValidation("destination location is inactive").WithField("to_location_id")
	}
	if dest.ID == principal.ID {
		return nil, apperror.NewValidation("destination must differ from the principal location").
			WithField("to_location_id")
	}

	now := s.now()
	t := &Transfer{
		ID:             id.New(),
		FromLocationID: principal.ID,
		ToLocationID:   dest.ID,
		ActorID:        req.ActorID,
		Status:         StatusDone,
		CreatedAt:      now,
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		t.Note = &note
	}

	movements := make([]stock.Movement, 0, 2*len(req.Lines))
	for i, l := range req.Lines {
		item, err := s.catalog.GetItem(ctx, l.ItemID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, apperror.NewValidation("unknown item").
					WithField("lines").
					WithDetail("line", i+1).
					WithDetail("item_id", l.ItemID.String())
			}
			return nil, fmt.Errorf("get item %s: %w", l.ItemID, err)
		}
		if err := s.policy.CheckQuantity(item.Unit, l.Quantity); err != nil {
			return nil, lineError(err, i+1)
		}

		if err := s.stock.TransferBetween(ctx, l.ItemID, principal.ID, dest.ID, l.Quantity); err != nil {
			return nil, lineError(err, i+1)
		}

		out := stock.NewMovement(l.ItemID, principal.ID, stock.DirectionOut, l.Quantity, stock.ReasonTransfer, req.ActorID, now)
		in := stock.NewMovement(l.ItemID, dest.ID, stock.DirectionIn, l.Quantity, stock.ReasonTransfer, req.ActorID, now)
		for _, m := range []*stock.Movement{&out, &in} {
			m.RecorderType = stock.RecorderTransfer
			m.RecorderID = t.ID
		}
		movements = append(movements, out, in)

		t.Lines = append(t.Lines, Line{
			ID:         id.New(),
			TransferID: t.ID,
			LineNo:     i + 1,
			ItemID:     l.ItemID,
			Quantity:   l.Quantity,
		})
	}

	if s.numerator != nil {
		if t.Number, err = s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixTransfer), nil, now); err != nil {
			return nil, fmt.Errorf("generate transfer number: %w", err)
		}
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("insert transfer: %w", err)
	}
	if err := s.stock.RecordMovements(ctx, movements); err != nil {
		return nil, err
	}
	if s.audit != nil {
		if err := s.audit.LogChange(ctx, "transfer", t.ID, "create", map[string]any{
			"from":  t.FromLocationID,
			"to":    t.ToLocationID,
			"lines": len(t.Lines),
		}); err != nil {
			return nil, fmt.Errorf("audit transfer: %w", err)
		}
	}
	return t, nil
}

// Get returns a transfer with its lines.
func (s *Service) Get(ctx context.Context, transferID id.ID) (*Transfer, error) {
	return s.repo.Get(ctx, transferID)
}

// List returns transfer headers, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transfer, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) observe(err error, lines int) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = apperror.CodeInternal
		if appErr, ok := apperror.AsAppError(err); ok {
			result = appErr.Code
		}
	}
	s.metrics.ObserveTransfer(result, lines)
}

func lineError(err error, lineNo int) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.WithField("lines").WithDetail("line", lineNo)
	}
	return err
}
