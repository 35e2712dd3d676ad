package catalog

import (
	"context"
	"fmt"
	"time"

	"stockline/internal/core/apperror"
	"stockline/internal/core/id"
	"stockline/internal/core/tx"
	"stockline/internal/core/types"
	"stockline/internal/domain/stock"
	"stockline/pkg/logger"
)

// StockAdjuster records the opening stock of a new item.
type StockAdjuster interface {
	Adjust(ctx context.Context, adj stock.Adjustment) (*stock.Record, error)
}

// Service provides catalog operations.
type Service struct {
	repo  Repository
	txm   tx.Manager
	stock StockAdjuster
	now   func() time.Time
}

// NewService creates a catalog service.
func NewService(repo Repository, txm tx.Manager, adjuster StockAdjuster) *Service {
	return &Service{
		repo:  repo,
		txm:   txm,
		stock: adjuster,
		now:   time.Now,
	}
}

// CreateItemInput is an item plus its opening stock at the principal location.
type CreateItemInput struct {
	ActorID      id.ID
	Item         Item
	InitialStock types.Quantity
}

// CreateItem stores a new item. A positive InitialStock is booked at the
// principal location as an ADJUST movement in the same transaction.
func (s *Service) CreateItem(ctx context.Context, in CreateItemInput) (*Item, error) {
	item := in.Item
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if in.InitialStock.IsNegative() {
		return nil, apperror.NewInvalidQuantity("initial stock cannot be negative").WithField("initial_stock")
	}

	now := s.now()
	item.ID = id.New()
	item.CreatedAt = now
	item.UpdatedAt = now

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateItem(ctx, &item); err != nil {
			return fmt.Errorf("create item: %w", err)
		}
		if !in.InitialStock.IsPositive() {
			return nil
		}
		principal, err := s.PrincipalLocation(ctx)
		if err != nil {
			return err
		}
		_, err = s.stock.Adjust(ctx, stock.Adjustment{
			ActorID:    in.ActorID,
			ItemID:     item.ID,
			LocationID: principal.ID,
			Direction:  stock.DirectionIn,
			Quantity:   in.InitialStock,
			Note:       "initial stock",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "item created",
		"item_id", item.ID,
		"unit", item.Unit,
		"initial_stock", in.InitialStock.String(),
	)
	return &item, nil
}

// UpdateItem changes descriptive fields and prices. The unit kind is kept.
func (s *Service) UpdateItem(ctx context.Context, itemID id.ID, name string, purchase, sale types.MinorUnits) (*Item, error) {
	var item *Item
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.repo.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		item.Name = name
		item.PurchasePrice = purchase
		item.SalePrice = sale
		item.UpdatedAt = s.now()
		if err := item.Validate(); err != nil {
			return err
		}
		return s.repo.UpdateItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) GetItem(ctx context.Context, itemID id.ID) (*Item, error) {
	return s.repo.GetItem(ctx, itemID)
}

func (s *Service) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	return s.repo.ListItems(ctx, filter)
}

// CreateLocation stores a new active location.
func (s *Service) CreateLocation(ctx context.Context, loc Location) (*Location, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	loc.ID = id.New()
	loc.Active = true
	loc.CreatedAt = s.now()

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if loc.OwnerID != nil {
			owned, err := s.repo.FindOwnedBy(ctx, *loc.OwnerID)
			if err != nil {
				return err
			}
			if owned != nil {
				return apperror.NewDuplicate("location", "owner_id", loc.OwnerID.String())
			}
		}
		return s.repo.CreateLocation(ctx, &loc)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "location created", "location_id", loc.ID, "type", loc.Type)
	return &loc, nil
}

func (s *Service) GetLocation(ctx context.Context, locationID id.ID) (*Location, error) {
	return s.repo.GetLocation(ctx, locationID)
}

func (s *Service) ListLocations(ctx context.Context) ([]Location, error) {
	return s.repo.ListLocations(ctx)
}

// PrincipalLocation looks the principal location up on every call.
// It is never created implicitly.
func (s *Service) PrincipalLocation(ctx context.Context) (*Location, error) {
	loc, err := s.repo.FindPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal location: %w", err)
	}
	if loc == nil {
		return nil, ErrNoPrincipal()
	}
	return loc, nil
}

func (s *Service) ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	return s.repo.ListPaymentMethods(ctx)
}

// ErrNoPrincipal is the setup error raised when no principal location exists.
func ErrNoPrincipal() *apperror.AppError {
	return apperror.NewBusinessRule(apperror.CodeNoPrincipalLocation, "no principal location configured").
		WithField("location")
}
