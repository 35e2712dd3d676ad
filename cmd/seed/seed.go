package main

import (
	"context"
	"fmt"

	"stockline/internal/core/apperror"
	"stockline/internal/core/id"
	"stockline/internal/core/types"
	"stockline/internal/domain/catalog"
	"stockline/pkg/logger"
)

// Catalog is the catalog surface the seeder writes through.
type Catalog interface {
	PrincipalLocation(ctx context.Context) (*catalog.Location, error)
	CreateLocation(ctx context.Context, loc catalog.Location) (*catalog.Location, error)
	ListItems(ctx context.Context, filter catalog.ItemFilter) ([]catalog.Item, error)
	CreateItem(ctx context.Context, in catalog.CreateItemInput) (*catalog.Item, error)
}

type seedOptions struct {
	PrincipalName string
	Demo          bool
	DealerOwner   *id.ID
}

type demoItem struct {
	name     string
	unit     catalog.UnitKind
	purchase types.MinorUnits
	sale     types.MinorUnits
	stock    types.Quantity
}

var demoItems = []demoItem{
	{"Rice 1kg", catalog.UnitPieces, 180, 250, types.Units(40)},
	{"Black beans 500g", catalog.UnitPieces, 120, 175, types.Units(30)},
	{"Cooking oil 1L", catalog.UnitPieces, 390, 520, types.Units(24)},
	{"Coffee beans", catalog.UnitWeighable, 1450, 2100, types.Units(15)},
	{"Sugar", catalog.UnitWeighable, 95, 140, types.Units(50)},
}

// seed is safe to run repeatedly: the principal location is created once
// and demo items only go into an empty catalog.
func seed(ctx context.Context, svc Catalog, opts seedOptions) error {
	principal, err := ensurePrincipal(ctx, svc, opts.PrincipalName)
	if err != nil {
		return err
	}
	if !opts.Demo {
		return nil
	}

	existing, err := svc.ListItems(ctx, catalog.ItemFilter{Limit: 1})
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	if len(existing) > 0 {
		logger.Info(ctx, "catalog not empty, skipping demo items")
	} else {
		for _, d := range demoItems {
			item, err := svc.CreateItem(ctx, catalog.CreateItemInput{
				Item: catalog.Item{
					Name:          d.name,
					Unit:          d.unit,
					PurchasePrice: d.purchase,
					SalePrice:     d.sale,
				},
				InitialStock: d.stock,
			})
			if err != nil {
				return fmt.Errorf("create item %q: %w", d.name, err)
			}
			logger.Info(ctx, "demo item created", "item_id", item.ID, "name", item.Name, "location", principal.Name)
		}
	}

	if opts.DealerOwner == nil {
		return nil
	}
	loc, err := svc.CreateLocation(ctx, catalog.Location{
		Name:    "Dealer " + opts.DealerOwner.String()[:8],
		Type:    catalog.LocationDealer,
		OwnerID: opts.DealerOwner,
	})
	if apperror.HasCode(err, apperror.CodeDuplicate) {
		logger.Info(ctx, "dealer location already exists", "owner_id", opts.DealerOwner)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create dealer location: %w", err)
	}
	logger.Info(ctx, "dealer location created", "location_id", loc.ID)
	return nil
}

func ensurePrincipal(ctx context.Context, svc Catalog, name string) (*catalog.Location, error) {
	loc, err := svc.PrincipalLocation(ctx)
	if err == nil {
		logger.Info(ctx, "principal location exists", "location_id", loc.ID, "name", loc.Name)
		return loc, nil
	}
	if !apperror.HasCode(err, apperror.CodeNoPrincipalLocation) {
		return nil, err
	}
	loc, err = svc.CreateLocation(ctx, catalog.Location{Name: name, Type: catalog.LocationPrincipal})
	if err != nil {
		return nil, fmt.Errorf("create principal location: %w", err)
	}
	logger.Info(ctx, "principal location created", "location_id", loc.ID, "name", loc.Name)
	return loc, nil
}
