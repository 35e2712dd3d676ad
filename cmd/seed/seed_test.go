package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockline/internal/core/id"
	"stockline/internal/domain/catalog"
	"stockline/internal/domain/stock"
	"stockline/internal/infrastructure/storage/memory"
)

func newSeedCatalog() (*memory.Store, *catalog.Service) {
	store := memory.New()
	ledger := stock.NewLedger(store.Stock(), store)
	return store, catalog.NewService(store.Catalog(), store, ledger)
}

func TestSeed_CreatesPrincipalOnce(t *testing.T) {
	ctx := context.Background()
	_, svc := newSeedCatalog()

	require.NoError(t, seed(ctx, svc, seedOptions{PrincipalName: "Main"}))
	require.NoError(t, seed(ctx, svc, seedOptions{PrincipalName: "Other"}))

	locs, err := svc.ListLocations(ctx)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "Main", locs[0].Name)
	assert.Equal(t, catalog.LocationPrincipal, locs[0].Type)
}

func TestSeed_DemoData(t *testing.T) {
	ctx := context.Background()
	store, svc := newSeedCatalog()
	owner := id.New()
	opts := seedOptions{PrincipalName: "Main", Demo: true, DealerOwner: &owner}

	require.NoError(t, seed(ctx, svc, opts))
	// second run leaves the catalog and dealer location as they are
	require.NoError(t, seed(ctx, svc, opts))

	items, err := svc.ListItems(ctx, catalog.ItemFilter{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, items, len(demoItems))

	principal, err := svc.PrincipalLocation(ctx)
	require.NoError(t, err)
	for _, item := range items {
		assert.True(t, store.StockOf(item.ID, principal.ID).OnHand.IsPositive(), item.Name)
	}

	locs, err := svc.ListLocations(ctx)
	require.NoError(t, err)
	assert.Len(t, locs, 2)
}
