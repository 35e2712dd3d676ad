package transfer_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockline/internal/core/apperror"
	"stockline/internal/core/id"
	"stockline/internal/core/numerator"
	"stockline/internal/core/types"
	"stockline/internal/domain/catalog"
	"stockline/internal/domain/pricing"
	"stockline/internal/domain/stock"
	"stockline/internal/domain/transfer"
	"stockline/internal/infrastructure/storage/memory"
)

type countingObserver struct{ results []string }

func (o *countingObserver) ObserveTransfer(result string, _ int) {
	o.results = append(o.results, result)
}

type env struct {
	store   *memory.Store
	svc     *transfer.Service
	metrics *countingObserver
	main    catalog.Location
	dealer  catalog.Location
	rice    catalog.Item
	cheese  catalog.Item
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	owner := id.New()
	metrics := &countingObserver{}
	e := &env{
		store:   store,
		metrics: metrics,
		main:    store.SeedLocation("Main", catalog.LocationPrincipal, nil),
		dealer:  store.SeedLocation("North", catalog.LocationDealer, &owner),
		rice:    store.SeedItem("Rice", catalog.UnitPieces, 1000),
		cheese:  store.SeedItem("Cheese", catalog.UnitWeighable, 2000),
	}
	e.svc = transfer.NewService(
		store.Transfers(),
		store.Catalog(),
		stock.NewLedger(store.Stock(), store),
		store,
		pricing.DefaultPolicy(),
		numerator.NewSequenceGenerator(),
		store,
		metrics,
	)
	return e
}

func TestCreate_MovesStockAndRecordsMovements(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(10), 0)
	e.store.SetStock(e.cheese.ID, e.main.ID, types.Units(4), 0)

	got, err := e.svc.Create(ctx, transfer.CreateRequest{
		ActorID:      id.New(),
		ToLocationID: e.dealer.ID,
		Note:         "  weekly restock ",
		Lines: []transfer.LineInput{
			{ItemID: e.rice.ID, Quantity: types.Units(3)},
			{ItemID: e.cheese.ID, Quantity: 1500},
		},
	})
	require.NoError(t, err)

	assert.Regexp(t, `^TR-\d{4}-00001$`, got.Number)
	assert.Equal(t, transfer.StatusDone, got.Status)
	assert.Equal(t, e.main.ID, got.FromLocationID)
	require.NotNil(t, got.Note)
	assert.Equal(t, "weekly restock", *got.Note)
	require.Len(t, got.Lines, 2)

	assert.Equal(t, types.Units(7), e.store.StockOf(e.rice.ID, e.main.ID).OnHand)
	assert.Equal(t, types.Units(3), e.store.StockOf(e.rice.ID, e.dealer.ID).OnHand)
	assert.Equal(t, types.Quantity(2500), e.store.StockOf(e.cheese.ID, e.main.ID).OnHand)
	assert.Equal(t, types.Quantity(1500), e.store.StockOf(e.cheese.ID, e.dealer.ID).OnHand)

	moves, err := e.store.Stock().MovementsByRecorder(ctx, got.ID)
	require.NoError(t, err)
	require.Len(t, moves, 4)
	for _, m := range moves {
		assert.Equal(t, stock.ReasonTransfer, m.Reason)
		assert.Equal(t, stock.RecorderTransfer, m.RecorderType)
	}

	stored, err := e.svc.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
	assert.Equal(t, []string{"ok"}, e.metrics.results)
}

func TestCreate_FailingLineAbortsTransfer(t *testing.T) {
	e := newEnv(t)
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(10), 0)
	e.store.SetStock(e.cheese.ID, e.main.ID, types.Units(1), 0)

	_, err := e.svc.Create(context.Background(), transfer.CreateRequest{
		ToLocationID: e.dealer.ID,
		Lines: []transfer.LineInput{
			{ItemID: e.rice.ID, Quantity: types.Units(3)},
			{ItemID: e.cheese.ID, Quantity: types.Units(2)},
		},
	})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, 2, appErr.Details["line"])

	assert.Equal(t, types.Units(10), e.store.StockOf(e.rice.ID, e.main.ID).OnHand)
	assert.True(t, e.store.StockOf(e.rice.ID, e.dealer.ID).OnHand.IsZero())
	assert.Zero(t, e.store.Transfers().TransferCount())
	assert.Empty(t, e.store.Stock().AllMovements())
}

func TestCreate_Destination(t *testing.T) {
	e := newEnv(t)
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(10), 0)
	inactive := e.store.SeedLocation("Closed", catalog.LocationPrincipal, nil)
	e.store.Deactivate(inactive.ID)

	for name, dest := range map[string]id.ID{
		"principal itself": e.main.ID,
		"unknown":          id.New(),
		"inactive":         inactive.ID,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.svc.Create(context.Background(), transfer.CreateRequest{
				ToLocationID: dest,
				Lines:        []transfer.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}},
			})
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
			assert.Equal(t, "to_location_id", appErr.Field())
		})
	}
}

func TestCreate_RequestValidation(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name  string
		req   transfer.CreateRequest
		field string
	}{
		{"no lines", transfer.CreateRequest{ToLocationID: e.dealer.ID}, "lines"},
		{"no destination", transfer.CreateRequest{Lines: []transfer.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}}}, "to_location_id"},
		{"zero quantity", transfer.CreateRequest{ToLocationID: e.dealer.ID, Lines: []transfer.LineInput{{ItemID: e.rice.ID}}}, "lines"},
		{"long note", transfer.CreateRequest{
			ToLocationID: e.dealer.ID,
			Note:         strings.Repeat("n", transfer.MaxNoteLength+1),
			Lines:        []transfer.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}},
		}, "note"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Create(context.Background(), tt.req)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.field, appErr.Field())
		})
	}
}

func TestCreate_UnitPolicy(t *testing.T) {
	e := newEnv(t)
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(10), 0)

	_, err := e.svc.Create(context.Background(), transfer.CreateRequest{
		ToLocationID: e.dealer.ID,
		Lines:        []transfer.LineInput{{ItemID: e.rice.ID, Quantity: 2500}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuantity))
}

func TestCreate_NoPrincipal(t *testing.T) {
	store := memory.New()
	owner := id.New()
	dealer := store.SeedLocation("North", catalog.LocationDealer, &owner)
	item := store.SeedItem("Rice", catalog.UnitPieces, 1000)
	svc := transfer.NewService(store.Transfers(), store.Catalog(), stock.NewLedger(store.Stock(), store),
		store, pricing.DefaultPolicy(), nil, nil, nil)

	_, err := svc.Create(context.Background(), transfer.CreateRequest{
		ToLocationID: dealer.ID,
		Lines:        []transfer.LineInput{{ItemID: item.ID, Quantity: types.Units(1)}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeNoPrincipalLocation))
}
