package sale_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockline/internal/core/apperror"
	appctx "stockline/internal/core/context"
	"stockline/internal/core/id"
	"stockline/internal/core/numerator"
	"stockline/internal/core/types"
	"stockline/internal/domain/catalog"
	"stockline/internal/domain/delivery"
	"stockline/internal/domain/pricing"
	"stockline/internal/domain/sale"
	"stockline/internal/domain/stock"
	"stockline/internal/infrastructure/storage/memory"
)

type recordingObserver struct {
	mu       sync.Mutex
	sales    []string
	payments []string
}

func (o *recordingObserver) ObserveSale(result string, _ types.MinorUnits) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sales = append(o.sales, result)
}

func (o *recordingObserver) ObservePayment(result string, _ types.MinorUnits) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.payments = append(o.payments, result)
}

type env struct {
	store    *memory.Store
	svc      *sale.Service
	metrics  *recordingObserver
	main     catalog.Location
	rice     catalog.Item
	cheese   catalog.Item
	cash     catalog.PaymentMethod
	admin    *appctx.Actor
	courier  id.ID
	courierL catalog.Location
}

func newEnv(t *testing.T, debug bool) *env {
	t.Helper()
	store := memory.New()
	ledger := stock.NewLedger(store.Stock(), store)
	metrics := &recordingObserver{}

	// 2 below 5 km, 4 above; bonus 4 over a total of 150.
	five := types.MinorUnits(500)
	fare := delivery.NewCalculator([]delivery.Tier{
		{Min: 0, Max: &five, Price: 200},
		{Min: 501, Price: 400},
	}, 0, 15000, 400)

	e := &env{
		store:   store,
		metrics: metrics,
		main:    store.SeedLocation("Main", catalog.LocationPrincipal, nil),
		rice:    store.SeedItem("Rice", catalog.UnitPieces, 1000),
		cheese:  store.SeedItem("Cheese", catalog.UnitWeighable, 2000),
		cash:    store.SeedPaymentMethod(catalog.PaymentCash, "Cash"),
		admin:   &appctx.Actor{ID: id.New(), Roles: []string{appctx.RoleAdmin}},
		courier: id.New(),
	}
	e.courierL = store.SeedLocation("Courier van", catalog.LocationDealer, &e.courier)

	e.svc = sale.NewService(sale.Deps{
		Repo:      store.Sales(),
		Catalog:   store.Catalog(),
		Stock:     ledger,
		TxManager: store,
		Fare:      fare,
		Policy:    pricing.DefaultPolicy(),
		Numerator: numerator.NewSequenceGenerator(),
		Audit:     store,
		Metrics:   metrics,
		Debug:     debug,
	})
	return e
}

func (e *env) cashPayment(amount types.MinorUnits) sale.PaymentInput {
	return sale.PaymentInput{MethodID: e.cash.ID, Amount: amount}
}

func TestCreate_AdminSaleFromPrincipal(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(5), 0)
	e.store.SetStock(e.cheese.ID, e.main.ID, types.Units(3), 0)

	got, err := e.svc.Create(ctx, sale.CreateRequest{
		Actor:        e.admin,
		CustomerCode: "42",
		Lines: []sale.LineInput{
			{ItemID: e.rice.ID, Quantity: types.Units(2)},
			{ItemID: e.cheese.ID, Quantity: 1500},
		},
		Payments: []sale.PaymentInput{e.cashPayment(1000)},
	})
	require.NoError(t, err)

	assert.Regexp(t, `^SL-\d{4}-00001$`, got.Number)
	assert.Equal(t, e.main.ID, got.LocationID)
	require.NotNil(t, got.CustomerCode)
	assert.Equal(t, "0042", *got.CustomerCode)
	assert.Equal(t, types.MinorUnits(5000), got.Subtotal)
	assert.Equal(t, types.MinorUnits(5000), got.Total)
	assert.Equal(t, types.MinorUnits(1000), got.Paid)
	assert.Equal(t, types.MinorUnits(4000), got.Balance)
	assert.Equal(t, sale.StatusPartial, got.Status)
	require.Len(t, got.Items, 2)
	assert.Equal(t, types.MinorUnits(2000), got.Items[1].UnitPrice)

	assert.Equal(t, types.Units(3), e.store.StockOf(e.rice.ID, e.main.ID).OnHand)
	assert.Equal(t, types.Quantity(1500), e.store.StockOf(e.cheese.ID, e.main.ID).OnHand)

	moves, err := e.store.Stock().MovementsByRecorder(ctx, got.ID)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	for _, m := range moves {
		assert.Equal(t, stock.DirectionOut, m.Direction)
		assert.Equal(t, stock.ReasonSale, m.Reason)
		assert.Equal(t, stock.RecorderSale, m.RecorderType)
	}

	stored, err := e.svc.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Payments, 1)
	assert.Equal(t, []string{"ok"}, e.metrics.sales)
	assert.Len(t, e.store.AuditEntries(), 1)
}

func TestCreate_TotalsWithHeaderDiscountAndTax(t *testing.T) {
	e := newEnv(t, false)
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(5), 0)
	total := types.MinorUnits(900)

	got, err := e.svc.Create(context.Background(), sale.CreateRequest{
		Actor:    e.admin,
		Discount: 300,
		Tax:      50,
		Lines: []sale.LineInput{
			{ItemID: e.rice.ID, Quantity: types.Units(1), Total: &total, Discount: 100},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(800), got.Subtotal)
	assert.Equal(t, types.MinorUnits(550), got.Total)
	assert.Equal(t, sale.StatusOwed, got.Status)
}

func TestCreate_InsufficientStockRollsBackEverything(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(5), 0)
	e.store.SetStock(e.cheese.ID, e.main.ID, types.Units(1), 0)

	_, err := e.svc.Create(ctx, sale.CreateRequest{
		Actor: e.admin,
		Lines: []sale.LineInput{
			{ItemID: e.rice.ID, Quantity: types.Units(2)},
			{ItemID: e.cheese.ID, Quantity: types.Units(2)},
		},
	})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, "lines", appErr.Field())
	assert.Equal(t, 2, appErr.Details["line"])

	assert.Equal(t, types.Units(5), e.store.StockOf(e.rice.ID, e.main.ID).OnHand)
	assert.Zero(t, e.store.Sales().SaleCount())
	assert.Empty(t, e.store.Stock().AllMovements())
	assert.Equal(t, []string{apperror.CodeInsufficientStock}, e.metrics.sales)
}

func TestCreate_ReservedStockIsNotSold(t *testing.T) {
	e := newEnv(t, false)
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(3), types.Units(2))

	_, err := e.svc.Create(context.Background(), sale.CreateRequest{
		Actor: e.admin,
		Lines: []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(2)}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
}

func TestCreate_EmptyCart(t *testing.T) {
	e := newEnv(t, false)

	_, err := e.svc.Create(context.Background(), sale.CreateRequest{
		Actor: e.admin,
		Lines: []sale.LineInput{
			{ItemID: id.Nil(), Quantity: types.Units(1)},
			{ItemID: e.rice.ID, Quantity: 0},
		},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeEmptyCart))
}

func TestCreate_QuantityPolicy(t *testing.T) {
	e := newEnv(t, false)
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(5), 0)
	e.store.SetStock(e.cheese.ID, e.main.ID, types.Units(2), 0)

	for name, line := range map[string]sale.LineInput{
		"fractional pieces":    {ItemID: e.rice.ID, Quantity: 1500},
		"off-step weighable":   {ItemID: e.cheese.ID, Quantity: 1300},
		"below-step weighable": {ItemID: e.cheese.ID, Quantity: 250},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.svc.Create(context.Background(), sale.CreateRequest{
				Actor: e.admin,
				Lines: []sale.LineInput{line},
			})
			assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuantity))
			assert.Equal(t, types.Units(5), e.store.StockOf(e.rice.ID, e.main.ID).OnHand)
			assert.Equal(t, types.Units(2), e.store.StockOf(e.cheese.ID, e.main.ID).OnHand)
			assert.Empty(t, e.store.Stock().AllMovements())
			assert.Zero(t, e.store.Sales().SaleCount())
		})
	}

	got, err := e.svc.Create(context.Background(), sale.CreateRequest{
		Actor: e.admin,
		Lines: []sale.LineInput{{ItemID: e.cheese.ID, Quantity: 1500}},
	})
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(3000), got.Total)
	assert.Equal(t, types.Quantity(500), e.store.StockOf(e.cheese.ID, e.main.ID).OnHand)
	require.Len(t, e.store.Stock().AllMovements(), 1)
}

func TestCreate_UnknownItemAndMethod(t *testing.T) {
	e := newEnv(t, false)
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(5), 0)

	_, err := e.svc.Create(context.Background(), sale.CreateRequest{
		Actor: e.admin,
		Lines: []sale.LineInput{{ItemID: id.New(), Quantity: types.Units(1)}},
	})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, "lines", appErr.Field())

	_, err = e.svc.Create(context.Background(), sale.CreateRequest{
		Actor:    e.admin,
		Lines:    []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}},
		Payments: []sale.PaymentInput{{MethodID: id.New(), Amount: 100}},
	})
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "payments", appErr.Field())
	assert.Equal(t, types.Units(5), e.store.StockOf(e.rice.ID, e.main.ID).OnHand)
}

func TestCreate_OverPaymentTolerance(t *testing.T) {
	e := newEnv(t, false)
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(5), 0)
	req := func(paid types.MinorUnits) sale.CreateRequest {
		return sale.CreateRequest{
			Actor:    e.admin,
			Lines:    []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}},
			Payments: []sale.PaymentInput{e.cashPayment(paid)},
		}
	}

	got, err := e.svc.Create(context.Background(), req(1001))
	require.NoError(t, err)
	assert.Equal(t, sale.StatusPaid, got.Status)
	assert.Equal(t, types.MinorUnits(-1), got.Balance)

	_, err = e.svc.Create(context.Background(), req(1002))
	assert.True(t, apperror.HasCode(err, apperror.CodeOverPayment))
	assert.Equal(t, types.Units(4), e.store.StockOf(e.rice.ID, e.main.ID).OnHand)
}

func TestCreate_RejectsHugePayments(t *testing.T) {
	e := newEnv(t, false)
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(5), 0)
	req := func(payments ...types.MinorUnits) sale.CreateRequest {
		r := sale.CreateRequest{
			Actor: e.admin,
			Lines: []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}},
		}
		for _, p := range payments {
			r.Payments = append(r.Payments, e.cashPayment(p))
		}
		return r
	}

	// Two of these would wrap a plain int64 sum to a negative total.
	_, err := e.svc.Create(context.Background(), req(types.MinorUnits(1<<62), types.MinorUnits(1<<62)))
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidAmount, appErr.Code)
	assert.Equal(t, "payments", appErr.Field())

	_, err = e.svc.Create(context.Background(), req(types.MaxMinorUnits, types.MaxMinorUnits))
	assert.True(t, apperror.HasCode(err, apperror.CodeOverPayment))

	_, err = e.svc.Create(context.Background(), req(600, 600))
	assert.True(t, apperror.HasCode(err, apperror.CodeOverPayment))

	assert.Equal(t, types.Units(5), e.store.StockOf(e.rice.ID, e.main.ID).OnHand)
	assert.Empty(t, e.store.Stock().AllMovements())
	assert.Zero(t, e.store.Sales().SaleCount())
}

func TestCreate_RejectsOutOfRangeLines(t *testing.T) {
	e := newEnv(t, false)
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(5), 0)
	huge := types.MinorUnits(1 << 62)
	maxPrice := types.MaxMinorUnits

	for name, line := range map[string]sale.LineInput{
		"unit price":        {ItemID: e.rice.ID, Quantity: types.Units(1), UnitPrice: &huge},
		"total price":       {ItemID: e.rice.ID, Quantity: types.Units(1), Total: &huge},
		"quantity":          {ItemID: e.rice.ID, Quantity: types.MaxQuantity + 1},
		"line total":        {ItemID: e.rice.ID, Quantity: types.Units(5), UnitPrice: &maxPrice},
		"negative discount": {ItemID: e.rice.ID, Quantity: types.Units(1), Discount: -huge},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.svc.Create(context.Background(), sale.CreateRequest{
				Actor: e.admin,
				Lines: []sale.LineInput{line},
			})
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Contains(t, []string{apperror.CodeInvalidAmount, apperror.CodeInvalidQuantity}, appErr.Code)
			assert.Equal(t, "lines", appErr.Field())
			assert.Equal(t, types.Units(5), e.store.StockOf(e.rice.ID, e.main.ID).OnHand)
			assert.Zero(t, e.store.Sales().SaleCount())
		})
	}

	_, err := e.svc.Create(context.Background(), sale.CreateRequest{
		Actor: e.admin,
		Tax:   huge,
		Lines: []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}},
	})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "tax", appErr.Field())
}

func TestCreate_DealerSellsFromOwnLocation(t *testing.T) {
	e := newEnv(t, false)
	dealer := &appctx.Actor{ID: id.New(), Roles: []string{appctx.RoleDealer}}
	own := e.store.SeedLocation("Kiosk", catalog.LocationDealer, &dealer.ID)
	e.store.SetStock(e.rice.ID, own.ID, types.Units(2), 0)
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(9), 0)

	got, err := e.svc.Create(context.Background(), sale.CreateRequest{
		Actor: dealer,
		Lines: []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}},
	})
	require.NoError(t, err)
	assert.Equal(t, own.ID, got.LocationID)
	assert.Equal(t, types.Units(9), e.store.StockOf(e.rice.ID, e.main.ID).OnHand)

	orphan := &appctx.Actor{ID: id.New(), Roles: []string{appctx.RoleDealer}}
	_, err = e.svc.Create(context.Background(), sale.CreateRequest{
		Actor: orphan,
		Lines: []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeNoDealerLocation))
}

func TestCreate_DeliveryFare(t *testing.T) {
	e := newEnv(t, false)
	e.store.SetStock(e.rice.ID, e.courierL.ID, types.Units(20), 0)

	got, err := e.svc.Create(context.Background(), sale.CreateRequest{
		Actor:           e.admin,
		DeliveryActorID: &e.courier,
		Km:              325,
		Lines:           []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(16)}},
	})
	require.NoError(t, err)
	assert.Equal(t, e.courierL.ID, got.LocationID)
	assert.Equal(t, types.MinorUnits(16000), got.Total)
	assert.Equal(t, types.MinorUnits(600), got.DeliveryPay, "tier price plus bonus over the threshold")

	got, err = e.svc.Create(context.Background(), sale.CreateRequest{
		Actor:           e.admin,
		DeliveryActorID: &e.courier,
		Lines:           []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}},
	})
	require.NoError(t, err)
	assert.True(t, got.DeliveryPay.IsZero(), "no fare without a distance")

	stranger := id.New()
	_, err = e.svc.Create(context.Background(), sale.CreateRequest{
		Actor:           e.admin,
		DeliveryActorID: &stranger,
		Km:              100,
		Lines:           []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeNoDealerLocation))
}

func TestCreate_HidesUnexpectedErrors(t *testing.T) {
	for _, debug := range []bool{false, true} {
		e := newEnv(t, debug)
		e.store.SetStock(e.rice.ID, e.main.ID, types.Units(5), 0)
		e.store.FailOn("CreateSale", errors.New("connection reset"))

		_, err := e.svc.Create(context.Background(), sale.CreateRequest{
			Actor: e.admin,
			Lines: []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}},
		})
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeInternal, appErr.Code)
		if debug {
			assert.Contains(t, appErr.Message, "connection reset")
		} else {
			assert.Equal(t, "An error occurred while trying to create sale.", appErr.Message)
		}
		assert.Equal(t, types.Units(5), e.store.StockOf(e.rice.ID, e.main.ID).OnHand)
	}
}

func TestCreate_InvalidCustomerCode(t *testing.T) {
	e := newEnv(t, false)

	_, err := e.svc.Create(context.Background(), sale.CreateRequest{
		Actor:        e.admin,
		CustomerCode: "12a",
		Lines:        []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}},
	})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "customer_code", appErr.Field())
}

func TestAddPayment(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(5), 0)

	created, err := e.svc.Create(ctx, sale.CreateRequest{
		Actor: e.admin,
		Lines: []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(2)}},
	})
	require.NoError(t, err)
	require.Equal(t, sale.StatusOwed, created.Status)

	_, err = e.svc.AddPayment(ctx, e.admin, created.ID, e.cashPayment(2500))
	assert.True(t, apperror.HasCode(err, apperror.CodeAmountExceedsBalance))

	_, err = e.svc.AddPayment(ctx, e.admin, created.ID, sale.PaymentInput{MethodID: id.New(), Amount: 100})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "payment_method_id", appErr.Field())

	got, err := e.svc.AddPayment(ctx, e.admin, created.ID, e.cashPayment(500))
	require.NoError(t, err)
	assert.Equal(t, sale.StatusPartial, got.Status)
	assert.Equal(t, types.MinorUnits(1500), got.Balance)

	got, err = e.svc.AddPayment(ctx, e.admin, created.ID, e.cashPayment(1500))
	require.NoError(t, err)
	assert.Equal(t, sale.StatusPaid, got.Status)

	_, err = e.svc.AddPayment(ctx, e.admin, created.ID, e.cashPayment(1))
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadySettled))

	stored, err := e.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Payments, 2)
	assert.Equal(t, types.MinorUnits(2000), stored.Paid)

	_, err = e.svc.AddPayment(ctx, e.admin, created.ID, e.cashPayment(0))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAmount))

	_, err = e.svc.AddPayment(ctx, e.admin, id.New(), e.cashPayment(1))
	assert.True(t, apperror.IsNotFound(err))
}

func TestSettleDelivery(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	e.store.SetStock(e.rice.ID, e.courierL.ID, types.Units(5), 0)
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(5), 0)

	delivered, err := e.svc.Create(ctx, sale.CreateRequest{
		Actor:           e.admin,
		DeliveryActorID: &e.courier,
		Km:              900,
		Lines:           []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}},
	})
	require.NoError(t, err)
	require.Equal(t, types.MinorUnits(400), delivered.DeliveryPay)

	counter, err := e.svc.Create(ctx, sale.CreateRequest{
		Actor: e.admin,
		Lines: []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}},
	})
	require.NoError(t, err)

	_, notice, err := e.svc.SettleDelivery(ctx, counter.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.NoticeNoDeliveryFee, notice)

	got, notice, err := e.svc.SettleDelivery(ctx, delivered.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.NoticeSettled, notice)
	require.NotNil(t, got.DeliverySettledAt)

	_, notice, err = e.svc.SettleDelivery(ctx, delivered.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.NoticeAlreadySettled, notice)
}

func TestList(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	e.store.SetStock(e.rice.ID, e.main.ID, types.Units(5), 0)

	for _, paid := range []types.MinorUnits{0, 1000} {
		req := sale.CreateRequest{
			Actor: e.admin,
			Lines: []sale.LineInput{{ItemID: e.rice.ID, Quantity: types.Units(1)}},
		}
		if paid > 0 {
			req.Payments = []sale.PaymentInput{e.cashPayment(paid)}
		}
		_, err := e.svc.Create(ctx, req)
		require.NoError(t, err)
	}

	paid := sale.StatusPaid
	rows, err := e.svc.List(ctx, sale.ListFilter{Status: &paid})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, sale.StatusPaid, rows[0].Status)
}
