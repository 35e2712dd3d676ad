package sale

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	appctx "stockline/internal/core/context"
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

// CatalogReader is the catalog surface a sale needs.
type CatalogReader interface {
	GetItem(ctx context.Context, itemID id.ID) (*catalog.Item, error)
	GetPaymentMethod(ctx context.Context, methodID id.ID) (*catalog.PaymentMethod, error)
	FindPrincipal(ctx context.Context) (*catalog.Location, error)
	FindOwnedBy(ctx context.Context, actorID id.ID) (*catalog.Location, error)
}

// StockDebiter is the ledger surface a sale needs.
type StockDebiter interface {
	DebitAvailable(ctx context.Context, itemID, locationID id.ID, qty types.Quantity) (*stock.Record, error)
	RecordMovements(ctx context.Context, movements []stock.Movement) error
}

// FareCalculator prices the delivery payout.
type FareCalculator interface {
	Payout(km, saleTotal types.MinorUnits) types.MinorUnits
}

// Auditor records business events.
type Auditor interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes any) error
}

// Observer receives sale outcomes for metrics.
type Observer interface {
	ObserveSale(result string, total types.MinorUnits)
	ObservePayment(result string, amount types.MinorUnits)
}

// Deps wires a Service.
type Deps struct {
	Repo      Repository
	Catalog   CatalogReader
	Stock     StockDebiter
	TxManager tx.Manager
	Fare      FareCalculator
	Policy    pricing.Policy
	Numerator numerator.Generator
	// Audit and Metrics are optional.
	Audit   Auditor
	Metrics Observer
	// Debug appends the cause of unexpected failures to the client message.
	Debug bool
}

// Service builds sales and takes payments.
type Service struct {
	repo      Repository
	catalog   CatalogReader
	stock     StockDebiter
	txm       tx.Manager
	fare      FareCalculator
	policy    pricing.Policy
	numerator numerator.Generator
	audit     Auditor
	metrics   Observer
	debug     bool
	now       func() time.Time
}

// NewService creates a sale service.
func NewService(d Deps) *Service {
	return &Service{
		repo:      d.Repo,
		catalog:   d.Catalog,
		stock:     d.Stock,
		txm:       d.TxManager,
		fare:      d.Fare,
		policy:    d.Policy,
		numerator: d.Numerator,
		audit:     d.Audit,
		metrics:   d.Metrics,
		debug:     d.Debug,
		now:       time.Now,
	}
}

// CreateRequest is a validated cart.
type CreateRequest struct {
	Actor           *appctx.Actor
	CustomerCode    string
	DeliveryActorID *id.ID
	Km              types.MinorUnits
	Discount        types.MinorUnits
	Tax             types.MinorUnits
	Lines           []LineInput
	Payments        []PaymentInput
}

// Create converts a cart into a sale in one transaction. Any failure rolls
// back every stock debit, line and payment.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Sale, error) {
	if req.Actor == nil {
		return nil, apperror.NewUnauthorized("actor is required")
	}
	if err := validateHeader(req); err != nil {
		s.observeSale(err, 0)
		return nil, err
	}
	customerCode, err := NormalizeCustomerCode(req.CustomerCode)
	if err != nil {
		s.observeSale(err, 0)
		return nil, err
	}

	var created *Sale
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		sale, err := s.build(ctx, req, customerCode)
		if err != nil {
			return err
		}
		created = sale
		return nil
	})
	if err != nil {
		err = s.hideUnexpected(ctx, "create sale", err)
		s.observeSale(err, 0)
		return nil, err
	}

	s.observeSale(nil, created.Total)
	logger.Info(ctx, "sale created",
		"sale_id", created.ID,
		"number", created.Number,
		"location_id", created.LocationID,
		"lines", len(created.Items),
		"total", created.Total.String(),
		"status", created.Status,
	)
	return created, nil
}

func validateHeader(req CreateRequest) error {
	if req.Discount.IsNegative() {
		return apperror.NewInvalidAmount("discount cannot be negative").WithField("discount")
	}
	if req.Tax.IsNegative() {
		return apperror.NewInvalidAmount("tax cannot be negative").WithField("tax")
	}
	if req.Km.IsNegative() {
		return apperror.NewValidation("km cannot be negative").WithField("km")
	}
	for _, f := range []struct {
		name  string
		value types.MinorUnits
	}{{"discount", req.Discount}, {"tax", req.Tax}, {"km", req.Km}} {
		if !f.value.InRange() {
			return apperror.NewInvalidAmount(f.name+" is out of range").
				WithField(f.name).
				WithDetail("max", types.MaxMinorUnits.String())
		}
	}
	for _, p := range req.Payments {
		if err := p.validate("payments"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) build(ctx context.Context, req CreateRequest, customerCode *string) (*Sale, error) {
	now := s.now()

	locationID, err := s.resolveLocation(ctx, req)
	if err != nil {
		return nil, err
	}

	lines := normalizeLines(req.Lines)
	if len(lines) == 0 {
		return nil, apperror.NewBusinessRule(apperror.CodeEmptyCart, "the sale has no valid lines").
			WithField("lines")
	}

	sale := &Sale{
		ID:              id.New(),
		ActorID:         req.Actor.ID,
		CustomerCode:    customerCode,
		DeliveryActorID: req.DeliveryActorID,
		LocationID:      locationID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	movements := make([]stock.Movement, 0, len(lines))
	for i, line := range lines {
		item, err := s.catalog.GetItem(ctx, line.ItemID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, apperror.NewValidation("unknown item").
					WithField("lines").
					WithDetail("line", i+1).
					WithDetail("item_id", line.ItemID.String())
			}
			return nil, fmt.Errorf("get item %s: %w", line.ItemID, err)
		}
		if err := checkLineBounds(line); err != nil {
			return nil, withLine(err, i+1, line.ItemID)
		}
		if err := s.policy.CheckQuantity(item.Unit, line.Quantity); err != nil {
			return nil, withLine(err, i+1, line.ItemID)
		}

		if _, err := s.stock.DebitAvailable(ctx, line.ItemID, locationID, line.Quantity); err != nil {
			return nil, withLine(err, i+1, line.ItemID)
		}

		price, err := pricing.Resolve(pricing.Line{
			Quantity:  line.Quantity,
			Total:     line.Total,
			UnitPrice: line.UnitPrice,
			Discount:  line.Discount,
		}, item.SalePrice)
		if err != nil {
			return nil, withLine(err, i+1, line.ItemID)
		}
		subtotal, ok := sale.Subtotal.Add(price.Total)
		if !ok {
			return nil, withLine(apperror.NewInvalidAmount("sale subtotal is out of range").
				WithField("lines").
				WithDetail("max", types.MaxMinorUnits.String()), i+1, line.ItemID)
		}
		sale.Subtotal = subtotal

		sale.Items = append(sale.Items, Item{
			ID:        id.New(),
			SaleID:    sale.ID,
			LineNo:    i + 1,
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			UnitPrice: price.UnitPrice,
			Discount:  line.Discount,
			Total:     price.Total,
		})

		m := stock.NewMovement(line.ItemID, locationID, stock.DirectionOut, line.Quantity, stock.ReasonSale, req.Actor.ID, now)
		m.RecorderType = stock.RecorderSale
		m.RecorderID = sale.ID
		movements = append(movements, m)
	}

	sale.Discount = req.Discount
	sale.Tax = req.Tax
	sale.Total = (sale.Subtotal - req.Discount + req.Tax).NonNegative()

	if err := s.acceptPayments(ctx, sale, req.Payments, req.Actor.ID, now); err != nil {
		return nil, err
	}

	if req.DeliveryActorID != nil {
		sale.Km = req.Km
		if req.Km.IsPositive() && s.fare != nil {
			sale.DeliveryPay = s.fare.Payout(req.Km, sale.Total)
		}
	}

	if s.numerator != nil {
		sale.Number, err = s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixSale), nil, now)
		if err != nil {
			return nil, fmt.Errorf("generate sale number: %w", err)
		}
	}

	if err := s.repo.Create(ctx, sale); err != nil {
		return nil, fmt.Errorf("insert sale: %w", err)
	}
	if err := s.stock.RecordMovements(ctx, movements); err != nil {
		return nil, err
	}
	if err := s.logAudit(ctx, sale.ID, "create", map[string]any{
		"location_id": sale.LocationID,
		"total":       sale.Total.String(),
		"paid":        sale.Paid.String(),
		"lines":       len(sale.Items),
	}); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Service) resolveLocation(ctx context.Context, req CreateRequest) (id.ID, error) {
	var cands LocationCandidates
	var err error

	if req.DeliveryActorID != nil {
		if cands.DeliveryActor, err = s.catalog.FindOwnedBy(ctx, *req.DeliveryActorID); err != nil {
			return id.Nil(), fmt.Errorf("find delivery location: %w", err)
		}
	} else {
		if cands.Actor, err = s.catalog.FindOwnedBy(ctx, req.Actor.ID); err != nil {
			return id.Nil(), fmt.Errorf("find actor location: %w", err)
		}
		if cands.Principal, err = s.catalog.FindPrincipal(ctx); err != nil {
			return id.Nil(), fmt.Errorf("find principal location: %w", err)
		}
	}
	return ResolveLocation(req.Actor, req.DeliveryActorID, cands)
}

func checkLineBounds(line LineInput) error {
	if !line.Quantity.InRange() {
		return apperror.NewInvalidQuantity("quantity is out of range").
			WithField("lines").
			WithDetail("max", types.MaxQuantity.String())
	}
	for _, v := range []*types.MinorUnits{line.Total, line.UnitPrice, &line.Discount} {
		if v != nil && !v.InRange() {
			return apperror.NewInvalidAmount("price is out of range").
				WithField("lines").
				WithDetail("max", types.MaxMinorUnits.String())
		}
	}
	return nil
}

// normalizeLines drops lines without an item or with a non-positive
// quantity. Lines are not grouped by item.
func normalizeLines(in []LineInput) []LineInput {
	out := make([]LineInput, 0, len(in))
	for _, l := range in {
		if id.IsNil(l.ItemID) || !l.Quantity.IsPositive() {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (s *Service) acceptPayments(ctx context.Context, sale *Sale, payments []PaymentInput, actorID id.ID, now time.Time) error {
	limit := sale.Total + OverPaymentTolerance
	overPaid := func(paid types.MinorUnits) error {
		return apperror.NewBusinessRule(apperror.CodeOverPayment, "the sum of payments exceeds the total").
			WithField("payments").
			WithDetail("total", sale.Total.String()).
			WithDetail("paid", paid.String())
	}

	var paid types.MinorUnits
	for _, p := range payments {
		if err := s.requireMethod(ctx, p.MethodID, "payments"); err != nil {
			return err
		}
		// Both terms stay at or below limit, so the sum cannot wrap.
		if p.Amount > limit {
			return overPaid(p.Amount)
		}
		paid += p.Amount
		if paid > limit {
			return overPaid(paid)
		}
	}

	for _, p := range payments {
		sale.Payments = append(sale.Payments, Payment{
			ID:        id.New(),
			SaleID:    sale.ID,
			MethodID:  p.MethodID,
			Amount:    p.Amount,
			Reference: p.reference(),
			ActorID:   actorID,
			PaidAt:    now,
		})
	}
	sale.Paid = 0
	sale.ApplyPayment(paid)
	return nil
}

func (s *Service) requireMethod(ctx context.Context, methodID id.ID, field string) error {
	if _, err := s.catalog.GetPaymentMethod(ctx, methodID); err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewValidation("unknown payment method").
				WithField(field).
				WithDetail("payment_method_id", methodID.String())
		}
		return fmt.Errorf("get payment method: %w", err)
	}
	return nil
}

// AddPayment records a payment against an existing sale.
func (s *Service) AddPayment(ctx context.Context, actor *appctx.Actor, saleID id.ID, in PaymentInput) (*Sale, error) {
	if actor == nil {
		return nil, apperror.NewUnauthorized("actor is required")
	}
	if err := in.validate("amount"); err != nil {
		return nil, err
	}

	var sale *Sale
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		sale, err = s.repo.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Balance <= 0 {
			return apperror.NewBusinessRule(apperror.CodeAlreadySettled, "this sale is already paid").
				WithField("amount")
		}
		if in.Amount > sale.Balance {
			return apperror.NewBusinessRule(apperror.CodeAmountExceedsBalance, "the amount exceeds the outstanding balance").
				WithField("amount").
				WithDetail("balance", sale.Balance.String())
		}
		if err := s.requireMethod(ctx, in.MethodID, "payment_method_id"); err != nil {
			return err
		}

		now := s.now()
		p := &Payment{
			ID:        id.New(),
			SaleID:    sale.ID,
			MethodID:  in.MethodID,
			Amount:    in.Amount,
			Reference: in.reference(),
			ActorID:   actor.ID,
			PaidAt:    now,
		}
		if err := s.repo.AddPayment(ctx, p); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		sale.ApplyPayment(in.Amount)
		sale.UpdatedAt = now
		if err := s.repo.UpdatePaymentState(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}
		sale.Payments = append(sale.Payments, *p)
		return s.logAudit(ctx, sale.ID, "payment", map[string]any{
			"amount":  in.Amount.String(),
			"balance": sale.Balance.String(),
			"status":  sale.Status,
		})
	})
	if err != nil {
		err = s.hideUnexpected(ctx, "add payment", err)
		s.observePayment(err, 0)
		return nil, err
	}

	s.observePayment(nil, in.Amount)
	logger.Info(ctx, "payment added",
		"sale_id", sale.ID,
		"amount", in.Amount.String(),
		"balance", sale.Balance.String(),
		"status", sale.Status,
	)
	return sale, nil
}

// SettleDelivery marks the delivery payout of a sale as paid out. Settling a
// sale without a fee, or one already settled, changes nothing.
func (s *Service) SettleDelivery(ctx context.Context, saleID id.ID) (*Sale, SettleNotice, error) {
	var (
		sale   *Sale
		notice SettleNotice
	)
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		sale, err = s.repo.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		switch {
		case sale.DeliveryActorID == nil || !sale.DeliveryPay.IsPositive():
			notice = NoticeNoDeliveryFee
			return nil
		case sale.DeliverySettledAt != nil:
			notice = NoticeAlreadySettled
			return nil
		}

		now := s.now()
		sale.DeliverySettledAt = &now
		sale.UpdatedAt = now
		if err := s.repo.MarkDeliverySettled(ctx, sale); err != nil {
			return fmt.Errorf("settle delivery: %w", err)
		}
		notice = NoticeSettled
		return s.logAudit(ctx, sale.ID, "settle_delivery", map[string]any{
			"delivery_pay": sale.DeliveryPay.String(),
		})
	})
	if err != nil {
		return nil, "", s.hideUnexpected(ctx, "settle delivery", err)
	}

	logger.Info(ctx, "delivery settlement", "sale_id", saleID, "notice", notice)
	return sale, notice, nil
}

// Get returns a sale with its items and payments.
func (s *Service) Get(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.repo.Get(ctx, saleID)
}

// List returns sale headers, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Sale, error) {
	return s.repo.List(ctx, filter)
}

// hideUnexpected logs errors that are not AppErrors and replaces them with a
// generic internal error. In debug mode the cause is appended.
func (s *Service) hideUnexpected(ctx context.Context, op string, err error) error {
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	logger.Error(ctx, op+" failed",
		"error", err.Error(),
		"stack", string(debug.Stack()),
	)
	appErr := apperror.NewInternal(err)
	appErr.Message = fmt.Sprintf("An error occurred while trying to %s.", op)
	if s.debug {
		appErr.Message += " " + err.Error()
	}
	return appErr
}

func (s *Service) logAudit(ctx context.Context, saleID id.ID, action string, changes map[string]any) error {
	if s.audit == nil {
		return nil
	}
	if err := s.audit.LogChange(ctx, "sale", saleID, action, changes); err != nil {
		return fmt.Errorf("audit sale %s: %w", action, err)
	}
	return nil
}

func (s *Service) observeSale(err error, total types.MinorUnits) {
	if s.metrics != nil {
		s.metrics.ObserveSale(resultLabel(err), total)
	}
}

func (s *Service) observePayment(err error, amount types.MinorUnits) {
	if s.metrics != nil {
		s.metrics.ObservePayment(resultLabel(err), amount)
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Code
	}
	return apperror.CodeInternal
}

// withLine tags a line-level AppError with its position and item.
func withLine(err error, lineNo int, itemID id.ID) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		if appErr.Field() == "" {
			appErr.WithField("lines")
		}
		return appErr.WithDetail("line", lineNo).WithDetail("item_id", itemID.String())
	}
	return err
}
