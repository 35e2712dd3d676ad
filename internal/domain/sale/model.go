// Package sale turns a cart into a durable sale and reconciles its payments.
package sale

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"stockline/internal/core/apperror"
	"stockline/internal/core/id"
	"stockline/internal/core/types"
)

// Status is the payment state of a sale.
type Status string

const (
	StatusOwed    Status = "debe"
	StatusPartial Status = "parcial"
	StatusPaid    Status = "pagado"
)

// DeriveStatus maps paid/balance onto a status.
func DeriveStatus(paid, balance types.MinorUnits) Status {
	switch {
	case balance <= 0:
		return StatusPaid
	case paid > 0:
		return StatusPartial
	default:
		return StatusOwed
	}
}

// OverPaymentTolerance is the rounding slack accepted when payments exceed the total.
const OverPaymentTolerance types.MinorUnits = 1

// Sale is the header of a finalized sale. Only Paid, Balance, Status and
// DeliverySettledAt change after creation.
type Sale struct {
	ID              id.ID            `db:"id" json:"id"`
	Number          string           `db:"number" json:"number"`
	ActorID         id.ID            `db:"actor_id" json:"actorId"`
	CustomerCode    *string          `db:"customer_code" json:"customerCode,omitempty"`
	DeliveryActorID *id.ID           `db:"delivery_actor_id" json:"deliveryActorId,omitempty"`
	LocationID      id.ID            `db:"location_id" json:"locationId"`
	Subtotal        types.MinorUnits `db:"subtotal" json:"subtotal"`
	Discount        types.MinorUnits `db:"discount" json:"discount"`
	Tax             types.MinorUnits `db:"tax" json:"tax"`
	Total           types.MinorUnits `db:"total" json:"total"`
	Paid            types.MinorUnits `db:"paid" json:"paid"`
	Balance         types.MinorUnits `db:"balance" json:"balance"`
	Status          Status           `db:"status" json:"status"`
	// Km is the delivery distance with 2 decimals (325 = 3.25 km).
	Km                types.MinorUnits `db:"km" json:"km"`
	DeliveryPay       types.MinorUnits `db:"delivery_pay" json:"deliveryPay"`
	DeliverySettledAt *time.Time       `db:"delivery_settled_at" json:"deliverySettledAt,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updatedAt"`

	Items    []Item    `db:"-" json:"items,omitempty"`
	Payments []Payment `db:"-" json:"payments,omitempty"`
}

// ApplyPayment adds amount to Paid and recomputes Balance and Status.
func (s *Sale) ApplyPayment(amount types.MinorUnits) {
	s.Paid += amount
	s.Balance = s.Total - s.Paid
	s.Status = DeriveStatus(s.Paid, s.Balance)
}

// Item is one immutable sale line.
type Item struct {
	ID        id.ID            `db:"id" json:"id"`
	SaleID    id.ID            `db:"sale_id" json:"saleId"`
	LineNo    int              `db:"line_no" json:"lineNo"`
	ItemID    id.ID            `db:"item_id" json:"itemId"`
	Quantity  types.Quantity   `db:"quantity" json:"quantity"`
	UnitPrice types.MinorUnits `db:"unit_price" json:"unitPrice"`
	Discount  types.MinorUnits `db:"discount" json:"discount"`
	Total     types.MinorUnits `db:"total" json:"total"`
}

// Payment is an append-only payment against a sale.
type Payment struct {
	ID        id.ID            `db:"id" json:"id"`
	SaleID    id.ID            `db:"sale_id" json:"saleId"`
	MethodID  id.ID            `db:"payment_method_id" json:"methodId"`
	Amount    types.MinorUnits `db:"amount" json:"amount"`
	Reference *string          `db:"reference" json:"reference,omitempty"`
	ActorID   id.ID            `db:"actor_id" json:"actorId"`
	PaidAt    time.Time        `db:"paid_at" json:"paidAt"`
}

// LineInput is one requested cart line.
type LineInput struct {
	ItemID    id.ID
	Quantity  types.Quantity
	UnitPrice *types.MinorUnits
	Total     *types.MinorUnits
	Discount  types.MinorUnits
}

// PaymentInput is a payment offered with a sale or afterwards.
type PaymentInput struct {
	MethodID  id.ID
	Amount    types.MinorUnits
	Reference string
}

// MaxReferenceLength bounds payment references.
const MaxReferenceLength = 191

func (p PaymentInput) validate(field string) error {
	if !p.Amount.IsPositive() {
		return apperror.NewInvalidAmount("payment amount must be greater than 0").
			WithField(field).
			WithDetail("amount", p.Amount.String())
	}
	if !p.Amount.InRange() {
		return apperror.NewInvalidAmount("payment amount is out of range").
			WithField(field).
			WithDetail("max", types.MaxMinorUnits.String())
	}
	if len(p.Reference) > MaxReferenceLength {
		return apperror.NewValidation(fmt.Sprintf("reference must be at most %d characters", MaxReferenceLength)).
			WithField(field)
	}
	return nil
}

func (p PaymentInput) reference() *string {
	if p.Reference == "" {
		return nil
	}
	r := p.Reference
	return &r
}

var customerCodeRe = regexp.MustCompile(`^\d{1,4}$`)

// NormalizeCustomerCode left-pads a numeric code to 4 digits. Empty input
// means no customer.
func NormalizeCustomerCode(code string) (*string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	if !customerCodeRe.MatchString(code) {
		return nil, apperror.NewValidation("customer code must have 4 digits").WithField("customer_code")
	}
	padded := strings.Repeat("0", 4-len(code)) + code
	return &padded, nil
}

// ListFilter narrows sale listings.
type ListFilter struct {
	Status     *Status
	LocationID *id.ID
	ActorID    *id.ID
	Limit      int
	Offset     int
}

// SettleNotice describes what SettleDelivery did.
type SettleNotice string

const (
	NoticeSettled        SettleNotice = "settled"
	NoticeAlreadySettled SettleNotice = "already_settled"
	NoticeNoDeliveryFee  SettleNotice = "no_delivery_fee"
)
