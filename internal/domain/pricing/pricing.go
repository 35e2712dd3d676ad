// Package pricing resolves effective line prices and the quantity policy of
// each unit kind. It has no storage dependencies.
package pricing

import (
	"fmt"

	"stockline/internal/core/apperror"
	"stockline/internal/core/types"
	"stockline/internal/domain/catalog"
)

// DefaultWeighableStep is 0.5 of a unit.
const DefaultWeighableStep types.Quantity = 500

// Policy holds the quantity rules per unit kind.
type Policy struct {
	WeighableStep types.Quantity
}

// DefaultPolicy accepts weighable quantities in steps of 0.5.
func DefaultPolicy() Policy {
	return Policy{WeighableStep: DefaultWeighableStep}
}

// NewPolicy parses the weighable step, e.g. "0.5" or "0.25".
func NewPolicy(weighableStep string) (Policy, error) {
	if weighableStep == "" {
		return DefaultPolicy(), nil
	}
	step, err := types.ParseQuantity(weighableStep)
	if err != nil {
		return Policy{}, fmt.Errorf("weighable step: %w", err)
	}
	if !step.IsPositive() {
		return Policy{}, fmt.Errorf("weighable step must be positive, got %s", weighableStep)
	}
	return Policy{WeighableStep: step}, nil
}

// CheckQuantity enforces the unit policy: whole numbers for pieces, a
// positive multiple of the step for weighable goods.
func (p Policy) CheckQuantity(unit catalog.UnitKind, qty types.Quantity) error {
	switch unit {
	case catalog.UnitWeighable:
		step := p.WeighableStep
		if step <= 0 {
			step = DefaultWeighableStep
		}
		if qty < step || !qty.IsMultipleOf(step) {
			return apperror.NewInvalidQuantity(
				fmt.Sprintf("quantity must be a multiple of %s and at least %s", trimQty(step), trimQty(step))).
				WithField("lines").
				WithDetail("quantity", qty.String()).
				WithDetail("step", step.String())
		}
	default:
		if qty < types.Units(1) || !qty.IsWhole() {
			return apperror.NewInvalidQuantity("quantity must be a whole number of pieces").
				WithField("lines").
				WithDetail("quantity", qty.String())
		}
	}
	return nil
}

// Line is the price-relevant part of a requested sale line.
type Line struct {
	Quantity  types.Quantity
	Total     *types.MinorUnits
	UnitPrice *types.MinorUnits
	Discount  types.MinorUnits
}

// Result is the resolved price of a line.
type Result struct {
	// Basis is the price before the line discount.
	Basis types.MinorUnits
	// Total is max(0, Basis - Discount).
	Total types.MinorUnits
	// UnitPrice is Total / Quantity, informational only.
	UnitPrice types.MinorUnits
}

// Resolve picks the line basis in order: explicit total, explicit unit
// price times quantity, catalog price times quantity. Non-positive explicit
// prices count as absent.
func Resolve(line Line, catalogPrice types.MinorUnits) (Result, error) {
	if line.Discount.IsNegative() {
		return Result{}, apperror.NewInvalidAmount("discount cannot be negative").WithField("lines")
	}

	var basis types.MinorUnits
	switch {
	case line.Total != nil && line.Total.IsPositive():
		basis = *line.Total
	case line.UnitPrice != nil && line.UnitPrice.IsPositive():
		basis = line.UnitPrice.MulQuantity(line.Quantity)
	case catalogPrice.IsPositive():
		basis = catalogPrice.MulQuantity(line.Quantity)
	default:
		return Result{}, apperror.NewBusinessRule(apperror.CodeMissingPrice,
			"item has no price; send unit_price or total_price").
			WithField("lines")
	}

	total := (basis - line.Discount).NonNegative()
	return Result{
		Basis:     basis,
		Total:     total,
		UnitPrice: total.DivQuantity(line.Quantity),
	}, nil
}

// trimQty renders 0.500 as 0.5 for messages.
func trimQty(q types.Quantity) string {
	return q.Decimal().String()
}
