// Package types provides the fixed-point value types used by the ledger.
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an arbitrary-precision decimal used only at the edges
// (request parsing, configuration). Stored amounts are MinorUnits.
type Money = decimal.Decimal

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Quantity is a fixed-point quantity with 3 decimal places (scale = 1e3).
// Stored as BIGINT milli-units, so comparisons are exact.
type Quantity int64

const (
	QuantityScale  int64 = 1_000
	quantityDigits int32 = 3

	// MaxQuantity is the largest magnitude a request may carry: one billion units.
	MaxQuantity Quantity = 1_000_000_000 * Quantity(QuantityScale)
)

// ErrOutOfRange is wrapped by parse errors for values beyond the ledger bounds.
var ErrOutOfRange = errors.New("value out of range")

var (
	maxInt64Decimal = decimal.NewFromInt(math.MaxInt64)
	minInt64Decimal = decimal.NewFromInt(math.MinInt64)
)

// scaled rounds d half-up to digits and shifts it to an integer count,
// saturating at the int64 bounds instead of wrapping.
func scaled(d decimal.Decimal, digits int32) int64 {
	v := d.Round(digits).Shift(digits)
	switch {
	case v.GreaterThan(maxInt64Decimal):
		return math.MaxInt64
	case v.LessThan(minInt64Decimal):
		return math.MinInt64
	}
	return v.IntPart()
}

// NewQuantityFromDecimal rounds d half-up to 3 decimals, saturating at the int64 bounds.
func NewQuantityFromDecimal(d decimal.Decimal) Quantity {
	return Quantity(scaled(d, quantityDigits))
}

// QuantityFromDecimal is NewQuantityFromDecimal bounded by MaxQuantity.
func QuantityFromDecimal(d decimal.Decimal) (Quantity, error) {
	q := NewQuantityFromDecimal(d)
	if q > MaxQuantity || q < -MaxQuantity {
		return 0, fmt.Errorf("quantity %s: %w", d.String(), ErrOutOfRange)
	}
	return q, nil
}

// NewQuantityFromInt64Scaled wraps a raw milli-unit value.
func NewQuantityFromInt64Scaled(v int64) Quantity { return Quantity(v) }

// Units returns a whole-unit quantity.
func Units(n int64) Quantity { return Quantity(n * QuantityScale) }

// ParseQuantity parses a decimal string such as "2.5" or "0.125".
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse quantity: %w", err)
	}
	return QuantityFromDecimal(d)
}

func (q Quantity) Int64Scaled() int64 { return int64(q) }

func (q Quantity) Decimal() decimal.Decimal { return decimal.New(int64(q), -quantityDigits) }

func (q Quantity) Float64() float64 { return float64(q) / float64(QuantityScale) }

func (q Quantity) IsZero() bool { return q == 0 }

func (q Quantity) IsPositive() bool { return q > 0 }

func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Neg() Quantity { return -q }

// IsWhole reports whether q has no fractional part.
func (q Quantity) IsWhole() bool { return int64(q)%QuantityScale == 0 }

// IsMultipleOf reports whether q is an exact multiple of step.
func (q Quantity) IsMultipleOf(step Quantity) bool {
	if step <= 0 {
		return false
	}
	return int64(q)%int64(step) == 0
}

// InRange reports whether q is within ±MaxQuantity.
func (q Quantity) InRange() bool { return q <= MaxQuantity && q >= -MaxQuantity }

// String returns a decimal string with 3 fractional digits.
func (q Quantity) String() string {
	sign, u := magnitude(int64(q))
	return fmt.Sprintf("%s%d.%03d", sign, u/uint64(QuantityScale), u%uint64(QuantityScale))
}

// MarshalJSON encodes Quantity as a JSON number with 3 digits.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts either a JSON number or string.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	s, null, err := unquoteNumber(data)
	if err != nil {
		return err
	}
	if null {
		*q = 0
		return nil
	}
	parsed, err := ParseQuantity(s)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// MinorUnits represents a monetary value in cents.
type MinorUnits int64

const (
	minorDigits int32 = 2
	minorScale  int64 = 100

	// MaxMinorUnits bounds every amount the ledger accepts: ten trillion in major units.
	MaxMinorUnits MinorUnits = 1_000_000_000_000_000
)

// Cents is MinorUnits read as an integer count of cents.
func Cents(n int64) MinorUnits { return MinorUnits(n) }

// NewMinorUnitsFromDecimal rounds d half-up to cents, saturating at the int64 bounds.
func NewMinorUnitsFromDecimal(d decimal.Decimal) MinorUnits {
	return MinorUnits(scaled(d, minorDigits))
}

// MinorUnitsFromDecimal is NewMinorUnitsFromDecimal bounded by MaxMinorUnits.
func MinorUnitsFromDecimal(d decimal.Decimal) (MinorUnits, error) {
	m := NewMinorUnitsFromDecimal(d)
	if !m.InRange() {
		return 0, fmt.Errorf("amount %s: %w", d.String(), ErrOutOfRange)
	}
	return m, nil
}

// ParseMinorUnits parses a decimal string such as "12.345" into 1235 cents.
func ParseMinorUnits(s string) (MinorUnits, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount: %w", err)
	}
	return MinorUnitsFromDecimal(d)
}

// MustMinorUnits parses s and panics on error. Use only for constants.
func MustMinorUnits(s string) MinorUnits {
	m, err := ParseMinorUnits(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Decimal returns the amount in major units.
func (m MinorUnits) Decimal() decimal.Decimal { return decimal.New(int64(m), -minorDigits) }

// ToMajor converts minor units back to major units for display.
func (m MinorUnits) ToMajor() float64 { return float64(m) / float64(minorScale) }

func (m MinorUnits) IsZero() bool     { return m == 0 }
func (m MinorUnits) IsPositive() bool { return m > 0 }
func (m MinorUnits) IsNegative() bool { return m < 0 }
func (m MinorUnits) Neg() MinorUnits  { return -m }

// InRange reports whether m is within ±MaxMinorUnits.
func (m MinorUnits) InRange() bool { return m <= MaxMinorUnits && m >= -MaxMinorUnits }

// Add returns m+o. ok is false when the sum leaves ±MaxMinorUnits or
// either operand is already out of range.
func (m MinorUnits) Add(o MinorUnits) (sum MinorUnits, ok bool) {
	if !m.InRange() || !o.InRange() {
		return 0, false
	}
	sum = m + o
	return sum, sum.InRange()
}

// NonNegative clamps m at zero.
func (m MinorUnits) NonNegative() MinorUnits {
	if m < 0 {
		return 0
	}
	return m
}

// MulQuantity multiplies a unit amount by a quantity, rounding half-up to cents.
func (m MinorUnits) MulQuantity(q Quantity) MinorUnits {
	return NewMinorUnitsFromDecimal(m.Decimal().Mul(q.Decimal()))
}

// DivQuantity divides an amount by a quantity, rounding half-up to cents.
// Returns 0 for a non-positive quantity.
func (m MinorUnits) DivQuantity(q Quantity) MinorUnits {
	if q <= 0 {
		return 0
	}
	return NewMinorUnitsFromDecimal(m.Decimal().DivRound(q.Decimal(), minorDigits))
}

// String returns a decimal string with 2 fractional digits.
func (m MinorUnits) String() string {
	sign, u := magnitude(int64(m))
	return fmt.Sprintf("%s%d.%02d", sign, u/uint64(minorScale), u%uint64(minorScale))
}

// MarshalJSON encodes the amount as a JSON number with 2 digits.
func (m MinorUnits) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts either a JSON number or string in major units.
func (m *MinorUnits) UnmarshalJSON(data []byte) error {
	s, null, err := unquoteNumber(data)
	if err != nil {
		return err
	}
	if null {
		*m = 0
		return nil
	}
	parsed, err := ParseMinorUnits(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// magnitude splits v into a sign and an absolute value that also holds MinInt64.
func magnitude(v int64) (string, uint64) {
	if v < 0 {
		return "-", uint64(-(v + 1)) + 1
	}
	return "", uint64(v)
}

func unquoteNumber(data []byte) (string, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", true, nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false, err
		}
		return s, false, nil
	}
	return string(data), false, nil
}
