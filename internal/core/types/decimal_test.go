package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
	}{
		{"1", 1000},
		{"2.5", 2500},
		{"0.125", 125},
		{"0.1235", 124},
		{"-1.5", -1500},
		{" 3 ", 3000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseQuantity("abc")
	assert.Error(t, err)
	_, err = ParseQuantity("")
	assert.Error(t, err)
}

func TestQuantityString(t *testing.T) {
	assert.Equal(t, "2.500", Quantity(2500).String())
	assert.Equal(t, "0.005", Quantity(5).String())
	assert.Equal(t, "-1.250", Quantity(-1250).String())
	assert.Equal(t, "-9223372036854775.808", Quantity(math.MinInt64).String())
	assert.Equal(t, "9223372036854775.807", Quantity(math.MaxInt64).String())
}

func TestQuantityPolicyHelpers(t *testing.T) {
	assert.True(t, Units(3).IsWhole())
	assert.False(t, Quantity(2500).IsWhole())

	step := Quantity(500)
	assert.True(t, Quantity(2500).IsMultipleOf(step))
	assert.False(t, Quantity(2300).IsMultipleOf(step))
	assert.False(t, Quantity(1000).IsMultipleOf(0))
}

func TestQuantityJSON(t *testing.T) {
	var v struct {
		A Quantity `json:"a"`
		B Quantity `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1.5, "b": "0.25"}`), &v))
	assert.Equal(t, Quantity(1500), v.A)
	assert.Equal(t, Quantity(250), v.B)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1.5, "b": 0.25}`, string(out))
}

func TestParseMinorUnitsRoundsHalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want MinorUnits
	}{
		{"10", 1000},
		{"10.005", 1001},
		{"10.004", 1000},
		{"0.01", 1},
		{"150.00", 15000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMinorUnits(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMinorUnitsArithmetic(t *testing.T) {
	// 3.33 x 1.5 = 4.995 -> 5.00
	assert.Equal(t, MinorUnits(500), MinorUnits(333).MulQuantity(1500))
	// 10.00 x 2.5 = 25.00
	assert.Equal(t, MinorUnits(2500), MinorUnits(1000).MulQuantity(2500))
	// 10.00 / 3 = 3.333 -> 3.33
	assert.Equal(t, MinorUnits(333), MinorUnits(1000).DivQuantity(Units(3)))
	// 10.00 / 0 = 0
	assert.Equal(t, MinorUnits(0), MinorUnits(1000).DivQuantity(0))

	assert.Equal(t, MinorUnits(0), MinorUnits(-5).NonNegative())
	assert.Equal(t, "12.05", MinorUnits(1205).String())
	assert.Equal(t, "-0.50", MinorUnits(-50).String())
	assert.Equal(t, "-92233720368547758.08", MinorUnits(math.MinInt64).String())
}

func TestMinorUnitsJSON(t *testing.T) {
	var v struct {
		Amount MinorUnits  `json:"amount"`
		Opt    *MinorUnits `json:"opt"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount": "19.999", "opt": null}`), &v))
	assert.Equal(t, MinorUnits(2000), v.Amount)
	assert.Nil(t, v.Opt)
}

func TestParseOutOfRange(t *testing.T) {
	for _, in := range []string{
		"18446744073709552.116",
		"1000000000.001",
		"-1000000000.001",
		"1e30",
	} {
		t.Run("quantity "+in, func(t *testing.T) {
			_, err := ParseQuantity(in)
			assert.ErrorIs(t, err, ErrOutOfRange)
		})
	}
	for _, in := range []string{
		"46116860184273879.04",
		"10000000000000.01",
		"-10000000000000.01",
	} {
		t.Run("amount "+in, func(t *testing.T) {
			_, err := ParseMinorUnits(in)
			assert.ErrorIs(t, err, ErrOutOfRange)
		})
	}

	q, err := ParseQuantity("1000000000")
	require.NoError(t, err)
	assert.Equal(t, MaxQuantity, q)

	m, err := ParseMinorUnits("10000000000000")
	require.NoError(t, err)
	assert.Equal(t, MaxMinorUnits, m)

	var v struct {
		Amount MinorUnits `json:"amount"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"amount": 46116860184273879.04}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"amount": "46116860184273879.04"}`), &v))
}

func TestFromDecimalSaturates(t *testing.T) {
	huge := decimal.RequireFromString("18446744073709552.116")
	assert.Equal(t, Quantity(math.MaxInt64), NewQuantityFromDecimal(huge))
	assert.Equal(t, Quantity(math.MinInt64), NewQuantityFromDecimal(huge.Neg()))
	assert.Equal(t, MinorUnits(math.MaxInt64), NewMinorUnitsFromDecimal(huge))

	assert.Equal(t, MinorUnits(5*MaxMinorUnits), MaxMinorUnits.MulQuantity(Units(5)))
	assert.False(t, MinorUnits(1<<62).MulQuantity(MaxQuantity).InRange())
}

func TestMinorUnitsAdd(t *testing.T) {
	sum, ok := MinorUnits(100).Add(250)
	assert.True(t, ok)
	assert.Equal(t, MinorUnits(350), sum)

	_, ok = MaxMinorUnits.Add(1)
	assert.False(t, ok)

	_, ok = MinorUnits(1 << 62).Add(1 << 62)
	assert.False(t, ok)

	sum, ok = MaxMinorUnits.Add(-MaxMinorUnits)
	assert.True(t, ok)
	assert.Zero(t, sum)
}
