package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockline/internal/core/apperror"
	"stockline/internal/core/types"
	"stockline/internal/domain/catalog"
)

func money(v int64) *types.MinorUnits {
	m := types.MinorUnits(v)
	return &m
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		line      Line
		catalog   types.MinorUnits
		wantBasis types.MinorUnits
		wantTotal types.MinorUnits
		wantUnit  types.MinorUnits
	}{
		{
			name:      "explicit total wins",
			line:      Line{Quantity: types.Units(2), Total: money(1500), UnitPrice: money(9999)},
			catalog:   1000,
			wantBasis: 1500,
			wantTotal: 1500,
			wantUnit:  750,
		},
		{
			name:      "unit price times quantity",
			line:      Line{Quantity: 2500, UnitPrice: money(400)},
			catalog:   1000,
			wantBasis: 1000,
			wantTotal: 1000,
			wantUnit:  400,
		},
		{
			name:      "catalog price fallback with discount",
			line:      Line{Quantity: types.Units(3), Discount: 100},
			catalog:   1000,
			wantBasis: 3000,
			wantTotal: 2900,
			wantUnit:  967,
		},
		{
			name:      "discount larger than basis clamps to zero",
			line:      Line{Quantity: types.Units(1), Discount: 5000},
			catalog:   1000,
			wantBasis: 1000,
			wantTotal: 0,
			wantUnit:  0,
		},
		{
			name:      "non-positive explicit total falls through",
			line:      Line{Quantity: types.Units(1), Total: money(0)},
			catalog:   250,
			wantBasis: 250,
			wantTotal: 250,
			wantUnit:  250,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.line, tt.catalog)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBasis, got.Basis)
			assert.Equal(t, tt.wantTotal, got.Total)
			assert.Equal(t, tt.wantUnit, got.UnitPrice)
		})
	}
}

func TestResolveMissingPrice(t *testing.T) {
	_, err := Resolve(Line{Quantity: types.Units(1)}, 0)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingPrice))
}

func TestResolveNegativeDiscount(t *testing.T) {
	_, err := Resolve(Line{Quantity: types.Units(1), Discount: -1}, 100)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAmount))
}

func TestCheckQuantity(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name  string
		unit  catalog.UnitKind
		qty   types.Quantity
		valid bool
	}{
		{"pieces whole", catalog.UnitPieces, types.Units(2), true},
		{"pieces fractional", catalog.UnitPieces, 1500, false},
		{"pieces zero", catalog.UnitPieces, 0, false},
		{"weighable half", catalog.UnitWeighable, 500, true},
		{"weighable two and a half", catalog.UnitWeighable, 2500, true},
		{"weighable off step", catalog.UnitWeighable, 2300, false},
		{"weighable below step", catalog.UnitWeighable, 250, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.CheckQuantity(tt.unit, tt.qty)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuantity))
		})
	}
}

func TestCheckQuantityMessageNamesStep(t *testing.T) {
	err := DefaultPolicy().CheckQuantity(catalog.UnitWeighable, 2300)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Message, "0.5")
	assert.Equal(t, "lines", appErr.Field())
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy("0.25")
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(250), p.WeighableStep)

	_, err = NewPolicy("0")
	assert.Error(t, err)

	p, err = NewPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWeighableStep, p.WeighableStep)
}
