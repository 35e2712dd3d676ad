// Package delivery computes the courier payout for a delivered sale.
package delivery

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"stockline/internal/core/types"
)

// Tier prices a distance band. Max nil means unbounded.
type Tier struct {
	Min   types.MinorUnits
	Max   *types.MinorUnits
	Price types.MinorUnits
}

// Distances use the same 2-decimal fixed point as money, so 3.25 km is 325.
func (t Tier) contains(km types.MinorUnits) bool {
	return km >= t.Min && (t.Max == nil || km <= *t.Max)
}

// Calculator is a pure tiered fare function plus a threshold bonus.
type Calculator struct {
	tiers              []Tier
	baseFee            types.MinorUnits
	incentiveThreshold types.MinorUnits
	incentiveBonus     types.MinorUnits
}

// Config mirrors the DELIVERY_* environment variables.
type Config struct {
	TiersJSON          string
	BaseFee            string
	IncentiveThreshold string
	IncentiveBonus     string
}

// NewCalculator builds a calculator from already-parsed values.
func NewCalculator(tiers []Tier, baseFee, threshold, bonus types.MinorUnits) *Calculator {
	return &Calculator{
		tiers:              tiers,
		baseFee:            baseFee,
		incentiveThreshold: threshold,
		incentiveBonus:     bonus,
	}
}

// NewCalculatorFromConfig parses tier JSON such as
// [{"min":0,"max":5,"price":3.5},{"min":5,"max":null,"price":6}].
func NewCalculatorFromConfig(cfg Config) (*Calculator, error) {
	tiers, err := ParseTiers(cfg.TiersJSON)
	if err != nil {
		return nil, err
	}
	base, err := parseAmount("base fee", cfg.BaseFee, "0")
	if err != nil {
		return nil, err
	}
	threshold, err := parseAmount("incentive threshold", cfg.IncentiveThreshold, "150")
	if err != nil {
		return nil, err
	}
	bonus, err := parseAmount("incentive bonus", cfg.IncentiveBonus, "4")
	if err != nil {
		return nil, err
	}
	return NewCalculator(tiers, base, threshold, bonus), nil
}

type tierJSON struct {
	Min   *decimal.Decimal `json:"min"`
	Max   *decimal.Decimal `json:"max"`
	Price decimal.Decimal  `json:"price"`
}

// ParseTiers decodes the tier list. A missing min is 0; a missing or null max is unbounded.
func ParseTiers(raw string) ([]Tier, error) {
	if raw == "" {
		return nil, nil
	}
	var decoded []tierJSON
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("parse delivery tiers: %w", err)
	}
	tiers := make([]Tier, 0, len(decoded))
	for i, d := range decoded {
		var t Tier
		var err error
		if t.Price, err = types.MinorUnitsFromDecimal(d.Price); err != nil {
			return nil, fmt.Errorf("delivery tier %d price: %w", i, err)
		}
		if d.Min != nil {
			if t.Min, err = types.MinorUnitsFromDecimal(*d.Min); err != nil {
				return nil, fmt.Errorf("delivery tier %d min: %w", i, err)
			}
		}
		if d.Max != nil {
			max, err := types.MinorUnitsFromDecimal(*d.Max)
			if err != nil {
				return nil, fmt.Errorf("delivery tier %d max: %w", i, err)
			}
			t.Max = &max
		}
		tiers = append(tiers, t)
	}
	return tiers, nil
}

func parseAmount(name, raw, fallback string) (types.MinorUnits, error) {
	if raw == "" {
		raw = fallback
	}
	v, err := types.ParseMinorUnits(raw)
	if err != nil {
		return 0, fmt.Errorf("delivery %s: %w", name, err)
	}
	return v, nil
}

// FareForDistance returns base fee plus the price of the first matching tier,
// or the base fee alone when no tier matches.
func (c *Calculator) FareForDistance(km types.MinorUnits) types.MinorUnits {
	for _, t := range c.tiers {
		if t.contains(km) {
			return c.baseFee + t.Price
		}
	}
	return c.baseFee
}

// Payout is the fare plus the incentive bonus when the sale total exceeds the threshold.
func (c *Calculator) Payout(km, saleTotal types.MinorUnits) types.MinorUnits {
	fare := c.FareForDistance(km)
	if saleTotal > c.incentiveThreshold {
		fare += c.incentiveBonus
	}
	return fare
}
