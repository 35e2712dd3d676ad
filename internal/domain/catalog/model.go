// Package catalog holds the items, locations and payment methods the ledger refers to.
package catalog

import (
	"strings"
	"time"

	"stockline/internal/core/apperror"
	"stockline/internal/core/id"
	"stockline/internal/core/types"
)

// UnitKind decides which quantities an item accepts.
type UnitKind string

const (
	UnitPieces    UnitKind = "pieces"
	UnitWeighable UnitKind = "weighable"
)

func (u UnitKind) IsValid() bool {
	return u == UnitPieces || u == UnitWeighable
}

// Item is a sellable good.
type Item struct {
	ID            id.ID            `db:"id" json:"id"`
	Name          string           `db:"name" json:"name"`
	Unit          UnitKind         `db:"unit" json:"unit"`
	PurchasePrice types.MinorUnits `db:"purchase_price" json:"purchasePrice"`
	SalePrice     types.MinorUnits `db:"sale_price" json:"salePrice"`
	CreatedAt     time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`
}

// Validate checks required fields.
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return apperror.NewValidation("name is required").WithField("name")
	}
	if len(i.Name) > 191 {
		return apperror.NewValidation("name is too long").WithField("name")
	}
	if !i.Unit.IsValid() {
		return apperror.NewValidation("unit must be 'pieces' or 'weighable'").
			WithField("unit").
			WithDetail("value", string(i.Unit))
	}
	if i.PurchasePrice.IsNegative() {
		return apperror.NewValidation("purchase price cannot be negative").WithField("purchase_price")
	}
	if i.SalePrice.IsNegative() {
		return apperror.NewValidation("sale price cannot be negative").WithField("sale_price")
	}
	return nil
}

// LocationType classifies a location.
type LocationType string

const (
	LocationPrincipal LocationType = "principal"
	LocationDealer    LocationType = "dealer"
)

// NormalizeLocationType maps legacy names onto the two canonical types.
func NormalizeLocationType(s string) (LocationType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "principal", "main":
		return LocationPrincipal, true
	case "dealer", "secondary", "dealer_secondary":
		return LocationDealer, true
	}
	return "", false
}

// Location is a place holding stock.
type Location struct {
	ID        id.ID        `db:"id" json:"id"`
	Name      string       `db:"name" json:"name"`
	Type      LocationType `db:"type" json:"type"`
	OwnerID   *id.ID       `db:"owner_id" json:"ownerId,omitempty"`
	Active    bool         `db:"active" json:"active"`
	CreatedAt time.Time    `db:"created_at" json:"createdAt"`
}

// Validate checks required fields and normalizes the type.
func (l *Location) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return apperror.NewValidation("name is required").WithField("name")
	}
	t, ok := NormalizeLocationType(string(l.Type))
	if !ok {
		return apperror.NewValidation("type must be 'principal' or 'dealer'").
			WithField("type").
			WithDetail("value", string(l.Type))
	}
	l.Type = t
	if l.Type == LocationDealer && l.OwnerID == nil {
		return apperror.NewValidation("dealer locations need an owner").WithField("owner_id")
	}
	return nil
}

func (l *Location) IsPrincipal() bool { return l.Type == LocationPrincipal }
func (l *Location) IsDealer() bool    { return l.Type == LocationDealer }

// PaymentMethod is a way of paying, e.g. cash.
type PaymentMethod struct {
	ID   id.ID  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// Seeded payment method codes.
const (
	PaymentCash       = "cash"
	PaymentTransfer   = "transfer"
	PaymentCreditCard = "credit_card"
	PaymentNequi      = "nequi"
)
