// Package stock implements the per-location stock ledger.
package stock

import (
	"time"

	"stockline/internal/core/id"
	"stockline/internal/core/types"
)

// Record is the quantity held for one (item, location) pair.
// Records are created lazily on first touch and never deleted.
type Record struct {
	ItemID     id.ID          `db:"item_id" json:"itemId"`
	LocationID id.ID          `db:"location_id" json:"locationId"`
	OnHand     types.Quantity `db:"on_hand" json:"onHand"`
	Reserved   types.Quantity `db:"reserved" json:"reserved"`
	MinStock   types.Quantity `db:"min_stock" json:"minStock"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updatedAt"`
}

// Available is on_hand minus reserved.
func (r Record) Available() types.Quantity {
	return r.OnHand - r.Reserved
}

// BelowMin reports whether available stock dropped under the configured minimum.
func (r Record) BelowMin() bool {
	return r.MinStock > 0 && r.Available() < r.MinStock
}

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

type Reason string

const (
	ReasonSale     Reason = "SALE"
	ReasonTransfer Reason = "TRANSFER"
	ReasonAdjust   Reason = "ADJUST"
)

// RecorderType names the document that produced a movement.
type RecorderType string

const (
	RecorderSale       RecorderType = "Sale"
	RecorderTransfer   RecorderType = "Transfer"
	RecorderAdjustment RecorderType = "Adjustment"
)

// Movement is an append-only audit line of a stock change.
type Movement struct {
	ID           id.ID          `db:"id" json:"id"`
	ItemID       id.ID          `db:"item_id" json:"itemId"`
	LocationID   id.ID          `db:"location_id" json:"locationId"`
	Direction    Direction      `db:"direction" json:"direction"`
	Quantity     types.Quantity `db:"quantity" json:"quantity"`
	Reason       Reason         `db:"reason" json:"reason"`
	RecorderType RecorderType   `db:"recorder_type" json:"recorderType"`
	RecorderID   id.ID          `db:"recorder_id" json:"recorderId"`
	ActorID      id.ID          `db:"actor_id" json:"actorId"`
	Note         *string        `db:"note" json:"note,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
}

// Row is a stock record joined with item and location names for listings.
type Row struct {
	Record
	ItemName     string `db:"item_name" json:"itemName"`
	ItemUnit     string `db:"item_unit" json:"itemUnit"`
	LocationName string `db:"location_name" json:"locationName"`
}

// SummaryRow aggregates one item across locations.
type SummaryRow struct {
	ItemID    id.ID          `db:"item_id" json:"itemId"`
	ItemName  string         `db:"item_name" json:"itemName"`
	ItemUnit  string         `db:"item_unit" json:"itemUnit"`
	OnHand    types.Quantity `db:"on_hand" json:"onHand"`
	Reserved  types.Quantity `db:"reserved" json:"reserved"`
	Available types.Quantity `db:"available" json:"available"`
	Locations int            `db:"locations" json:"locations"`
}

// ListFilter narrows stock listings.
type ListFilter struct {
	LocationID *id.ID
	ItemID     *id.ID
	BelowMin   bool
	Limit      int
	Offset     int
}

// SummaryFilter narrows the per-item summary.
type SummaryFilter struct {
	LocationID *id.ID
	Search     string
	Limit      int
	Offset     int
}
