// Package transfer moves stock from the principal location to another location.
package transfer

import (
	"time"

	"stockline/internal/core/id"
	"stockline/internal/core/types"
)

type Status string

const StatusDone Status = "done"

// MaxNoteLength bounds the free-text note.
const MaxNoteLength = 200

// Transfer is the header shared by all lines of one transfer.
type Transfer struct {
	ID             id.ID     `db:"id" json:"id"`
	Number         string    `db:"number" json:"number"`
	FromLocationID id.ID     `db:"from_location_id" json:"fromLocationId"`
	ToLocationID   id.ID     `db:"to_location_id" json:"toLocationId"`
	ActorID        id.ID     `db:"actor_id" json:"actorId"`
	Note           *string   `db:"note" json:"note,omitempty"`
	Status         Status    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`

	Lines []Line `db:"-" json:"lines,omitempty"`
}

// Line is one item moved by a transfer.
type Line struct {
	ID         id.ID          `db:"id" json:"id"`
	TransferID id.ID          `db:"transfer_id" json:"transferId"`
	LineNo     int            `db:"line_no" json:"lineNo"`
	ItemID     id.ID          `db:"item_id" json:"itemId"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
}

// LineInput is one requested transfer line.
type LineInput struct {
	ItemID   id.ID
	Quantity types.Quantity
}

// ListFilter narrows transfer listings.
type ListFilter struct {
	ToLocationID *id.ID
	Limit        int
	Offset       int
}
