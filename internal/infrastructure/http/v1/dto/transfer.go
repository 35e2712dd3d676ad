package dto

import (
	"stockline/internal/core/id"
	"stockline/internal/core/types"
	"stockline/internal/domain/transfer"
)

// TransferLineRequest is one transfer line.
type TransferLineRequest struct {
	ItemID   id.ID          `json:"item_id" binding:"required"`
	Quantity types.Quantity `json:"quantity"`
}

// CreateTransferRequest is the body of POST /transfers.
type CreateTransferRequest struct {
	ToLocationID id.ID                 `json:"to_location_id" binding:"required"`
	Note         string                `json:"note" binding:"max=200"`
	Lines        []TransferLineRequest `json:"lines" binding:"dive"`
}

// ToRequest converts the DTO to the domain request.
func (r CreateTransferRequest) ToRequest(actorID id.ID) transfer.CreateRequest {
	req := transfer.CreateRequest{
		ActorID:      actorID,
		ToLocationID: r.ToLocationID,
		Note:         r.Note,
		Lines:        make([]transfer.LineInput, len(r.Lines)),
	}
	for i, l := range r.Lines {
		req.Lines[i] = transfer.LineInput{ItemID: l.ItemID, Quantity: l.Quantity}
	}
	return req
}

// TransferListQuery filters GET /transfers.
type TransferListQuery struct {
	PaginationRequest
	ToLocationID string `form:"toLocationId" binding:"omitempty,uuid"`
}

// ToFilter converts the query to the domain filter.
func (q TransferListQuery) ToFilter() transfer.ListFilter {
	f := transfer.ListFilter{Limit: q.Limit, Offset: q.Offset}
	f.ToLocationID, _ = id.ParseOptional(q.ToLocationID)
	return f
}
