package dto

import (
	"stockline/internal/core/id"
	"stockline/internal/core/types"
	"stockline/internal/domain/stock"
)

// --- Request DTOs ---

// AvailableQuery is the query of GET /stock/available. Without a location
// the sum over all locations is returned.
type AvailableQuery struct {
	ItemID     string `form:"itemId" binding:"required,uuid"`
	LocationID string `form:"locationId" binding:"omitempty,uuid"`
}

// StockListQuery filters GET /stock.
type StockListQuery struct {
	PaginationRequest
	LocationID string `form:"locationId" binding:"omitempty,uuid"`
	ItemID     string `form:"itemId" binding:"omitempty,uuid"`
	BelowMin   bool   `form:"belowMin"`
}

// ToFilter converts the query to the domain filter.
func (q StockListQuery) ToFilter() stock.ListFilter {
	f := stock.ListFilter{BelowMin: q.BelowMin, Limit: q.Limit, Offset: q.Offset}
	f.LocationID, _ = id.ParseOptional(q.LocationID)
	f.ItemID, _ = id.ParseOptional(q.ItemID)
	return f
}

// StockSummaryQuery filters GET /stock/summary.
type StockSummaryQuery struct {
	PaginationRequest
	LocationID string `form:"locationId" binding:"omitempty,uuid"`
	Search     string `form:"search" binding:"max=100"`
}

// ToFilter converts the query to the domain filter.
func (q StockSummaryQuery) ToFilter() stock.SummaryFilter {
	f := stock.SummaryFilter{Search: q.Search, Limit: q.Limit, Offset: q.Offset}
	f.LocationID, _ = id.ParseOptional(q.LocationID)
	return f
}

// AdjustmentRequest is the body of POST /stock/adjustments.
type AdjustmentRequest struct {
	ItemID     id.ID          `json:"item_id" binding:"required"`
	LocationID id.ID          `json:"location_id" binding:"required"`
	Direction  string         `json:"direction" binding:"required,oneof=in out"`
	Quantity   types.Quantity `json:"quantity"`
	Note       string         `json:"note" binding:"max=200"`
}

// ToAdjustment converts the DTO to the ledger input.
func (r AdjustmentRequest) ToAdjustment(actorID id.ID) stock.Adjustment {
	return stock.Adjustment{
		ActorID:    actorID,
		ItemID:     r.ItemID,
		LocationID: r.LocationID,
		Direction:  stock.Direction(r.Direction),
		Quantity:   r.Quantity,
		Note:       r.Note,
	}
}

// ReservationRequest is the body of POST /stock/reservations and /stock/releases.
type ReservationRequest struct {
	ItemID     id.ID          `json:"item_id" binding:"required"`
	LocationID id.ID          `json:"location_id" binding:"required"`
	Quantity   types.Quantity `json:"quantity"`
}

// MinStockRequest is the body of PUT /stock/min. The principal location is
// used when location_id is omitted.
type MinStockRequest struct {
	ItemID     id.ID          `json:"item_id" binding:"required"`
	LocationID *id.ID         `json:"location_id"`
	MinStock   types.Quantity `json:"min_stock"`
}

// --- Response DTOs ---

// AvailableResponse is the answer of GET /stock/available.
type AvailableResponse struct {
	ItemID     id.ID          `json:"itemId"`
	LocationID *id.ID         `json:"locationId,omitempty"`
	Available  types.Quantity `json:"available"`
}

// StockRecordResponse is a stock record with its derived fields.
type StockRecordResponse struct {
	stock.Record
	Available types.Quantity `json:"available"`
	BelowMin  bool           `json:"belowMin"`
}

// FromStockRecord converts a record to the response DTO.
func FromStockRecord(r *stock.Record) StockRecordResponse {
	return StockRecordResponse{
		Record:    *r,
		Available: r.Available(),
		BelowMin:  r.BelowMin(),
	}
}

// StockRowResponse is a listing row with its derived fields.
type StockRowResponse struct {
	stock.Row
	Available types.Quantity `json:"available"`
	BelowMin  bool           `json:"belowMin"`
}

// FromStockRows converts listing rows to response DTOs.
func FromStockRows(rows []stock.Row) []StockRowResponse {
	out := make([]StockRowResponse, len(rows))
	for i, r := range rows {
		out[i] = StockRowResponse{
			Row:       r,
			Available: r.Available(),
			BelowMin:  r.BelowMin(),
		}
	}
	return out
}
