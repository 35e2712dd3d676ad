package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockline/internal/core/id"
	"stockline/internal/domain/catalog"
	"stockline/internal/domain/stock"
	"stockline/internal/infrastructure/http/v1/dto"
)

// PrincipalFinder resolves the principal location.
type PrincipalFinder interface {
	PrincipalLocation(ctx context.Context) (*catalog.Location, error)
}

// StockHandler handles HTTP requests for the stock ledger.
type StockHandler struct {
	*BaseHandler
	ledger    *stock.Ledger
	principal PrincipalFinder
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, ledger *stock.Ledger, principal PrincipalFinder) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		ledger:      ledger,
		principal:   principal,
	}
}

// Available handles GET /stock/available
func (h *StockHandler) Available(c *gin.Context) {
	var q dto.AvailableQuery
	if !h.BindQuery(c, &q) {
		return
	}
	itemID := id.MustParse(q.ItemID)
	locationID, _ := id.ParseOptional(q.LocationID)

	qty, err := h.ledger.Available(c.Request.Context(), itemID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.AvailableResponse{ItemID: itemID, LocationID: locationID, Available: qty})
}

// List handles GET /stock
func (h *StockHandler) List(c *gin.Context) {
	var q dto.StockListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults()

	rows, err := h.ledger.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(dto.FromStockRows(rows), q.PaginationRequest))
}

// Summary handles GET /stock/summary
func (h *StockHandler) Summary(c *gin.Context) {
	var q dto.StockSummaryQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults()

	rows, err := h.ledger.Summary(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(rows, q.PaginationRequest))
}

// Adjust handles POST /stock/adjustments
func (h *StockHandler) Adjust(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.AdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rec, err := h.ledger.Adjust(c.Request.Context(), req.ToAdjustment(actor.ID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromStockRecord(rec))
}

// Reserve handles POST /stock/reservations
func (h *StockHandler) Reserve(c *gin.Context) {
	var req dto.ReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	rec, err := h.ledger.Reserve(c.Request.Context(), req.ItemID, req.LocationID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStockRecord(rec))
}

// Release handles POST /stock/releases
func (h *StockHandler) Release(c *gin.Context) {
	var req dto.ReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	rec, err := h.ledger.Release(c.Request.Context(), req.ItemID, req.LocationID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStockRecord(rec))
}

// SetMin handles PUT /stock/min
func (h *StockHandler) SetMin(c *gin.Context) {
	var req dto.MinStockRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	locationID := req.LocationID
	if locationID == nil {
		principal, err := h.principal.PrincipalLocation(ctx)
		if err != nil {
			h.Error(c, err)
			return
		}
		locationID = &principal.ID
	}

	rec, err := h.ledger.SetMinStock(ctx, req.ItemID, *locationID, req.MinStock)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStockRecord(rec))
}
