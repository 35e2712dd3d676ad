package handlers

import (
	"github.com/gin-gonic/gin"

	"stockline/internal/domain/transfer"
	"stockline/internal/infrastructure/http/v1/dto"
)

// TransferHandler handles HTTP requests for stock transfers.
type TransferHandler struct {
	*BaseHandler
	service *transfer.Service
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(base *BaseHandler, service *transfer.Service) *TransferHandler {
	return &TransferHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /transfers
func (h *TransferHandler) Create(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.CreateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	created, err := h.service.Create(c.Request.Context(), req.ToRequest(actor.ID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, created)
}

// Get handles GET /transfers/:id
func (h *TransferHandler) Get(c *gin.Context) {
	transferID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	found, err := h.service.Get(c.Request.Context(), transferID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, found)
}

// List handles GET /transfers
func (h *TransferHandler) List(c *gin.Context) {
	var q dto.TransferListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults()

	transfers, err := h.service.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(transfers, q.PaginationRequest))
}
