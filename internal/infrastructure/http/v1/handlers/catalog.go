package handlers

import (
	"github.com/gin-gonic/gin"

	"stockline/internal/domain/catalog"
	"stockline/internal/infrastructure/http/v1/dto"
)

// CatalogHandler handles HTTP requests for items, locations and payment methods.
type CatalogHandler struct {
	*BaseHandler
	service *catalog.Service
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(base *BaseHandler, service *catalog.Service) *CatalogHandler {
	return &CatalogHandler{
		BaseHandler: base,
		service:     service,
	}
}

// CreateItem handles POST /catalog/items
func (h *CatalogHandler) CreateItem(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.CreateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.service.CreateItem(c.Request.Context(), req.ToInput(actor.ID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, item)
}

// UpdateItem handles PUT /catalog/items/:id
func (h *CatalogHandler) UpdateItem(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.service.UpdateItem(c.Request.Context(), itemID, req.Name, req.PurchasePrice, req.SalePrice)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// GetItem handles GET /catalog/items/:id
func (h *CatalogHandler) GetItem(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	item, err := h.service.GetItem(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// ListItems handles GET /catalog/items
func (h *CatalogHandler) ListItems(c *gin.Context) {
	var q dto.ItemListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults()

	items, err := h.service.ListItems(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, q.PaginationRequest))
}

// CreateLocation handles POST /catalog/locations
func (h *CatalogHandler) CreateLocation(c *gin.Context) {
	var req dto.CreateLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	loc, err := h.service.CreateLocation(c.Request.Context(), req.ToLocation())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, loc)
}

// GetLocation handles GET /catalog/locations/:id
func (h *CatalogHandler) GetLocation(c *gin.Context) {
	locationID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	loc, err := h.service.GetLocation(c.Request.Context(), locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, loc)
}

// ListLocations handles GET /catalog/locations
func (h *CatalogHandler) ListLocations(c *gin.Context) {
	locs, err := h.service.ListLocations(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	if locs == nil {
		locs = []catalog.Location{}
	}
	h.OK(c, gin.H{"items": locs})
}

// ListPaymentMethods handles GET /catalog/payment-methods
func (h *CatalogHandler) ListPaymentMethods(c *gin.Context) {
	methods, err := h.service.ListPaymentMethods(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	if methods == nil {
		methods = []catalog.PaymentMethod{}
	}
	h.OK(c, gin.H{"items": methods})
}
