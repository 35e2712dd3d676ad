package dto

import (
	"stockline/internal/core/id"
	"stockline/internal/core/types"
	"stockline/internal/domain/sale"
)

// --- Request DTOs ---

// SaleLineRequest is one cart line. total_price wins over unit_price.
type SaleLineRequest struct {
	ItemID     id.ID             `json:"item_id" binding:"required"`
	Quantity   types.Quantity    `json:"quantity"`
	UnitPrice  *types.MinorUnits `json:"unit_price"`
	TotalPrice *types.MinorUnits `json:"total_price"`
	Discount   types.MinorUnits  `json:"discount" binding:"min=0"`
}

// PaymentRequest is a payment offered with a sale or afterwards.
type PaymentRequest struct {
	MethodID  id.ID            `json:"method_id" binding:"required"`
	Amount    types.MinorUnits `json:"amount"`
	Reference string           `json:"reference" binding:"max=191"`
}

// ToInput converts the DTO to the domain input.
func (r PaymentRequest) ToInput() sale.PaymentInput {
	return sale.PaymentInput{
		MethodID:  r.MethodID,
		Amount:    r.Amount,
		Reference: r.Reference,
	}
}

// CreateSaleRequest is the body of POST /sales.
type CreateSaleRequest struct {
	CustomerCode    string            `json:"customer_code" binding:"omitempty,customercode"`
	DeliveryActorID *id.ID            `json:"delivery_actor_id"`
	Km              types.MinorUnits  `json:"km" binding:"min=0"`
	Discount        types.MinorUnits  `json:"discount" binding:"min=0"`
	Tax             types.MinorUnits  `json:"tax" binding:"min=0"`
	Lines           []SaleLineRequest `json:"lines" binding:"dive"`
	Payments        []PaymentRequest  `json:"payments" binding:"dive"`
}

// ToRequest converts the DTO to the domain request. The actor is set by the handler.
func (r CreateSaleRequest) ToRequest() sale.CreateRequest {
	req := sale.CreateRequest{
		CustomerCode:    r.CustomerCode,
		DeliveryActorID: r.DeliveryActorID,
		Km:              r.Km,
		Discount:        r.Discount,
		Tax:             r.Tax,
		Lines:           make([]sale.LineInput, len(r.Lines)),
		Payments:        make([]sale.PaymentInput, len(r.Payments)),
	}
	for i, l := range r.Lines {
		req.Lines[i] = sale.LineInput{
			ItemID:    l.ItemID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Total:     l.TotalPrice,
			Discount:  l.Discount,
		}
	}
	for i, p := range r.Payments {
		req.Payments[i] = p.ToInput()
	}
	return req
}

// SaleListQuery filters GET /sales.
type SaleListQuery struct {
	PaginationRequest
	Status     string `form:"status" binding:"omitempty,oneof=debe parcial pagado"`
	LocationID string `form:"locationId" binding:"omitempty,uuid"`
	ActorID    string `form:"actorId" binding:"omitempty,uuid"`
}

// ToFilter converts the query to the domain filter.
func (q SaleListQuery) ToFilter() sale.ListFilter {
	f := sale.ListFilter{Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		st := sale.Status(q.Status)
		f.Status = &st
	}
	f.LocationID, _ = id.ParseOptional(q.LocationID)
	f.ActorID, _ = id.ParseOptional(q.ActorID)
	return f
}

// --- Response DTOs ---

// SettleResponse reports the outcome of a delivery settlement.
type SettleResponse struct {
	Notice sale.SettleNotice `json:"notice"`
	Sale   *sale.Sale        `json:"sale"`
}
