package dto

import (
	"stockline/internal/core/id"
	"stockline/internal/core/types"
	"stockline/internal/domain/catalog"
)

// CreateItemRequest is the body of POST /catalog/items.
type CreateItemRequest struct {
	Name          string           `json:"name" binding:"required,max=191"`
	Unit          string           `json:"unit" binding:"required,oneof=pieces weighable"`
	PurchasePrice types.MinorUnits `json:"purchase_price" binding:"min=0"`
	SalePrice     types.MinorUnits `json:"sale_price" binding:"min=0"`
	InitialStock  types.Quantity   `json:"initial_stock" binding:"min=0"`
}

// ToInput converts the DTO to the catalog input.
func (r CreateItemRequest) ToInput(actorID id.ID) catalog.CreateItemInput {
	return catalog.CreateItemInput{
		ActorID: actorID,
		Item: catalog.Item{
			Name:          r.Name,
			Unit:          catalog.UnitKind(r.Unit),
			PurchasePrice: r.PurchasePrice,
			SalePrice:     r.SalePrice,
		},
		InitialStock: r.InitialStock,
	}
}

// UpdateItemRequest is the body of PUT /catalog/items/:id.
type UpdateItemRequest struct {
	Name          string           `json:"name" binding:"required,max=191"`
	PurchasePrice types.MinorUnits `json:"purchase_price" binding:"min=0"`
	SalePrice     types.MinorUnits `json:"sale_price" binding:"min=0"`
}

// ItemListQuery filters GET /catalog/items.
type ItemListQuery struct {
	PaginationRequest
	Search string `form:"search" binding:"max=100"`
}

// ToFilter converts the query to the catalog filter.
func (q ItemListQuery) ToFilter() catalog.ItemFilter {
	return catalog.ItemFilter{Search: q.Search, Limit: q.Limit, Offset: q.Offset}
}

// CreateLocationRequest is the body of POST /catalog/locations.
type CreateLocationRequest struct {
	Name    string `json:"name" binding:"required,max=191"`
	Type    string `json:"type" binding:"required"`
	OwnerID *id.ID `json:"owner_id"`
}

// ToLocation converts the DTO to a catalog location.
func (r CreateLocationRequest) ToLocation() catalog.Location {
	return catalog.Location{
		Name:    r.Name,
		Type:    catalog.LocationType(r.Type),
		OwnerID: r.OwnerID,
	}
}
