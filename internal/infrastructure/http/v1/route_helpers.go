package v1

import (
	"github.com/gin-gonic/gin"

	appctx "stockline/internal/core/context"
	"stockline/internal/infrastructure/http/v1/handlers"
	"stockline/internal/infrastructure/http/v1/middleware"
)

// adminOnly guards routes that change stock or catalog data directly.
func adminOnly() gin.HandlerFunc {
	return middleware.RequireRole(appctx.RoleAdmin, appctx.RoleSuperAdmin)
}

// registerSaleRoutes registers sale endpoints. Any authenticated actor may
// sell and take payments; the location is resolved from the actor's roles.
func registerSaleRoutes(rg *gin.RouterGroup, h *handlers.SaleHandler) {
	sales := rg.Group("/sales")
	sales.GET("", h.List)
	sales.POST("", h.Create)
	sales.GET("/:id", h.Get)
	sales.POST("/:id/payments", h.AddPayment)
	sales.POST("/:id/delivery/settle", adminOnly(), h.SettleDelivery)
}

// registerTransferRoutes registers transfer endpoints.
func registerTransferRoutes(rg *gin.RouterGroup, h *handlers.TransferHandler) {
	transfers := rg.Group("/transfers")
	transfers.GET("", h.List)
	transfers.POST("", adminOnly(), h.Create)
	transfers.GET("/:id", h.Get)
}

// registerStockRoutes registers stock ledger endpoints.
func registerStockRoutes(rg *gin.RouterGroup, h *handlers.StockHandler) {
	st := rg.Group("/stock")
	st.GET("", h.List)
	st.GET("/available", h.Available)
	st.GET("/summary", h.Summary)
	st.POST("/adjustments", adminOnly(), h.Adjust)
	st.POST("/reservations", h.Reserve)
	st.POST("/releases", h.Release)
	st.PUT("/min", adminOnly(), h.SetMin)
}

// registerCatalogRoutes registers catalog endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, h *handlers.CatalogHandler) {
	catalog := rg.Group("/catalog")

	items := catalog.Group("/items")
	items.GET("", h.ListItems)
	items.POST("", adminOnly(), h.CreateItem)
	items.GET("/:id", h.GetItem)
	items.PUT("/:id", adminOnly(), h.UpdateItem)

	locations := catalog.Group("/locations")
	locations.GET("", h.ListLocations)
	locations.POST("", adminOnly(), h.CreateLocation)
	locations.GET("/:id", h.GetLocation)

	catalog.GET("/payment-methods", h.ListPaymentMethods)
}
