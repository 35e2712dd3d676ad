// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"stockline/internal/domain/catalog"
	"stockline/internal/domain/sale"
	"stockline/internal/domain/stock"
	"stockline/internal/domain/transfer"
	"stockline/internal/infrastructure/http/v1/dto"
	"stockline/internal/infrastructure/http/v1/handlers"
	"stockline/internal/infrastructure/http/v1/middleware"
	"stockline/internal/infrastructure/idempotency"
	"stockline/pkg/logger"
)

// RouterConfig holds everything the router wires into handlers.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Debug exposes the cause of internal errors in responses
	Debug bool

	// Version is reported by /health/info
	Version string

	// ServiceName names server spans; defaults to "stockline"
	ServiceName string

	// Database backs the readiness probe
	Database handlers.Database

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Idempotency replays repeated mutating requests; nil disables it
	Idempotency idempotency.Store

	// Metrics observes request latency; Gatherer is served at /metrics.
	// Both may be nil.
	Metrics  middleware.RequestObserver
	Gatherer prometheus.Gatherer

	Catalog   *catalog.Service
	Ledger    *stock.Ledger
	Sales     *sale.Service
	Transfers *transfer.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	dto.RegisterValidators()

	router := gin.New()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "stockline"
	}

	// Global middleware (order matters: Recovery must sit inside ErrorHandler)
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger, cfg.Metrics))
	router.Use(middleware.ErrorHandler(cfg.Debug))
	router.Use(middleware.Recovery())

	// Health endpoints (no auth)
	if cfg.Database != nil {
		healthHandler := handlers.NewHealthHandler(cfg.Database, cfg.Version)
		health := router.Group("/health")
		{
			health.GET("/live", healthHandler.Live)
			health.GET("/ready", healthHandler.Ready)
			health.GET("/info", healthHandler.Info)
		}
	}

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		// Idempotency needs the actor, so it runs after Auth
		if cfg.Idempotency != nil {
			protected.Use(middleware.Idempotency(cfg.Idempotency))
		}

		base := handlers.NewBaseHandler()
		registerSaleRoutes(protected, handlers.NewSaleHandler(base, cfg.Sales))
		registerTransferRoutes(protected, handlers.NewTransferHandler(base, cfg.Transfers))
		registerStockRoutes(protected, handlers.NewStockHandler(base, cfg.Ledger, cfg.Catalog))
		registerCatalogRoutes(protected, handlers.NewCatalogHandler(base, cfg.Catalog))
	}

	return router
}
