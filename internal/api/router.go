// Package api provides the HTTP API for delivery fee quotes.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/courierfee/courierfee/internal/api/handler"
	"github.com/courierfee/courierfee/internal/api/middleware"
	"github.com/courierfee/courierfee/internal/auth"
	"github.com/courierfee/courierfee/internal/delivery"
	"github.com/courierfee/courierfee/internal/provider/resilience"
	"github.com/courierfee/courierfee/internal/worker"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool
	Clock       clockwork.Clock

	Delivery *delivery.Service

	// Tokens validates admin bearer tokens. Nil closes the admin routes.
	Tokens middleware.TokenValidator

	// Dependencies are pinged by /v1/ops/ready and /v1/ops/status.
	Dependencies []handler.Dependency
	Registry     *resilience.Registry

	// Ingest enables POST /v1/admin/ingest (optional).
	Ingest worker.Runner
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "courierfee-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement (REQUIRE_TLS=true)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:      cfg.Version,
		BuildTime:    cfg.BuildTime,
		Dependencies: cfg.Dependencies,
		Registry:     cfg.Registry,
		Clock:        cfg.Clock,
	})
	deliveryHandler := handler.NewDeliveryHandler(cfg.Delivery)
	adminHandler := handler.NewAdminHandler(cfg.Delivery, cfg.Ingest, cfg.Clock, cfg.Logger)

	adminAuth := middleware.RequireRole(cfg.Tokens, auth.RoleAdmin)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/delivery", func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(middleware.DeliveryRateLimit))
			r.Get("/", deliveryHandler.GetFeeByQuery)
			r.Get("/{city}/{vehicleType}", deliveryHandler.GetFeeByPath)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminAuth)
			r.Use(middleware.RateLimitBySubject(middleware.AdminRateLimit))
			r.Post("/cache/invalidate", adminHandler.InvalidateCache)
			r.Post("/ingest", adminHandler.TriggerIngest)
		})
	})

	return r
}
