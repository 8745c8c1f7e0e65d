// api/internal/api/router/router.go
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/api/handlers"
	app_middleware "github.com/berba-q/hospitality-scheduler-sub001/api/internal/api/middleware"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/metrics"
)

// RouterConfig defines the strict dependencies required to build the API routing tree.
type RouterConfig struct {
	AllowedOrigins    []string
	SettingsHandler   *handlers.SettingsHandler
	EncryptionHandler *handlers.EncryptionHandler
	AuditHandler      *handlers.AuditHandler
	HealthHandler     *handlers.HealthHandler
	RateLimiter       *app_middleware.RateLimiter
	Logger            *slog.Logger
}

// NewRouter constructs the Chi multiplexer, attaches global middleware, and wires all endpoints.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// =========================================================================
	// 1. Global Gateway Middleware Pipeline
	// =========================================================================

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app_middleware.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// 🛡️ Limit all incoming JSON requests to 1 Megabyte max (OOM Protection)
	r.Use(app_middleware.MaxBytes(1_048_576))

	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Handler)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", app_middleware.ActorHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// =========================================================================
	// 2. Operational Endpoints
	// =========================================================================

	r.Get("/health", cfg.HealthHandler.Check)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// =========================================================================
	// 3. API v1 Routing Tree
	// =========================================================================

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(app_middleware.RequireActor)

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Get("/notification-settings", cfg.SettingsHandler.Get)
			r.Put("/notification-settings", cfg.SettingsHandler.Put)
			r.Delete("/notification-settings", cfg.SettingsHandler.Delete)

			r.Get("/audit", cfg.AuditHandler.HandleGetTenantLogs)
		})

		r.Get("/admin/encryption/verify", cfg.EncryptionHandler.Verify)
	})

	return r
}
