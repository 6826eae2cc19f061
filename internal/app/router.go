package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/fieldops/internal/auth"
	"github.com/odyssey-erp/fieldops/internal/delivery"
	"github.com/odyssey-erp/fieldops/internal/distributions"
	"github.com/odyssey-erp/fieldops/internal/observability"
	"github.com/odyssey-erp/fieldops/internal/platform/httpx"
	"github.com/odyssey-erp/fieldops/internal/rbac"
	"github.com/odyssey-erp/fieldops/internal/shared"
	"github.com/odyssey-erp/fieldops/jobs"
)

// HealthSource reports the remote breaker state for /healthz.
type HealthSource interface {
	IsConnected() bool
	State() string
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	SessionManager       *shared.SessionManager
	AuthHandler          *auth.Handler
	DeliveryHandler      *delivery.Handler
	DistributionsHandler *distributions.Handler
	JobHandler           *jobs.Handler
	RBACMiddleware       rbac.Middleware
	Health               HealthSource
	Metrics              *observability.Metrics
}

type healthResponse struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Breaker   string `json:"breaker"`
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Connected: true, Breaker: "closed"}
		if params.Health != nil {
			resp.Connected = params.Health.IsConnected()
			resp.Breaker = params.Health.State()
			if !resp.Connected {
				// The service still answers from cache while the remote is down.
				resp.Status = "degraded"
			}
		}
		httpx.JSON(w, http.StatusOK, resp)
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.DeliveryHandler != nil {
		delivery.MountRoutes(r, params.DeliveryHandler, params.RBACMiddleware)
	}
	if params.DistributionsHandler != nil {
		params.DistributionsHandler.MountRoutes(r, params.RBACMiddleware)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireRole("admin"))
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
