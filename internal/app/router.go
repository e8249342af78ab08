package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tahseel-hq/tahseel/internal/customers"
	"github.com/tahseel-hq/tahseel/internal/gateway"
	"github.com/tahseel-hq/tahseel/internal/invoices"
	"github.com/tahseel-hq/tahseel/internal/observability"
	"github.com/tahseel-hq/tahseel/internal/workflow"
	"github.com/tahseel-hq/tahseel/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	KeyResolver      KeyResolver
	WorkflowHandler  *workflow.Handler
	CustomersHandler *customers.Handler
	InvoicesHandler  *invoices.Handler
	GatewayHandler   *gateway.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Gateway webhooks authenticate by HMAC signature, not API key.
	if params.GatewayHandler != nil {
		params.GatewayHandler.MountRoutes(r)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(params.KeyResolver, params.Logger))
		if params.WorkflowHandler != nil {
			params.WorkflowHandler.MountRoutes(r)
		}
		if params.CustomersHandler != nil {
			params.CustomersHandler.MountRoutes(r)
		}
		if params.InvoicesHandler != nil {
			params.InvoicesHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
