package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/invoicedesk/invoicedesk/internal/auth"
	"github.com/invoicedesk/invoicedesk/internal/businesses"
	"github.com/invoicedesk/invoicedesk/internal/customers"
	"github.com/invoicedesk/invoicedesk/internal/dashboard"
	"github.com/invoicedesk/invoicedesk/internal/invoices"
	"github.com/invoicedesk/invoicedesk/internal/invoices/export"
	"github.com/invoicedesk/invoicedesk/internal/observability"
	"github.com/invoicedesk/invoicedesk/internal/shared"
	"github.com/invoicedesk/invoicedesk/jobs"
	"github.com/invoicedesk/invoicedesk/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthGuard      auth.Middleware

	AuthHandler      *auth.Handler
	BusinessHandler  *businesses.Handler
	CustomerHandler  *customers.Handler
	InvoiceHandler   *invoices.Handler
	ExportHandler    *export.Handler
	DashboardHandler *dashboard.Handler
	ReportHandler    *report.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with InvoiceDesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	guard := params.AuthGuard
	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.BusinessHandler != nil {
			r.Route("/businesses", func(r chi.Router) {
				r.Use(guard.RequireUser)
				params.BusinessHandler.MountRoutes(r)
			})
		}
		if params.CustomerHandler != nil {
			r.Route("/customers", func(r chi.Router) {
				r.Use(guard.RequireBusiness)
				params.CustomerHandler.MountRoutes(r)
			})
		}
		if params.InvoiceHandler != nil {
			r.Route("/invoices", func(r chi.Router) {
				r.Use(guard.RequireBusiness)
				params.InvoiceHandler.MountRoutes(r)
				if params.ExportHandler != nil {
					params.ExportHandler.MountRoutes(r)
				}
			})
		}
		if params.DashboardHandler != nil {
			r.Route("/dashboard", func(r chi.Router) {
				r.Use(guard.RequireBusiness)
				params.DashboardHandler.MountRoutes(r)
			})
		}
	})

	if params.ReportHandler != nil {
		r.Route("/report", func(r chi.Router) {
			r.Use(guard.RequireUser)
			params.ReportHandler.MountRoutes(r)
		})
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(guard.RequireUser)
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
