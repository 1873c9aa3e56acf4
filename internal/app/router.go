package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/brickworks-erp/brickworks/internal/auth"
	"github.com/brickworks-erp/brickworks/internal/expenses"
	"github.com/brickworks-erp/brickworks/internal/invoices"
	"github.com/brickworks-erp/brickworks/internal/observability"
	"github.com/brickworks-erp/brickworks/internal/payroll"
	"github.com/brickworks-erp/brickworks/internal/projects"
	"github.com/brickworks-erp/brickworks/internal/safe"
	"github.com/brickworks-erp/brickworks/internal/shared"
	"github.com/brickworks-erp/brickworks/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Tokens          *shared.TokenManager
	AuthHandler     *auth.Handler
	SafeHandler     *safe.Handler
	PayrollHandler  *payroll.Handler
	ProjectsHandler *projects.Handler
	InvoicesHandler *invoices.Handler
	ExpensesHandler *expenses.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Brickworks defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Tokens:  params.Tokens,
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

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth)

		r.Route("/safe", params.SafeHandler.MountRoutes)
		r.Route("/employees", params.PayrollHandler.MountRoutes)
		r.Route("/projects", params.ProjectsHandler.MountProjectRoutes)
		r.Route("/contractors", params.ProjectsHandler.MountContractorRoutes)
		r.Route("/category-invoices", params.InvoicesHandler.MountRoutes)
		r.Route("/expenses", params.ExpensesHandler.MountRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
