package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-core/internal/inventory"
	"github.com/odyssey-erp/ledger-core/internal/observability"
	"github.com/odyssey-erp/ledger-core/internal/posting"
	"github.com/odyssey-erp/ledger-core/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	ChartHandler     *chart.Handler
	JournalHandler   *journal.Handler
	InventoryHandler *inventory.Handler
	PostingHandler   *posting.Handler
	ReportsHandler   *reports.Handler
	JobHandler       *jobs.Handler

	// Ready reports whether backing stores answer; nil means always ready.
	Ready func(r *http.Request) error
}

// RouterParamsFromContainer builds the handlers of every service in c.
func RouterParamsFromContainer(c *Container, jobHandler *jobs.Handler) RouterParams {
	params := RouterParams{
		Logger:           c.Logger,
		Config:           c.Config,
		Metrics:          c.Metrics,
		ChartHandler:     chart.NewHandler(c.Logger, c.Chart),
		JournalHandler:   journal.NewHandler(c.Logger, c.Journal),
		InventoryHandler: inventory.NewHandler(c.Logger, c.Inventory),
		PostingHandler:   posting.NewHandler(c.Logger, c.Posting),
		ReportsHandler:   reports.NewHandler(c.Logger, c.Reports),
		JobHandler:       jobHandler,
	}
	if c.Pool != nil {
		pool := c.Pool
		params.Ready = func(r *http.Request) error { return pool.Ping(r.Context()) }
	}
	return params
}

// NewRouter constructs the chi.Router with ledger defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
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
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Ready != nil {
			if err := params.Ready(r); err != nil {
				params.Logger.Warn("readiness check failed", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.ChartHandler != nil {
			params.ChartHandler.MountRoutes(r)
		}
		if params.JournalHandler != nil {
			params.JournalHandler.MountRoutes(r)
		}
		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(r)
		}
		if params.PostingHandler != nil {
			params.PostingHandler.MountRoutes(r)
		}
		if params.ReportsHandler != nil {
			params.ReportsHandler.MountRoutes(r)
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
