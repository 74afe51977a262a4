package router

import (
	"net/http"

	"estimate-api/internal/handler"
	"estimate-api/internal/metrics"
	"estimate-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted under /api.
type Handlers struct {
	Quotes  *handler.QuoteHandler
	Catalog *handler.CatalogHandler
	Exports *handler.ExportHandler
}

// Options carries the cross-cutting pieces the router wires in.
type Options struct {
	Verifier middleware.TokenVerifier
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// New creates a new HTTP router with all routes and middleware configured.
// /health and /metrics are open; everything under /api needs a bearer token.
func New(h Handlers, opts Options) http.Handler {
	r := chi.NewRouter()

	// Applied outermost first: Recovery -> RequestID -> Logging -> CORS -> Instrument
	r.Use(middleware.Recovery(opts.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(opts.Logger))
	r.Use(middleware.CORS)
	if opts.Metrics != nil {
		r.Use(middleware.Instrument(opts.Metrics))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.BearerAuth(opts.Verifier, opts.Logger))

		r.Get("/items", h.Catalog.ListItems)
		r.Get("/items/{id}/options", h.Catalog.ListOptions)

		r.Route("/quotes", func(r chi.Router) {
			r.Post("/", h.Quotes.Submit)
			r.Post("/preview", h.Quotes.Preview)
			r.Get("/search", h.Quotes.Search)
			r.Get("/keys/{key}", h.Quotes.KeyState)

			r.Get("/export.csv", h.Exports.Stream)
			r.Post("/exports", h.Exports.Snapshot)
			r.Get("/exports/{key}", h.Exports.Download)

			r.Get("/{id}", h.Quotes.GetByID)
		})
	})

	return r
}
