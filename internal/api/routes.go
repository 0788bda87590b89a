package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sparklebrand/brand-api/internal/metrics"
	"github.com/sparklebrand/brand-api/internal/pkg/httputil"
)

// Router options that do not come from Handlers.
type RouterConfig struct {
	CORSOrigins []string
	Health      *HealthChecker
	Metrics     *metrics.Recorder
}

// NewRouter mounts the public API under /api plus the health and metrics
// endpoints.
func NewRouter(h *Handlers, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cfg.Metrics.Middleware)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.NotFound(w, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.MethodNotAllowed(w)
	})

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.HandleHealth)
		r.Get("/health/live", cfg.Health.HandleLiveness)
		r.Get("/health/ready", cfg.Health.HandleReadiness)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.Root)

		r.Post("/status", h.CreateStatusCheck)
		r.Get("/status", h.ListStatusChecks)

		r.Post("/subscribe", h.Subscribe)
		r.Post("/purchase", h.Purchase)

		r.Get("/subscribers", h.ListSubscribers)
		r.Get("/purchases", h.ListPurchases)
	})

	return r
}
