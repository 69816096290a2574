package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/agendoai/agendo/libs/httpx"
	"github.com/agendoai/agendo/libs/runtime"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds router dependencies. Limiter, Metrics and ReadyChecks are optional.
type RouterConfig struct {
	Logger             *slog.Logger
	Scheduling         *SchedulingHandler
	Limiter            httpx.Limiter
	RateLimitFailOpen  bool
	ReadyChecks        []runtime.ReadyCheck
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
	MaxBodyBytes       int64
}

// NewRouter wires the public API plus health, readiness and metrics endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	r := chi.NewRouter()
	r.Use(httpx.WithRequestID)
	r.Use(httpx.WithAccessLog(cfg.Logger))
	r.Use(httpx.WithRecover(cfg.Logger))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", httpx.RequestIDHeader},
			ExposedHeaders: []string{httpx.RequestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", runtime.HealthHandler())
	r.Get("/readyz", runtime.ReadyHandler(cfg.ReadyChecks...))
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Group(func(api chi.Router) {
		if cfg.Limiter != nil {
			api.Use(httpx.RateLimit(cfg.Limiter, cfg.Logger, cfg.RateLimitFailOpen))
		}
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(httpx.WithBodyLimit(cfg.MaxBodyBytes))

		h := cfg.Scheduling
		api.Get("/providers/{providerID}/time-slots", h.TimeSlots)
		api.Post("/providers/{providerID}/appointments", h.Book)
		api.Post("/appointments/{appointmentID}/cancel", h.Cancel)

		api.Route("/provider/{providerID}/availability", func(av chi.Router) {
			av.Get("/", h.ListWindows)
			av.Post("/", h.AddWindows)
			av.Post("/recurring", h.AddRecurring)
			av.Delete("/{availabilityID}", h.RemoveWindow)
		})
	})
	return r
}
