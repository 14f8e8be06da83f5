// Package httptransport assembles the middleware chain and mounts every
// endpoint. Handlers stay in their modules; this package only wires them.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crowdgate/internal/platform/middleware"
	"crowdgate/internal/ratelimit"
	salehandler "crowdgate/internal/sale/handler"
)

// Config carries the router's dependencies.
type Config struct {
	Logger         *slog.Logger
	Sale           *salehandler.Handler
	TokenValidator middleware.TokenValidator
	RateLimiter    *ratelimit.Middleware
	RequestTimeout time.Duration

	// Health reports backing store health; nil means always healthy.
	Health func(ctx context.Context) error
}

// NewRouter builds the full HTTP surface.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", handleHealth(cfg.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}
		cfg.Sale.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireOwner(cfg.TokenValidator, cfg.Logger))
		cfg.Sale.RegisterOwner(r)
	})

	return r
}

func handleHealth(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			if err := check(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
