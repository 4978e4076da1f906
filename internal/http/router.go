// Package httpapi assembles the chi router: shared middleware, health and
// metrics endpoints, public routes and the operator-only trigger routes.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"permitpulse/internal/platform/metrics"
	"permitpulse/internal/platform/middleware"
	"permitpulse/pkg/platform/httputil"
	"permitpulse/pkg/platform/middleware/requesttime"
)

// RouteRegistrar mounts a handler's routes.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// OperatorRegistrar mounts routes that require operator authentication.
type OperatorRegistrar interface {
	RegisterOperator(r chi.Router)
}

// HealthCheck reports a dependency's health.
type HealthCheck func(ctx context.Context) error

// Config collects everything the router needs.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// OrgResolution scopes public requests to an organization.
	OrgResolution func(http.Handler) http.Handler
	// OperatorAuth guards the trigger routes.
	OperatorAuth func(http.Handler) http.Handler

	Public   []RouteRegistrar
	Operator []OperatorRegistrar
	Health   map[string]HealthCheck

	// PublicTimeout bounds public requests; trigger routes run to completion.
	PublicTimeout time.Duration
}

func NewRouter(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PublicTimeout <= 0 {
		cfg.PublicTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(cfg.Metrics.Middleware)

	r.Get("/health", healthHandler(cfg.Health))
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.PublicTimeout))
		if cfg.OrgResolution != nil {
			r.Use(cfg.OrgResolution)
		}
		for _, h := range cfg.Public {
			h.Register(r)
		}
	})

	r.Group(func(r chi.Router) {
		if cfg.OperatorAuth != nil {
			r.Use(cfg.OperatorAuth)
		}
		for _, h := range cfg.Operator {
			h.RegisterOperator(r)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
