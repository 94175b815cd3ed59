package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/darkhorseone/x402-gate"
	"github.com/darkhorseone/x402-gate/facilitator"
	httpx402 "github.com/darkhorseone/x402-gate/http"
	chix402 "github.com/darkhorseone/x402-gate/http/chi"
	"github.com/darkhorseone/x402-gate/internal/config"
	"github.com/darkhorseone/x402-gate/metrics"
)

// newServer builds the router: one gated route per configured route, plus
// /health, /metrics and /facilitator/supported.
func newServer(cfg *config.Config, reg *prometheus.Registry) (http.Handler, error) {
	client := httpx402.NewFacilitatorClient(cfg.Backend, nil)
	if cfg.Auth.KeyID != "" {
		keyPEM, err := os.ReadFile(cfg.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read auth key: %w", err)
		}
		authorizer, err := facilitator.NewJWTAuthorizer(cfg.Auth.KeyID, string(keyPEM))
		if err != nil {
			return nil, err
		}
		client.Authorizer = authorizer
	}

	recorder, err := metrics.NewPrometheusRecorder(reg)
	if err != nil {
		return nil, err
	}

	deps := &httpx402.Deps{
		Backend:     &cfg.Backend,
		Facilitator: client,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/facilitator/supported", func(w http.ResponseWriter, r *http.Request) {
		supported, err := client.Supported(r.Context())
		if err != nil {
			_ = httpx402.ToResponse(err, nil).Render(w)
			return
		}
		writeJSON(w, http.StatusOK, supported)
	})

	for _, route := range cfg.Routes {
		gate, err := chix402.NewChiX402Middleware(route.Pricing(), deps)
		if err != nil {
			return nil, fmt.Errorf("route %s %s: %w", route.Method, route.Path, err)
		}
		r.With(metrics.Middleware(recorder, route.Path), gate).
			Method(route.Method, route.Path, resourceHandler(route))
		slog.Debug("gated route registered", "method", route.Method, "path", route.Path, "price", route.Price)
	}

	return r, nil
}

// resourceHandler answers a paid request with a description of what was bought.
func resourceHandler(route config.RouteConfig) http.Handler {
	pricing := route.Pricing()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"path":        r.URL.Path,
			"description": pricing.Description,
			"price":       pricing.Price,
			"scheme":      x402.DefaultScheme,
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
