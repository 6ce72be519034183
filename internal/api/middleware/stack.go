// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// StackConfig selects the optional layers of the ingress stack.
type StackConfig struct {
	EnableMetrics bool
	// TracingService names the server spans; empty disables tracing.
	TracingService string
	EnableLogging  bool
}

// Stack returns the ingress middlewares, outermost first. Recovery and
// request IDs are always on.
func Stack(cfg StackConfig) []func(http.Handler) http.Handler {
	mws := []func(http.Handler) http.Handler{Recoverer, RequestID}
	if cfg.EnableMetrics {
		mws = append(mws, Metrics())
	}
	if cfg.TracingService != "" {
		mws = append(mws, OTelHTTP(cfg.TracingService))
	}
	if cfg.EnableLogging {
		mws = append(mws, AccessLog)
	}
	return mws
}

// NewRouter returns a chi router with Stack(cfg) installed.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(Stack(cfg)...)
	return r
}
