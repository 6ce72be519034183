// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api is the HTTP trigger surface in front of the pipeline: it
// enqueues runs and reports clip status. Identity headers are trusted as
// injected by the upstream CRUD layer.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/vidlingo/internal/api/middleware"
	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/ManuGH/vidlingo/internal/pipeline"
)

// Service is the trigger surface the handlers drive.
type Service interface {
	EnqueueMainPipeline(ctx context.Context, videoID int64) (pipeline.EnqueueResult, error)
	EnqueueClipPipeline(ctx context.Context, clipID int64) (pipeline.EnqueueResult, error)
	CreateClip(ctx context.Context, req pipeline.ClipRequest) (*model.Clip, pipeline.EnqueueResult, error)
	UserQuota(ctx context.Context, userID int64, tier model.Tier) (model.UserQuota, error)
}

// ClipReader reads clip status for polling.
type ClipReader interface {
	GetClip(ctx context.Context, id int64) (*model.Clip, error)
}

// Options tunes the router.
type Options struct {
	ClipRateLimit  int
	ClipRateWindow time.Duration
	// TracingService enables OTel server spans when set.
	TracingService string
	// Probes serves /healthz and /readyz; nil answers ok on both.
	Probes Probes
}

// Probes answers liveness and readiness.
type Probes interface {
	ServeHealth(w http.ResponseWriter, r *http.Request)
	ServeReady(w http.ResponseWriter, r *http.Request)
}

// Server owns the routes.
type Server struct {
	svc   Service
	clips ClipReader
	opts  Options
}

// New returns a server for svc.
func New(svc Service, clips ClipReader, opts Options) *Server {
	return &Server{svc: svc, clips: clips, opts: opts}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: s.opts.TracingService,
		EnableLogging:  true,
	})

	if s.opts.Probes != nil {
		r.Get("/healthz", s.opts.Probes.ServeHealth)
		r.Get("/readyz", s.opts.Probes.ServeReady)
	} else {
		r.Get("/healthz", s.handleHealth)
		r.Get("/readyz", s.handleHealth)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/videos/{id}/pipeline", s.handleEnqueueVideo)
		r.With(middleware.ClipRateLimit(s.opts.ClipRateLimit, s.opts.ClipRateWindow)).
			Post("/clips", s.handleCreateClip)
		r.Post("/clips/{id}/pipeline", s.handleEnqueueClip)
		r.Get("/clips/{id}", s.handleGetClip)
		r.Get("/quota", s.handleQuota)
	})
	return r
}
