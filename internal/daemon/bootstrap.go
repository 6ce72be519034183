// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the worker process together and owns its lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/vidlingo/internal/api"
	"github.com/ManuGH/vidlingo/internal/blob"
	"github.com/ManuGH/vidlingo/internal/clipadvisor"
	"github.com/ManuGH/vidlingo/internal/config"
	"github.com/ManuGH/vidlingo/internal/health"
	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/media/ffmpeg"
	"github.com/ManuGH/vidlingo/internal/persistence/sqlite"
	"github.com/ManuGH/vidlingo/internal/pipeline"
	"github.com/ManuGH/vidlingo/internal/queue"
	"github.com/ManuGH/vidlingo/internal/resilience"
	"github.com/ManuGH/vidlingo/internal/search"
	"github.com/ManuGH/vidlingo/internal/segment"
	"github.com/ManuGH/vidlingo/internal/store"
	"github.com/ManuGH/vidlingo/internal/stt"
	"github.com/ManuGH/vidlingo/internal/telemetry"
	"github.com/ManuGH/vidlingo/internal/translate"
)

// Runtime is the wired object graph of one process.
type Runtime struct {
	Holder       *config.Holder
	Store        *store.SqliteStore
	Blobs        blob.Store
	Queue        queue.Queue
	Orchestrator *pipeline.Orchestrator
	Service      *pipeline.Service
	Watchdog     *pipeline.Watchdog
	Retention    *pipeline.RetentionSweeper
	Probes       *health.Manager

	closers []namedHook
	logger  zerolog.Logger
}

func (r *Runtime) onClose(name string, fn func(ctx context.Context) error) {
	r.closers = append(r.closers, namedHook{name: name, hook: fn})
}

// Close releases everything Build opened, last opened first.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.hook(ctx); err != nil {
			r.logger.Warn().Err(err).Str("resource", c.name).Msg("close failed")
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Build opens every collaborator named by the configuration. Optional
// collaborators (translator, search index, clip advisor) are left out when
// unconfigured and the pipeline skips their stages.
func Build(ctx context.Context, holder *config.Holder) (rt *Runtime, err error) {
	cfg := holder.Get()
	rt = &Runtime{
		Holder: holder,
		Probes: health.NewManager(cfg.Version),
		logger: log.WithComponent("bootstrap"),
	}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
			rt = nil
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return rt, fmt.Errorf("telemetry: %w", err)
	}
	rt.onClose("telemetry", tp.Shutdown)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o750); err != nil {
		return rt, fmt.Errorf("create database dir: %w", err)
	}
	st, err := store.NewSqliteStore(ctx, cfg.Database.Path, sqlite.Config{
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return rt, fmt.Errorf("store: %w", err)
	}
	rt.Store = st
	rt.onClose("store", func(context.Context) error { return st.Close() })
	rt.Probes.RegisterChecker(health.NewFuncChecker("database", true, st.DB.PingContext))

	if rt.Blobs, err = openBlobs(ctx, cfg.Storage); err != nil {
		return rt, fmt.Errorf("blob store: %w", err)
	}
	switch b := rt.Blobs.(type) {
	case *blob.MinioStore:
		rt.Probes.RegisterChecker(health.NewFuncChecker("blob_store", true, b.Ping))
	case *blob.FSStore:
		rt.Probes.RegisterChecker(health.NewWritableDirChecker("blob_store", b.Root))
	}

	if rt.Queue, err = openQueue(ctx, cfg.Queue); err != nil {
		return rt, fmt.Errorf("queue: %w", err)
	}
	q := rt.Queue
	rt.onClose("queue", func(context.Context) error { return q.Close() })
	if rq, ok := q.(*queue.RedisQueue); ok {
		rt.Probes.RegisterChecker(health.NewFuncChecker("queue", true, rq.Ping))
	}

	tempDir := cfg.Pipeline.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if err := os.MkdirAll(tempDir, 0o750); err != nil {
		return rt, fmt.Errorf("create temp dir: %w", err)
	}
	rt.Probes.RegisterChecker(health.NewWritableDirChecker("temp_dir", tempDir))

	deps := pipeline.Deps{
		Store: st,
		Blobs: rt.Blobs,
		Media: ffmpeg.New(ffmpeg.Config{
			Bin:           cfg.FFmpeg.Bin,
			ProbeBin:      cfg.FFmpeg.FFprobeBin,
			MinTimeout:    cfg.FFmpeg.MinTimeout,
			TimeoutFactor: cfg.FFmpeg.TimeoutFactor,
			KillGrace:     cfg.FFmpeg.KillGrace,
			StallTimeout:  cfg.FFmpeg.StallTimeout,
		}),
		STT: stt.NewClient(cfg.Services.STTURL, cfg.Services.STTTimeout,
			stt.WithBreaker(newBreaker("stt", cfg.Services))),
	}

	if cfg.Chunking.Mode == "remote" {
		deps.Segmenter = segment.NewHTTPClient(cfg.Services.SegmenterURL, cfg.Services.SegmenterTimeout,
			newBreaker("segmenter", cfg.Services))
	} else {
		deps.Segmenter = segment.LocalChunker{}
	}

	if cfg.Services.AdvisorURL != "" {
		deps.Advisor = clipadvisor.NewClient(cfg.Services.AdvisorURL, cfg.Services.AdvisorTimeout,
			newBreaker("clip_advisor", cfg.Services))
	} else {
		rt.logger.Warn().Msg("clip advisor not configured, clips use fallback bounds")
	}

	if tr, err := rt.openTranslator(ctx, cfg.Translation); err != nil {
		return rt, fmt.Errorf("translator: %w", err)
	} else if tr != nil {
		deps.Translator = tr
	}

	if cfg.Search.URL != "" {
		idx, err := search.NewESIndexer(search.ESConfig{
			URL:      cfg.Search.URL,
			Index:    cfg.Search.Index,
			Username: cfg.Search.Username,
			Password: cfg.Search.Password,
		})
		if err != nil {
			return rt, fmt.Errorf("search: %w", err)
		}
		// The index is optional; an unreachable cluster only degrades indexing.
		if err := idx.EnsureIndex(ctx); err != nil {
			rt.logger.Warn().Err(err).Msg("search index not ready, indexing will retry per run")
		}
		deps.Indexer = idx
		rt.Probes.RegisterChecker(health.NewFuncChecker("search", false, idx.Ping))
	} else {
		rt.logger.Warn().Msg("search index not configured, indexing disabled")
	}

	rt.Orchestrator = pipeline.New(deps, pipeline.OptionsFromConfig(cfg))
	rt.Service = &pipeline.Service{
		Store: st,
		Queue: rt.Queue,
		Quota: func() config.QuotaConfig { return holder.Get().Quota },
	}
	rt.Watchdog = &pipeline.Watchdog{
		Store:      st,
		StaleAfter: cfg.Pipeline.StaleAfter,
		Interval:   cfg.Pipeline.WatchdogInterval,
		Active:     rt.Orchestrator.Active,
	}
	rt.Retention = &pipeline.RetentionSweeper{
		Store:     st,
		Blobs:     rt.Blobs,
		Retention: cfg.Pipeline.ClipRetention,
		Interval:  cfg.Pipeline.RetentionInterval,
	}
	return rt, nil
}

// Handler builds the HTTP surface over the runtime.
func (r *Runtime) Handler() http.Handler {
	cfg := r.Holder.Get()
	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = cfg.Log.Service
	}
	return api.New(r.Service, r.Store, api.Options{
		ClipRateLimit:  cfg.Server.ClipRateLimit,
		ClipRateWindow: cfg.Server.ClipRateWindow,
		TracingService: tracing,
		Probes:         r.Probes,
	}).Handler()
}

// Pool returns the worker pool that feeds queued jobs to the orchestrator.
func (r *Runtime) Pool() *queue.Pool {
	return &queue.Pool{
		Queue:   r.Queue,
		Workers: r.Holder.Get().Queue.Workers,
		Handler: r.Orchestrator.Handle,
	}
}

func newBreaker(name string, sc config.ServicesConfig) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(name, sc.BreakerThreshold, sc.BreakerReset)
}

func openBlobs(ctx context.Context, sc config.StorageConfig) (blob.Store, error) {
	switch sc.Backend {
	case "minio":
		ms, err := blob.NewMinioStore(blob.MinioConfig{
			Endpoint:  sc.Endpoint,
			AccessKey: sc.AccessKey,
			SecretKey: sc.SecretKey,
			Bucket:    sc.Bucket,
			Region:    sc.Region,
			UseSSL:    sc.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := ms.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return ms, nil
	default:
		return blob.NewFSStore(sc.Root)
	}
}

func openQueue(ctx context.Context, qc config.QueueConfig) (queue.Queue, error) {
	switch qc.Backend {
	case "redis":
		return queue.NewRedisQueue(ctx, queue.RedisConfig{
			Addr:     qc.RedisAddr,
			Password: qc.RedisPassword,
			DB:       qc.RedisDB,
			Key:      qc.Key,
		})
	default:
		return queue.NewMemoryQueue(qc.Buffer), nil
	}
}

// openTranslator returns nil without an API key.
func (r *Runtime) openTranslator(ctx context.Context, tc config.TranslationConfig) (*translate.Translator, error) {
	if tc.APIKey == "" {
		r.logger.Warn().Msg("translation API key not set, translation disabled")
		return nil, nil
	}
	gen, err := translate.NewGeminiGenerator(ctx, tc.APIKey, tc.Model)
	if err != nil {
		return nil, err
	}
	opts := []translate.Option{
		translate.WithBatchSize(tc.BatchSize),
		translate.WithLimiter(rate.NewLimiter(rate.Limit(tc.RatePerSecond), max(1, tc.Burst))),
	}
	if tc.CacheDir != "" {
		cache, err := translate.OpenBadgerCache(tc.CacheDir, tc.CacheTTL)
		if err != nil {
			return nil, err
		}
		r.onClose("translation_cache", func(context.Context) error { return cache.Close() })
		opts = append(opts, translate.WithCache(cache))
	}
	return translate.New(gen, opts...), nil
}
