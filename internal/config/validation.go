// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
)

// Validate rejects impossible or inconsistent values. All problems are reported together.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch cfg.Storage.Backend {
	case "fs":
	case "minio":
		if cfg.Storage.Endpoint == "" || cfg.Storage.Bucket == "" {
			add("storage: minio backend requires endpoint and bucket")
		}
	default:
		add("storage.backend: unknown backend %q (fs, minio)", cfg.Storage.Backend)
	}

	switch cfg.Queue.Backend {
	case "memory":
	case "redis":
		if cfg.Queue.RedisAddr == "" {
			add("queue: redis backend requires redisAddr")
		}
	default:
		add("queue.backend: unknown backend %q (memory, redis)", cfg.Queue.Backend)
	}
	if cfg.Queue.Workers < 1 {
		add("queue.workers: must be >= 1, got %d", cfg.Queue.Workers)
	}

	switch cfg.Chunking.Mode {
	case "local":
	case "remote":
		if cfg.Services.SegmenterURL == "" {
			add("chunking: remote mode requires services.segmenterURL")
		}
	default:
		add("chunking.mode: unknown mode %q (local, remote)", cfg.Chunking.Mode)
	}
	if cfg.Chunking.MinDuration < 0 || cfg.Chunking.MaxDuration <= cfg.Chunking.MinDuration {
		add("chunking: need 0 <= minDuration < maxDuration, got %.2f/%.2f", cfg.Chunking.MinDuration, cfg.Chunking.MaxDuration)
	}
	if cfg.Chunking.MaxWords < 1 {
		add("chunking.maxWords: must be >= 1")
	}

	if cfg.Translation.BatchSize < 1 || cfg.Translation.BatchSize > 50 {
		add("translation.batchSize: must be within 1..50, got %d", cfg.Translation.BatchSize)
	}
	if cfg.Translation.RatePerSecond <= 0 {
		add("translation.ratePerSecond: must be > 0")
	}

	retries := map[string]RetryConfig{
		"audio":         cfg.Pipeline.Retries.Audio,
		"transcription": cfg.Pipeline.Retries.Transcription,
		"chunking":      cfg.Pipeline.Retries.Chunking,
		"translation":   cfg.Pipeline.Retries.Translation,
		"indexing":      cfg.Pipeline.Retries.Indexing,
	}
	for name, r := range retries {
		if r.MaxAttempts < 1 || r.MaxAttempts > 10 {
			add("pipeline.retries.%s.maxAttempts: must be within 1..10, got %d", name, r.MaxAttempts)
		}
		if r.BaseDelay < 0 {
			add("pipeline.retries.%s.baseDelay: must not be negative", name)
		}
	}

	if cfg.Pipeline.ClipErrorMax < 16 {
		add("pipeline.clipErrorMax: must be >= 16")
	}
	if cfg.Quota.Free < 0 || cfg.Quota.Premium < 0 || cfg.Quota.Admin < 0 {
		add("quota: caps must not be negative")
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.ExporterType {
		case "grpc", "http":
		default:
			add("telemetry.exporter: unknown exporter %q (grpc, http)", cfg.Telemetry.ExporterType)
		}
	}

	return errors.Join(errs...)
}
