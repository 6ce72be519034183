// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"path/filepath"
	"time"
)

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir: "data",
		Log:     LogConfig{Level: "info", Service: "vidlingo"},
		Database: DatabaseConfig{
			BusyTimeout:  5 * time.Second,
			MaxOpenConns: 8,
		},
		Storage: StorageConfig{Backend: "fs", Bucket: "vidlingo", Region: "us-east-1"},
		Queue: QueueConfig{
			Backend: "memory",
			Key:     "vidlingo:jobs",
			Workers: 2,
			Buffer:  128,
		},
		Server: ServerConfig{
			ListenAddr:      ":8088",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			ClipRateLimit:   20,
			ClipRateWindow:  time.Minute,
		},
		Services: ServicesConfig{
			STTTimeout:       10 * time.Minute,
			SegmenterTimeout: 2 * time.Minute,
			AdvisorTimeout:   60 * time.Second,
			BreakerThreshold: 5,
			BreakerReset:     time.Minute,
		},
		Chunking: ChunkingConfig{
			Mode:        "local",
			Strategy:    "hybrid",
			MaxDuration: 10,
			MinDuration: 2,
			MaxWords:    15,
			MaxGap:      5,
		},
		Translation: TranslationConfig{
			Model:         "gemini-2.0-flash",
			BatchSize:     50,
			RatePerSecond: 1,
			Burst:         2,
			Concurrency:   4,
			CacheTTL:      30 * 24 * time.Hour,
		},
		Search: SearchConfig{Index: "video_transcripts"},
		FFmpeg: FFmpegConfig{
			Bin:           "ffmpeg",
			FFprobeBin:    "ffprobe",
			MinTimeout:    2 * time.Minute,
			TimeoutFactor: 2,
			KillGrace:     5 * time.Second,
			StallTimeout:  2 * time.Minute,
		},
		Pipeline: PipelineConfig{
			Retries: RetriesConfig{
				Audio:         RetryConfig{MaxAttempts: 3, BaseDelay: time.Minute},
				Transcription: RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Minute, AttemptTimeout: 15 * time.Minute},
				Chunking:      RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Minute, AttemptTimeout: 5 * time.Minute},
				Translation:   RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Minute, AttemptTimeout: 10 * time.Minute},
				Indexing:      RetryConfig{MaxAttempts: 2, BaseDelay: time.Minute, AttemptTimeout: 2 * time.Minute},
			},
			StaleAfter:        2 * time.Hour,
			WatchdogInterval:  5 * time.Minute,
			ClipRetention:     30 * 24 * time.Hour,
			RetentionInterval: time.Hour,
			ClipErrorMax:      500,
		},
		Quota: QuotaConfig{Free: 5, Premium: 999, Admin: 999},
		Telemetry: TelemetryConfig{
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "development",
			SamplingRate: 1,
		},
	}
}

// resolvePaths fills data-dir relative paths that were left empty.
func resolvePaths(cfg *AppConfig) {
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.DataDir, "vidlingo.sqlite")
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = filepath.Join(cfg.DataDir, "blobs")
	}
	if cfg.Translation.CacheDir == "" {
		cfg.Translation.CacheDir = filepath.Join(cfg.DataDir, "translation-cache")
	}
}
