// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the worker configuration with precedence
// ENV > YAML file > defaults.
package config

import "time"

// AppConfig is the fully resolved configuration.
type AppConfig struct {
	Version string `yaml:"-"`
	DataDir string `yaml:"dataDir"`

	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	Storage     StorageConfig     `yaml:"storage"`
	Queue       QueueConfig       `yaml:"queue"`
	Server      ServerConfig      `yaml:"server"`
	Services    ServicesConfig    `yaml:"services"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Translation TranslationConfig `yaml:"translation"`
	Search      SearchConfig      `yaml:"search"`
	FFmpeg      FFmpegConfig      `yaml:"ffmpeg"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Quota       QuotaConfig       `yaml:"quota"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

type DatabaseConfig struct {
	Path         string        `yaml:"path"`
	BusyTimeout  time.Duration `yaml:"busyTimeout"`
	MaxOpenConns int           `yaml:"maxOpenConns"`
}

// StorageConfig selects the object store. Backend is "fs" or "minio".
type StorageConfig struct {
	Backend   string `yaml:"backend"`
	Root      string `yaml:"root"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"useSSL"`
}

// QueueConfig selects the task queue. Backend is "memory" or "redis".
type QueueConfig struct {
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	Key           string `yaml:"key"`
	Workers       int    `yaml:"workers"`
	Buffer        int    `yaml:"buffer"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	ClipRateLimit   int           `yaml:"clipRateLimit"`
	ClipRateWindow  time.Duration `yaml:"clipRateWindow"`
}

// ServicesConfig points at the external AI services.
type ServicesConfig struct {
	STTURL           string        `yaml:"sttURL"`
	STTTimeout       time.Duration `yaml:"sttTimeout"`
	SegmenterURL     string        `yaml:"segmenterURL"`
	SegmenterTimeout time.Duration `yaml:"segmenterTimeout"`
	AdvisorURL       string        `yaml:"advisorURL"`
	AdvisorTimeout   time.Duration `yaml:"advisorTimeout"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// ChunkingConfig configures semantic segmentation. Mode is "remote" or "local".
type ChunkingConfig struct {
	Mode        string  `yaml:"mode"`
	Strategy    string  `yaml:"strategy"`
	MaxDuration float64 `yaml:"maxDuration"`
	MinDuration float64 `yaml:"minDuration"`
	MaxWords    int     `yaml:"maxWords"`
	MaxGap      float64 `yaml:"maxGap"`
}

type TranslationConfig struct {
	APIKey        string        `yaml:"apiKey"`
	Model         string        `yaml:"model"`
	BatchSize     int           `yaml:"batchSize"`
	RatePerSecond float64       `yaml:"ratePerSecond"`
	Burst         int           `yaml:"burst"`
	Concurrency   int           `yaml:"concurrency"`
	CacheDir      string        `yaml:"cacheDir"`
	CacheTTL      time.Duration `yaml:"cacheTTL"`
}

type SearchConfig struct {
	URL      string `yaml:"url"`
	Index    string `yaml:"index"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type FFmpegConfig struct {
	Bin        string        `yaml:"bin"`
	FFprobeBin string        `yaml:"ffprobeBin"`
	MinTimeout time.Duration `yaml:"minTimeout"`
	// TimeoutFactor scales the timeout with media duration.
	TimeoutFactor float64       `yaml:"timeoutFactor"`
	KillGrace     time.Duration `yaml:"killGrace"`
	// StallTimeout aborts a command whose progress output stops advancing.
	StallTimeout time.Duration `yaml:"stallTimeout"`
}

// RetryConfig is one stage's retry policy.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"maxAttempts"`
	BaseDelay      time.Duration `yaml:"baseDelay"`
	MaxDelay       time.Duration `yaml:"maxDelay"`
	AttemptTimeout time.Duration `yaml:"attemptTimeout"`
}

type RetriesConfig struct {
	Audio         RetryConfig `yaml:"audio"`
	Transcription RetryConfig `yaml:"transcription"`
	Chunking      RetryConfig `yaml:"chunking"`
	Translation   RetryConfig `yaml:"translation"`
	Indexing      RetryConfig `yaml:"indexing"`
}

type PipelineConfig struct {
	Retries           RetriesConfig `yaml:"retries"`
	StaleAfter        time.Duration `yaml:"staleAfter"`
	WatchdogInterval  time.Duration `yaml:"watchdogInterval"`
	ClipRetention     time.Duration `yaml:"clipRetention"`
	RetentionInterval time.Duration `yaml:"retentionInterval"`
	ClipErrorMax      int           `yaml:"clipErrorMax"`
	TempDir           string        `yaml:"tempDir"`
}

// QuotaConfig holds daily clip caps per tier.
type QuotaConfig struct {
	Free    int `yaml:"free"`
	Premium int `yaml:"premium"`
	Admin   int `yaml:"admin"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"samplingRate"`
}
