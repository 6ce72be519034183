// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment key.
const EnvPrefix = "VIDLINGO_"

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) key(name string) string {
	k := EnvPrefix + name
	l.ConsumedEnvKeys[k] = struct{}{}
	return k
}

func (l *Loader) envString(name, defaultVal string) string {
	return ParseString(l.key(name), defaultVal)
}

func (l *Loader) envBool(name string, defaultVal bool) bool {
	return ParseBool(l.key(name), defaultVal)
}

func (l *Loader) envInt(name string, defaultVal int) int {
	return ParseInt(l.key(name), defaultVal)
}

func (l *Loader) envDuration(name string, defaultVal time.Duration) time.Duration {
	return ParseDuration(l.key(name), defaultVal)
}

func (l *Loader) envFloat(name string, defaultVal float64) float64 {
	return ParseFloat(l.key(name), defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order: defaults -> strict file parse -> env -> path resolution -> validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	resolvePaths(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing.
// Unknown fields are errors.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.DataDir = l.envString("DATA_DIR", cfg.DataDir)
	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = l.envString("LOG_SERVICE", cfg.Log.Service)

	cfg.Database.Path = l.envString("DB_PATH", cfg.Database.Path)
	cfg.Database.BusyTimeout = l.envDuration("DB_BUSY_TIMEOUT", cfg.Database.BusyTimeout)

	cfg.Storage.Backend = l.envString("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Root = l.envString("STORAGE_ROOT", cfg.Storage.Root)
	cfg.Storage.Endpoint = l.envString("S3_ENDPOINT", cfg.Storage.Endpoint)
	cfg.Storage.AccessKey = l.envString("S3_ACCESS_KEY", cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = l.envString("S3_SECRET_KEY", cfg.Storage.SecretKey)
	cfg.Storage.Bucket = l.envString("S3_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.Region = l.envString("S3_REGION", cfg.Storage.Region)
	cfg.Storage.UseSSL = l.envBool("S3_USE_SSL", cfg.Storage.UseSSL)

	cfg.Queue.Backend = l.envString("QUEUE_BACKEND", cfg.Queue.Backend)
	cfg.Queue.RedisAddr = l.envString("REDIS_ADDR", cfg.Queue.RedisAddr)
	cfg.Queue.RedisPassword = l.envString("REDIS_PASSWORD", cfg.Queue.RedisPassword)
	cfg.Queue.RedisDB = l.envInt("REDIS_DB", cfg.Queue.RedisDB)
	cfg.Queue.Workers = l.envInt("WORKERS", cfg.Queue.Workers)

	cfg.Server.ListenAddr = l.envString("LISTEN", cfg.Server.ListenAddr)

	cfg.Services.STTURL = l.envString("STT_URL", cfg.Services.STTURL)
	cfg.Services.SegmenterURL = l.envString("SEGMENTER_URL", cfg.Services.SegmenterURL)
	cfg.Services.AdvisorURL = l.envString("ADVISOR_URL", cfg.Services.AdvisorURL)
	cfg.Chunking.Mode = l.envString("CHUNKING_MODE", cfg.Chunking.Mode)

	cfg.Translation.APIKey = l.envString("GEMINI_API_KEY", cfg.Translation.APIKey)
	cfg.Translation.Model = l.envString("GEMINI_MODEL", cfg.Translation.Model)
	cfg.Translation.RatePerSecond = l.envFloat("TRANSLATION_RPS", cfg.Translation.RatePerSecond)
	cfg.Translation.CacheDir = l.envString("TRANSLATION_CACHE_DIR", cfg.Translation.CacheDir)

	cfg.Search.URL = l.envString("ES_URL", cfg.Search.URL)
	cfg.Search.Index = l.envString("ES_INDEX", cfg.Search.Index)
	cfg.Search.Username = l.envString("ES_USERNAME", cfg.Search.Username)
	cfg.Search.Password = l.envString("ES_PASSWORD", cfg.Search.Password)

	cfg.FFmpeg.Bin = l.envString("FFMPEG_BIN", cfg.FFmpeg.Bin)
	cfg.FFmpeg.FFprobeBin = l.envString("FFPROBE_BIN", cfg.FFmpeg.FFprobeBin)

	cfg.Pipeline.StaleAfter = l.envDuration("STALE_AFTER", cfg.Pipeline.StaleAfter)
	cfg.Pipeline.ClipRetention = l.envDuration("CLIP_RETENTION", cfg.Pipeline.ClipRetention)
	cfg.Pipeline.TempDir = l.envString("TEMP_DIR", cfg.Pipeline.TempDir)

	cfg.Quota.Free = l.envInt("QUOTA_FREE", cfg.Quota.Free)
	cfg.Quota.Premium = l.envInt("QUOTA_PREMIUM", cfg.Quota.Premium)

	cfg.Telemetry.Enabled = l.envBool("OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = l.envString("OTEL_EXPORTER", cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = l.envString("OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
}
