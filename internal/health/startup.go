// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/vidlingo/internal/config"
	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/persistence/sqlite"
)

// LookPath resolves binaries; tests replace it.
var LookPath = exec.LookPath

// PerformStartupChecks validates the environment before the worker starts
// taking jobs. All problems are reported together.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks")

	var errs []error
	if err := checkDataDir(cfg.DataDir); err != nil {
		errs = append(errs, fmt.Errorf("data directory: %w", err))
	}
	if err := checkDatabase(ctx, cfg.Database.Path); err != nil {
		errs = append(errs, err)
	}
	if err := checkListenAddr(cfg.Server.ListenAddr); err != nil {
		errs = append(errs, err)
	}
	for _, bin := range []string{cfg.FFmpeg.Bin, cfg.FFmpeg.FFprobeBin} {
		if _, err := LookPath(bin); err != nil {
			errs = append(errs, fmt.Errorf("media binary %q not found: %w", bin, err))
		}
	}
	services := []struct{ name, raw string }{
		{"services.sttURL", cfg.Services.STTURL},
		{"services.segmenterURL", cfg.Services.SegmenterURL},
		{"services.advisorURL", cfg.Services.AdvisorURL},
		{"search.url", cfg.Search.URL},
	}
	for _, s := range services {
		if err := checkServiceURL(s.name, s.raw); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Services.STTURL == "" {
		errs = append(errs, errors.New("services.sttURL is required"))
	}
	warnOptional(logger, cfg)

	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Info().Msg("All startup checks passed")
	return nil
}

func checkDataDir(path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}
	return checkWritable(path)
}

// checkDatabase runs a quick integrity check on an existing database file.
// A missing file is created by the store on first open.
func checkDatabase(ctx context.Context, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	diag, err := sqlite.VerifyIntegrity(ctx, path, false)
	if err != nil {
		return fmt.Errorf("database %s: %w", path, err)
	}
	if len(diag) > 0 {
		return fmt.Errorf("database %s is corrupt: %s", path, strings.Join(diag, "; "))
	}
	return nil
}

func checkListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	return nil
}

// checkServiceURL accepts empty values; optional services are checked by warnOptional.
func checkServiceURL(name, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: scheme must be http or https, got %q", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: host is missing", name)
	}
	return nil
}

func warnOptional(logger zerolog.Logger, cfg config.AppConfig) {
	if cfg.Translation.APIKey == "" {
		logger.Warn().Msg("translation API key not set; subtitles stay English-only")
	}
	if cfg.Search.URL == "" {
		logger.Warn().Msg("search index not configured; sentences are not indexed")
	}
	if cfg.Services.AdvisorURL == "" {
		logger.Warn().Msg("clip advisor not configured; clips without bounds use fallback bounds")
	}
	if cfg.Queue.Backend == "memory" {
		logger.Warn().Msg("in-memory queue: pending jobs are lost on restart and recovered by the watchdog")
	}
}
