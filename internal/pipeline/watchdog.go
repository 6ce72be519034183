// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/metrics"
	"github.com/ManuGH/vidlingo/internal/store"
)

// Watchdog reverts videos stuck in processing to draft. A worker that died
// mid-run leaves its video processing forever otherwise, and the status
// guard would refuse every new trigger.
type Watchdog struct {
	Store      store.Store
	StaleAfter time.Duration
	Interval   time.Duration
	// Active reports runs owned by this process; those are never reset.
	Active func(videoID int64) bool
	Now    func() time.Time
}

// Run checks on every tick until ctx ends.
func (w *Watchdog) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := log.WithComponent("watchdog")
	logger.Info().
		Dur("interval", interval).
		Dur("stale_after", w.StaleAfter).
		Msg("pipeline watchdog started")

	for {
		select {
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("watchdog sweep failed")
			}
		case <-ctx.Done():
			logger.Info().Msg("pipeline watchdog stopped")
			return ctx.Err()
		}
	}
}

// Sweep resets every stale video once and returns how many were reset.
func (w *Watchdog) Sweep(ctx context.Context) (int, error) {
	if w.StaleAfter <= 0 {
		return 0, nil
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	cutoff := now().Add(-w.StaleAfter)

	ids, err := w.Store.ListStaleProcessing(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	logger := log.WithComponent("watchdog")
	reason := fmt.Sprintf("reset by watchdog: processing for longer than %s", w.StaleAfter)
	reset := 0
	for _, id := range ids {
		if w.Active != nil && w.Active(id) {
			metrics.IncSweeper("watchdog", "skipped_active")
			continue
		}
		ok, err := w.Store.ResetStale(ctx, id, cutoff, reason)
		if err != nil {
			logger.Error().Err(err).Int64(log.FieldVideoID, id).Msg("failed to reset stale video")
			continue
		}
		if !ok {
			continue
		}
		reset++
		metrics.IncSweeper("watchdog", "reset")
		logger.Warn().
			Int64(log.FieldVideoID, id).
			Str(log.FieldOldState, "processing").
			Str(log.FieldNewState, "draft").
			Str(log.FieldEvent, "video.watchdog_reset").
			Msg("stale processing video reset")
	}
	return reset, nil
}
