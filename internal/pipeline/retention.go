// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/vidlingo/internal/blob"
	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/metrics"
	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/ManuGH/vidlingo/internal/store"
)

const defaultRetentionBatch = 100

// RetentionSweeper deletes clips past their retention together with their
// objects. Quota counters are left as they are.
type RetentionSweeper struct {
	Store     store.Store
	Blobs     blob.Store
	Retention time.Duration
	Interval  time.Duration
	BatchSize int
	Now       func() time.Time
}

// Run sweeps on every tick until ctx ends.
func (r *RetentionSweeper) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := log.WithComponent("retention")
	logger.Info().
		Dur("interval", interval).
		Dur("retention", r.Retention).
		Msg("clip retention sweeper started")

	for {
		select {
		case <-ticker.C:
			if n, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("retention sweep failed")
			} else if n > 0 {
				logger.Info().Int("deleted", n).Msg("expired clips deleted")
			}
		case <-ctx.Done():
			logger.Info().Msg("clip retention sweeper stopped")
			return ctx.Err()
		}
	}
}

// Sweep deletes every expired clip not currently processing. A clip whose
// objects cannot be removed is kept for the next sweep.
func (r *RetentionSweeper) Sweep(ctx context.Context) (int, error) {
	if r.Retention <= 0 {
		return 0, nil
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	batch := r.BatchSize
	if batch <= 0 {
		batch = defaultRetentionBatch
	}
	cutoff := now().Add(-r.Retention)

	deleted := 0
	limit := batch
	for {
		clips, err := r.Store.ListClipsCreatedBefore(ctx, cutoff, limit)
		if err != nil {
			return deleted, err
		}
		// Rows that stay behind (processing, or object removal failed) are
		// listed again, so the next page is widened by their count.
		kept := 0
		for _, c := range clips {
			if err := ctx.Err(); err != nil {
				return deleted, err
			}
			if r.deleteClip(ctx, c) {
				deleted++
			} else {
				kept++
			}
		}
		if len(clips) < limit {
			return deleted, nil
		}
		limit = kept + batch
	}
}

func (r *RetentionSweeper) deleteClip(ctx context.Context, c *model.Clip) bool {
	logger := log.WithComponent("retention").With().Int64(log.FieldClipID, c.ID).Logger()
	if c.Status == model.ClipProcessing {
		metrics.IncSweeper("retention", "skipped_processing")
		return false
	}
	for _, key := range []string{c.ClipKey, c.ThumbnailKey, c.SubtitleKey} {
		if key == "" {
			continue
		}
		if err := r.Blobs.Delete(ctx, key); err != nil && !errors.Is(err, blob.ErrNotFound) {
			metrics.IncSweeper("retention", "blob_error")
			logger.Warn().Err(err).Str(log.FieldObjectKey, key).Msg("failed to delete clip object, keeping row")
			return false
		}
	}
	if err := r.Store.DeleteClip(ctx, c.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		metrics.IncSweeper("retention", "db_error")
		logger.Warn().Err(err).Msg("failed to delete clip row")
		return false
	}
	metrics.IncSweeper("retention", "deleted")
	return true
}
