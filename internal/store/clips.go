// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/vidlingo/internal/model"
)

const clipColumns = `id, user_id, video_id, title, search_phrase, start_time, end_time, status, error_message,
	clip_key, thumbnail_key, subtitle_key, created_at_ms, completed_at_ms`

func scanClip(row rowScanner) (*model.Clip, error) {
	var (
		c                 model.Clip
		start, end        sql.NullFloat64
		status            string
		createdMS, doneMS int64
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.VideoID, &c.Title, &c.SearchPhrase, &start, &end, &status, &c.ErrorMessage,
		&c.ClipKey, &c.ThumbnailKey, &c.SubtitleKey, &createdMS, &doneMS); err != nil {
		return nil, err
	}
	st, err := model.ParseClipStatus(status)
	if err != nil {
		return nil, fmt.Errorf("clip %d: %w", c.ID, err)
	}
	c.Status = st
	if start.Valid {
		c.StartTime = &start.Float64
	}
	if end.Valid {
		c.EndTime = &end.Float64
	}
	c.CreatedAt = fromMS(createdMS)
	c.CompletedAt = fromMS(doneMS)
	return &c, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// CreateClip checks and increments the user's quota for today and inserts the
// pending clip, atomically. A rejected request leaves no trace besides the
// lazily created quota row.
func (s *SqliteStore) CreateClip(ctx context.Context, c *model.Clip, maxClips int) (*model.Clip, error) {
	now := s.now()
	day := model.QuotaDay(now)
	created := *c
	created.Status = model.ClipPending
	created.CreatedAt = now.UTC().Truncate(time.Millisecond)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT 1 FROM videos WHERE id = ?", c.VideoID).Scan(&exists); err != nil {
			return notFound(err, "video", c.VideoID)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_quotas (user_id, day, clips_created, max_clips) VALUES (?, ?, 0, ?)
			ON CONFLICT(user_id, day) DO UPDATE SET max_clips = excluded.max_clips`,
			c.UserID, day, maxClips); err != nil {
			return fmt.Errorf("ensure quota row: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE user_quotas SET clips_created = clips_created + 1
			WHERE user_id = ? AND day = ? AND clips_created < max_clips`, c.UserID, day)
		if err != nil {
			return fmt.Errorf("increment quota: %w", err)
		}
		n, err := affected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrQuotaExceeded
		}

		return tx.QueryRowContext(ctx, `
			INSERT INTO clips (user_id, video_id, title, search_phrase, start_time, end_time, status, created_at_ms)
			VALUES (?, ?, ?, ?, ?, ?, 'pending', ?)
			RETURNING id`,
			c.UserID, c.VideoID, c.Title, c.SearchPhrase, nullFloat(c.StartTime), nullFloat(c.EndTime), now.UnixMilli(),
		).Scan(&created.ID)
	})
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			// Persist the lazily created quota row even though the clip was rejected.
			_, _ = s.DB.ExecContext(ctx, `
				INSERT INTO user_quotas (user_id, day, clips_created, max_clips) VALUES (?, ?, 0, ?)
				ON CONFLICT(user_id, day) DO NOTHING`, c.UserID, day, maxClips)
			return nil, ErrQuotaExceeded
		}
		return nil, fmt.Errorf("create clip: %w", err)
	}
	return &created, nil
}

func (s *SqliteStore) GetClip(ctx context.Context, id int64) (*model.Clip, error) {
	c, err := scanClip(s.DB.QueryRowContext(ctx, "SELECT "+clipColumns+" FROM clips WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "clip", id)
	}
	return c, nil
}

// StartClip moves a pending or failed clip to processing. It returns false
// when the clip exists but is already processing or ready.
func (s *SqliteStore) StartClip(ctx context.Context, id int64) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE clips SET status = 'processing', error_message = '', completed_at_ms = 0
		WHERE id = ? AND status IN ('pending', 'failed')`, id)
	if err != nil {
		return false, fmt.Errorf("start clip %d: %w", id, err)
	}
	n, err := affected(res)
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	var exists int
	if err := s.DB.QueryRowContext(ctx, "SELECT 1 FROM clips WHERE id = ?", id).Scan(&exists); err != nil {
		return false, notFound(err, "clip", id)
	}
	return false, nil
}

// CompleteClip persists the resolved bounds and blob keys and marks the clip ready.
func (s *SqliteStore) CompleteClip(ctx context.Context, id int64, r model.ClipResult) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE clips SET status = 'ready', start_time = ?, end_time = ?, clip_key = ?, thumbnail_key = ?,
			subtitle_key = ?, error_message = '', completed_at_ms = ?
		WHERE id = ? AND status = 'processing'`,
		r.Start, r.End, r.ClipKey, r.ThumbnailKey, r.SubtitleKey, s.nowMS(), id)
	if err != nil {
		return fmt.Errorf("complete clip %d: %w", id, err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("complete clip %d: %w", id, ErrStaleRun)
	}
	return nil
}

// FailClip marks a processing clip failed. Blob keys are cleared so a failed
// clip never points at partial output.
func (s *SqliteStore) FailClip(ctx context.Context, id int64, message string) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE clips SET status = 'failed', error_message = ?, clip_key = '', thumbnail_key = '', subtitle_key = '',
			completed_at_ms = ?
		WHERE id = ? AND status = 'processing'`,
		message, s.nowMS(), id)
	if err != nil {
		return fmt.Errorf("fail clip %d: %w", id, err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("fail clip %d: %w", id, ErrStaleRun)
	}
	return nil
}

func (s *SqliteStore) ListClipsCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Clip, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		"SELECT "+clipColumns+" FROM clips WHERE created_at_ms < ? ORDER BY created_at_ms LIMIT ?",
		cutoff.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("list clips before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var out []*model.Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteClip removes the row. The quota counter is deliberately left untouched.
func (s *SqliteStore) DeleteClip(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM clips WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete clip %d: %w", id, err)
	}
	return expectOne(res, "clip", id)
}

func (s *SqliteStore) GetQuota(ctx context.Context, userID int64, day string, defaultMax int) (model.UserQuota, error) {
	q := model.UserQuota{UserID: userID, Day: day, MaxClips: defaultMax}
	err := s.DB.QueryRowContext(ctx,
		"SELECT clips_created, max_clips FROM user_quotas WHERE user_id = ? AND day = ?", userID, day,
	).Scan(&q.ClipsCreated, &q.MaxClips)
	if errors.Is(err, sql.ErrNoRows) {
		return q, nil
	}
	if err != nil {
		return q, fmt.Errorf("get quota %d/%s: %w", userID, day, err)
	}
	return q, nil
}
