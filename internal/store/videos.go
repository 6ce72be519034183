// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ManuGH/vidlingo/internal/model"
)

const videoColumns = `id, title, level, language, category_id, video_key, thumbnail_key, audio_key,
	duration, resolution, status, last_error, run_token, processing_started_at_ms, published_at_ms, created_at_ms, updated_at_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*model.Video, error) {
	var (
		v                                 model.Video
		status                            string
		startedMS, publishedMS, createdMS int64
		updatedMS                         int64
	)
	if err := row.Scan(&v.ID, &v.Title, &v.Level, &v.Language, &v.CategoryID, &v.VideoKey, &v.ThumbnailKey, &v.AudioKey,
		&v.Duration, &v.Resolution, &status, &v.LastError, &v.RunToken, &startedMS, &publishedMS, &createdMS, &updatedMS); err != nil {
		return nil, err
	}
	st, err := model.ParseVideoStatus(status)
	if err != nil {
		return nil, fmt.Errorf("video %d: %w", v.ID, err)
	}
	v.Status = st
	v.ProcessingStartedAt = fromMS(startedMS)
	v.PublishedAt = fromMS(publishedMS)
	v.CreatedAt = fromMS(createdMS)
	v.UpdatedAt = fromMS(updatedMS)
	return &v, nil
}

// CreateVideo inserts a draft video. The CRUD layer owns uploads; this exists for
// seeding and tests.
func (s *SqliteStore) CreateVideo(ctx context.Context, v *model.Video) (int64, error) {
	if v.VideoKey == "" {
		return 0, errors.New("create video: video key is required")
	}
	status := v.Status
	if status == "" {
		status = model.VideoDraft
	}
	if !status.IsValid() {
		return 0, fmt.Errorf("create video: invalid status %q", status)
	}
	lang := v.Language
	if lang == "" {
		lang = model.SourceLanguage.Code
	}
	now := s.nowMS()
	var id int64
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO videos (title, level, language, category_id, video_key, duration, resolution, status, created_at_ms, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		v.Title, v.Level, lang, v.CategoryID, v.VideoKey, v.Duration, v.Resolution, string(status), now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create video: %w", err)
	}
	return id, nil
}

func (s *SqliteStore) GetVideo(ctx context.Context, id int64) (*model.Video, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT "+videoColumns+" FROM videos WHERE id = ?", id)
	v, err := scanVideo(row)
	if err != nil {
		return nil, notFound(err, "video", id)
	}
	return v, nil
}

// processingSources renders the statuses allowed to enter processing as a SQL list.
func processingSources() string {
	src := model.VideoTransitions.Sources(model.VideoProcessing)
	quoted := make([]string, 0, len(src))
	for _, st := range src {
		quoted = append(quoted, "'"+string(st)+"'")
	}
	sort.Strings(quoted)
	return strings.Join(quoted, ", ")
}

// BeginProcessing is a single conditional UPDATE, so two concurrent triggers
// cannot both win. The follow-up read only classifies the loser. The token is
// a per-video run counter, independent of the staleness timestamp.
func (s *SqliteStore) BeginProcessing(ctx context.Context, id int64) (int64, BeginResult, error) {
	now := s.nowMS()
	var token int64
	err := s.DB.QueryRowContext(ctx, `
		UPDATE videos
		SET status = 'processing', run_token = run_token + 1, processing_started_at_ms = ?,
			last_error = '', updated_at_ms = ?
		WHERE id = ? AND status IN (`+processingSources()+`)
		RETURNING run_token`,
		now, now, id).Scan(&token)
	if err == nil {
		return token, BeginStarted, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("begin processing %d: %w", id, err)
	}

	var status string
	err = s.DB.QueryRowContext(ctx, "SELECT status FROM videos WHERE id = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, BeginNotFound, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("begin processing %d: %w", id, err)
	}
	if model.VideoStatus(status) == model.VideoProcessing {
		return 0, BeginAlreadyInProgress, nil
	}
	return 0, 0, fmt.Errorf("begin processing %d: %w", id, model.VideoTransitions.Check(model.VideoStatus(status), model.VideoProcessing))
}

// FinishProcessing moves a processing video to its final status, but only if
// token still identifies the current run.
func (s *SqliteStore) FinishProcessing(ctx context.Context, id, token int64, status model.VideoStatus, lastError string) error {
	if err := model.VideoTransitions.Check(model.VideoProcessing, status); err != nil {
		return err
	}
	now := s.nowMS()
	var publishedMS any
	if status == model.VideoPublished {
		publishedMS = now
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE videos
		SET status = ?, last_error = ?, processing_started_at_ms = 0,
			published_at_ms = COALESCE(?, published_at_ms), updated_at_ms = ?
		WHERE id = ? AND status = 'processing' AND run_token = ?`,
		string(status), lastError, publishedMS, now, id, token)
	if err != nil {
		return fmt.Errorf("finish processing %d: %w", id, err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("finish processing %d: %w", id, ErrStaleRun)
	}
	return nil
}

func (s *SqliteStore) UpdateMediaInfo(ctx context.Context, id int64, info model.MediaInfo) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE videos SET duration = ?, resolution = ?, thumbnail_key = ?, updated_at_ms = ? WHERE id = ?`,
		info.Duration, info.Resolution, info.ThumbnailKey, s.nowMS(), id)
	if err != nil {
		return fmt.Errorf("update media info %d: %w", id, err)
	}
	return expectOne(res, "video", id)
}

func (s *SqliteStore) SetAudioKey(ctx context.Context, id int64, key string) error {
	res, err := s.DB.ExecContext(ctx, "UPDATE videos SET audio_key = ?, updated_at_ms = ? WHERE id = ?", key, s.nowMS(), id)
	if err != nil {
		return fmt.Errorf("set audio key %d: %w", id, err)
	}
	return expectOne(res, "video", id)
}

func (s *SqliteStore) ListStaleProcessing(ctx context.Context, startedBefore time.Time) ([]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id FROM videos WHERE status = 'processing' AND processing_started_at_ms < ? ORDER BY id`,
		startedBefore.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list stale processing: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ResetStale reverts a stuck video to draft. It reports false if the run finished
// or restarted in the meantime.
func (s *SqliteStore) ResetStale(ctx context.Context, id int64, startedBefore time.Time, reason string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE videos
		SET status = 'draft', last_error = ?, processing_started_at_ms = 0, updated_at_ms = ?
		WHERE id = ? AND status = 'processing' AND processing_started_at_ms < ?`,
		reason, s.nowMS(), id, startedBefore.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("reset stale %d: %w", id, err)
	}
	n, err := affected(res)
	return n == 1, err
}

func expectOne(res sql.Result, what string, id int64) error {
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
