// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ManuGH/vidlingo/internal/model"
)

// UpsertSubtitle writes one language's subtitle row. Marking a row default
// clears the flag on the video's other subtitles in the same transaction.
func (s *SqliteStore) UpsertSubtitle(ctx context.Context, sub *model.Subtitle) error {
	if !sub.Source.IsValid() {
		return fmt.Errorf("upsert subtitle: invalid source %q", sub.Source)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if sub.IsDefault {
			if _, err := tx.ExecContext(ctx,
				"UPDATE subtitles SET is_default = 0 WHERE video_id = ? AND language <> ?",
				sub.VideoID, sub.Language); err != nil {
				return fmt.Errorf("clear default subtitle: %w", err)
			}
		}
		err := tx.QueryRowContext(ctx, `
			INSERT INTO subtitles (video_id, language, name, object_key, is_default, source, updated_at_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(video_id, language) DO UPDATE SET
				name = excluded.name,
				object_key = excluded.object_key,
				is_default = excluded.is_default,
				source = excluded.source,
				updated_at_ms = excluded.updated_at_ms
			RETURNING id`,
			sub.VideoID, sub.Language, sub.Name, sub.Key, boolInt(sub.IsDefault), string(sub.Source), s.nowMS(),
		).Scan(&sub.ID)
		if err != nil {
			return fmt.Errorf("upsert subtitle %d/%s: %w", sub.VideoID, sub.Language, err)
		}
		return nil
	})
}

func (s *SqliteStore) ListSubtitles(ctx context.Context, videoID int64) ([]model.Subtitle, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, video_id, language, name, object_key, is_default, source, updated_at_ms
		FROM subtitles WHERE video_id = ? ORDER BY language`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list subtitles of video %d: %w", videoID, err)
	}
	defer rows.Close()

	var out []model.Subtitle
	for rows.Next() {
		var (
			sub       model.Subtitle
			isDefault int
			source    string
			updatedMS int64
		)
		if err := rows.Scan(&sub.ID, &sub.VideoID, &sub.Language, &sub.Name, &sub.Key, &isDefault, &source, &updatedMS); err != nil {
			return nil, err
		}
		src, err := model.ParseSubtitleSource(source)
		if err != nil {
			return nil, err
		}
		sub.Source = src
		sub.IsDefault = isDefault == 1
		sub.UpdatedAt = fromMS(updatedMS)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
