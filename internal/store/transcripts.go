// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ManuGH/vidlingo/internal/model"
)

// UpsertTranscript writes the raw STT output, keyed by video. Re-transcribing
// clears the chunked flag until sentences are replaced again.
func (s *SqliteStore) UpsertTranscript(ctx context.Context, t *model.Transcript) (int64, error) {
	words, err := json.Marshal(nonNil(t.Words))
	if err != nil {
		return 0, fmt.Errorf("encode words: %w", err)
	}
	segments, err := json.Marshal(nonNil(t.Segments))
	if err != nil {
		return 0, fmt.Errorf("encode segments: %w", err)
	}
	now := s.nowMS()
	var id int64
	err = s.DB.QueryRowContext(ctx, `
		INSERT INTO transcripts (video_id, language, full_text, words_json, segments_json, duration, chunked, created_at_ms, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			language = excluded.language,
			full_text = excluded.full_text,
			words_json = excluded.words_json,
			segments_json = excluded.segments_json,
			duration = excluded.duration,
			chunked = 0,
			updated_at_ms = excluded.updated_at_ms
		RETURNING id`,
		t.VideoID, t.Language, t.FullText, string(words), string(segments), t.Duration, now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert transcript for video %d: %w", t.VideoID, err)
	}
	t.ID = id
	return id, nil
}

func (s *SqliteStore) GetTranscriptByVideo(ctx context.Context, videoID int64) (*model.Transcript, error) {
	var (
		t                   model.Transcript
		words, segments     string
		chunked             int
		createdMS, updateMS int64
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, video_id, language, full_text, words_json, segments_json, duration, chunked, created_at_ms, updated_at_ms
		FROM transcripts WHERE video_id = ?`, videoID,
	).Scan(&t.ID, &t.VideoID, &t.Language, &t.FullText, &words, &segments, &t.Duration, &chunked, &createdMS, &updateMS)
	if err != nil {
		return nil, notFound(err, "transcript for video", videoID)
	}
	if err := json.Unmarshal([]byte(words), &t.Words); err != nil {
		return nil, fmt.Errorf("decode transcript words: %w", err)
	}
	if err := json.Unmarshal([]byte(segments), &t.Segments); err != nil {
		return nil, fmt.Errorf("decode transcript segments: %w", err)
	}
	t.Chunked = chunked == 1
	t.CreatedAt = fromMS(createdMS)
	t.UpdatedAt = fromMS(updateMS)
	return &t, nil
}

// ReplaceSentences deletes every sentence of the transcript, inserts the new
// set renumbered 0..n-1 and flags the transcript chunked, in one transaction.
func (s *SqliteStore) ReplaceSentences(ctx context.Context, transcriptID int64, sentences []model.Sentence) ([]model.Sentence, error) {
	out := make([]model.Sentence, len(sentences))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var videoID int64
		if err := tx.QueryRowContext(ctx, "SELECT video_id FROM transcripts WHERE id = ?", transcriptID).Scan(&videoID); err != nil {
			return notFound(err, "transcript", transcriptID)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM transcript_sentences WHERE transcript_id = ?", transcriptID); err != nil {
			return fmt.Errorf("delete sentences: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transcript_sentences (transcript_id, video_id, sentence_index, text, start_time, end_time, words_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, sent := range sentences {
			words, err := json.Marshal(nonNil(sent.Words))
			if err != nil {
				return fmt.Errorf("encode sentence words: %w", err)
			}
			sent.Index = i
			sent.TranscriptID = transcriptID
			sent.VideoID = videoID
			if err := stmt.QueryRowContext(ctx, transcriptID, videoID, i, sent.Text, sent.Start, sent.End, string(words)).Scan(&sent.ID); err != nil {
				return fmt.Errorf("insert sentence %d: %w", i, err)
			}
			out[i] = sent
		}

		if _, err := tx.ExecContext(ctx, "UPDATE transcripts SET chunked = 1, updated_at_ms = ? WHERE id = ?", s.nowMS(), transcriptID); err != nil {
			return fmt.Errorf("flag transcript chunked: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replace sentences of transcript %d: %w", transcriptID, err)
	}
	return out, nil
}

// ListSentences returns the video's sentences ordered by index.
func (s *SqliteStore) ListSentences(ctx context.Context, videoID int64) ([]model.Sentence, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, transcript_id, video_id, sentence_index, text, start_time, end_time, words_json
		FROM transcript_sentences WHERE video_id = ? ORDER BY sentence_index`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list sentences of video %d: %w", videoID, err)
	}
	defer rows.Close()

	var out []model.Sentence
	for rows.Next() {
		var (
			sent  model.Sentence
			words string
		)
		if err := rows.Scan(&sent.ID, &sent.TranscriptID, &sent.VideoID, &sent.Index, &sent.Text, &sent.Start, &sent.End, &words); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(words), &sent.Words); err != nil {
			return nil, fmt.Errorf("decode sentence words: %w", err)
		}
		out = append(out, sent)
	}
	return out, rows.Err()
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
