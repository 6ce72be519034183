// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import "github.com/ManuGH/vidlingo/internal/persistence/sqlite"

var migrations = []sqlite.Migration{
	{Version: 1, SQL: `
	CREATE TABLE IF NOT EXISTS videos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL DEFAULT '',
		level TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT 'en',
		category_id INTEGER NOT NULL DEFAULT 0,
		video_key TEXT NOT NULL,
		thumbnail_key TEXT NOT NULL DEFAULT '',
		audio_key TEXT NOT NULL DEFAULT '',
		duration REAL NOT NULL DEFAULT 0,
		resolution TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft'
			CHECK (status IN ('draft', 'processing', 'published', 'archived')),
		last_error TEXT NOT NULL DEFAULT '',
		processing_started_at_ms INTEGER NOT NULL DEFAULT 0,
		published_at_ms INTEGER NOT NULL DEFAULT 0,
		created_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_videos_status ON videos(status, processing_started_at_ms);

	CREATE TABLE IF NOT EXISTS transcripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		video_id INTEGER NOT NULL UNIQUE REFERENCES videos(id) ON DELETE CASCADE,
		language TEXT NOT NULL,
		full_text TEXT NOT NULL,
		words_json TEXT NOT NULL,
		segments_json TEXT NOT NULL,
		duration REAL NOT NULL DEFAULT 0,
		chunked INTEGER NOT NULL DEFAULT 0,
		created_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transcript_sentences (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transcript_id INTEGER NOT NULL REFERENCES transcripts(id) ON DELETE CASCADE,
		video_id INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		sentence_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		start_time REAL NOT NULL,
		end_time REAL NOT NULL,
		words_json TEXT NOT NULL DEFAULT '[]',
		UNIQUE (transcript_id, sentence_index)
	);
	CREATE INDEX IF NOT EXISTS idx_sentences_video ON transcript_sentences(video_id, sentence_index);

	CREATE TABLE IF NOT EXISTS subtitles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		video_id INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		language TEXT NOT NULL,
		name TEXT NOT NULL,
		object_key TEXT NOT NULL,
		is_default INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL CHECK (source IN ('manual', 'ai_generated', 'imported')),
		updated_at_ms INTEGER NOT NULL,
		UNIQUE (video_id, language)
	);

	CREATE TABLE IF NOT EXISTS clips (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		video_id INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		title TEXT NOT NULL DEFAULT '',
		search_phrase TEXT NOT NULL DEFAULT '',
		start_time REAL,
		end_time REAL,
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'processing', 'ready', 'failed')),
		error_message TEXT NOT NULL DEFAULT '',
		clip_key TEXT NOT NULL DEFAULT '',
		thumbnail_key TEXT NOT NULL DEFAULT '',
		subtitle_key TEXT NOT NULL DEFAULT '',
		created_at_ms INTEGER NOT NULL,
		completed_at_ms INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_clips_created ON clips(created_at_ms);

	CREATE TABLE IF NOT EXISTS user_quotas (
		user_id INTEGER NOT NULL,
		day TEXT NOT NULL,
		clips_created INTEGER NOT NULL DEFAULT 0,
		max_clips INTEGER NOT NULL,
		PRIMARY KEY (user_id, day)
	);
	`},
	{Version: 2, SQL: `
	ALTER TABLE videos ADD COLUMN run_token INTEGER NOT NULL DEFAULT 0;
	`},
}
