// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store is the relational system of record for videos, transcripts,
// sentences, subtitles, clips and quotas.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/vidlingo/internal/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrQuotaExceeded = errors.New("daily clip quota exceeded")
	// ErrStaleRun means the row moved on (watchdog reset or a newer run) since the caller's run began.
	ErrStaleRun = errors.New("pipeline run is no longer current")
)

// BeginResult is the outcome of the processing compare-and-set.
type BeginResult int

const (
	BeginStarted BeginResult = iota
	BeginAlreadyInProgress
	BeginNotFound
)

func (r BeginResult) String() string {
	switch r {
	case BeginStarted:
		return "started"
	case BeginAlreadyInProgress:
		return "already_in_progress"
	case BeginNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Store is what the pipeline and the trigger API need from the database.
// Every method commits its own transaction before returning.
type Store interface {
	CreateVideo(ctx context.Context, v *model.Video) (int64, error)
	GetVideo(ctx context.Context, id int64) (*model.Video, error)
	// BeginProcessing atomically moves a non-processing video to processing.
	// The returned token fences FinishProcessing against stale runs.
	BeginProcessing(ctx context.Context, id int64) (token int64, res BeginResult, err error)
	FinishProcessing(ctx context.Context, id, token int64, status model.VideoStatus, lastError string) error
	UpdateMediaInfo(ctx context.Context, id int64, info model.MediaInfo) error
	SetAudioKey(ctx context.Context, id int64, key string) error
	ListStaleProcessing(ctx context.Context, startedBefore time.Time) ([]int64, error)
	ResetStale(ctx context.Context, id int64, startedBefore time.Time, reason string) (bool, error)

	UpsertTranscript(ctx context.Context, t *model.Transcript) (int64, error)
	GetTranscriptByVideo(ctx context.Context, videoID int64) (*model.Transcript, error)
	ReplaceSentences(ctx context.Context, transcriptID int64, sentences []model.Sentence) ([]model.Sentence, error)
	ListSentences(ctx context.Context, videoID int64) ([]model.Sentence, error)

	UpsertSubtitle(ctx context.Context, s *model.Subtitle) error
	ListSubtitles(ctx context.Context, videoID int64) ([]model.Subtitle, error)

	CreateClip(ctx context.Context, c *model.Clip, maxClips int) (*model.Clip, error)
	GetClip(ctx context.Context, id int64) (*model.Clip, error)
	StartClip(ctx context.Context, id int64) (bool, error)
	CompleteClip(ctx context.Context, id int64, res model.ClipResult) error
	FailClip(ctx context.Context, id int64, message string) error
	ListClipsCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Clip, error)
	DeleteClip(ctx context.Context, id int64) error
	GetQuota(ctx context.Context, userID int64, day string, defaultMax int) (model.UserQuota, error)

	Close() error
}
