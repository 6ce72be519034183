// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package search keeps one full-text document per transcript sentence.
package search

import (
	"context"
	"errors"
	"strconv"

	"github.com/ManuGH/vidlingo/internal/model"
)

// DefaultIndex is the index holding sentence documents.
const DefaultIndex = "video_transcripts"

// ErrUnavailable means the search engine could not be reached. The indexing
// stage treats it as a capability loss, not a failure.
var ErrUnavailable = errors.New("search: engine unavailable")

// Document is one sentence as stored in the index.
type Document struct {
	VideoID       int64   `json:"video_id"`
	SentenceID    int64   `json:"sentence_id"`
	SentenceIndex int     `json:"sentence_index"`
	Text          string  `json:"text"`
	StartTime     float64 `json:"start_time"`
	EndTime       float64 `json:"end_time"`
	VideoTitle    string  `json:"video_title"`
	VideoLevel    string  `json:"video_level,omitempty"`
	VideoLanguage string  `json:"video_language,omitempty"`
	CategoryID    int64   `json:"category_id,omitempty"`
}

// DocID is deterministic so a re-index overwrites instead of duplicating.
func (d Document) DocID() string {
	return strconv.FormatInt(d.VideoID, 10) + "_" + strconv.FormatInt(d.SentenceID, 10)
}

// Documents builds the index documents of a video.
func Documents(v *model.Video, sentences []model.Sentence) []Document {
	docs := make([]Document, len(sentences))
	for i, s := range sentences {
		docs[i] = Document{
			VideoID:       v.ID,
			SentenceID:    s.ID,
			SentenceIndex: s.Index,
			Text:          s.Text,
			StartTime:     s.Start,
			EndTime:       s.End,
			VideoTitle:    v.Title,
			VideoLevel:    v.Level,
			VideoLanguage: v.Language,
			CategoryID:    v.CategoryID,
		}
	}
	return docs
}

// Indexer replaces a video's documents wholesale.
type Indexer interface {
	// ReindexVideo removes every document of videoID, then inserts docs.
	ReindexVideo(ctx context.Context, videoID int64, docs []Document) (int, error)
	DeleteVideo(ctx context.Context, videoID int64) error
}

// Noop is used when no search engine is configured.
type Noop struct{}

func (Noop) ReindexVideo(context.Context, int64, []Document) (int, error) { return 0, ErrUnavailable }
func (Noop) DeleteVideo(context.Context, int64) error                      { return nil }
