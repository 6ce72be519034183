// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "time"

// Video is the aggregate the main pipeline drives.
type Video struct {
	ID           int64
	Title        string
	Level        string
	Language     string
	CategoryID   int64
	VideoKey     string
	ThumbnailKey string
	AudioKey     string
	Duration     float64 // seconds, 0 when unknown
	Resolution   string  // "1920x1080"
	Status       VideoStatus
	LastError    string
	// RunToken identifies the current processing run; it grows by one per start.
	RunToken int64

	ProcessingStartedAt time.Time
	PublishedAt         time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// MediaInfo is the subset persisted by the metadata stage.
type MediaInfo struct {
	Duration     float64
	Resolution   string
	ThumbnailKey string
}

// Word is one timed token from speech recognition.
type Word struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Segment is a speech-recognition segment, used for the first subtitle draft.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words,omitempty"`
}

// Transcript is the raw speech-to-text output of one video.
type Transcript struct {
	ID        int64
	VideoID   int64
	Language  string
	FullText  string
	Words     []Word
	Segments  []Segment
	Duration  float64
	Chunked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Sentence is one semantic chunk of a transcript.
type Sentence struct {
	ID           int64
	TranscriptID int64
	VideoID      int64
	Index        int
	Text         string
	Start        float64
	End          float64
	Words        []Word
}

// Duration of the sentence window in seconds.
func (s Sentence) Duration() float64 { return s.End - s.Start }

// Subtitle is one language's encoded subtitle file.
type Subtitle struct {
	ID        int64
	VideoID   int64
	Language  string
	Name      string
	Key       string
	IsDefault bool
	Source    SubtitleSource
	UpdatedAt time.Time
}
