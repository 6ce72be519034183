// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package pipeline drives videos through the main processing chain and clips
// through their sub-pipeline. It owns every status transition of both.
package pipeline

import (
	"errors"
	"time"

	"github.com/ManuGH/vidlingo/internal/model"
)

// Severity decides what a failed stage does to the run.
type Severity int

const (
	// SeverityFatal aborts the chain and reverts the video to draft.
	SeverityFatal Severity = iota
	// SeverityDegraded is logged; the run still publishes with reduced output.
	SeverityDegraded
	// SeverityOptional is logged; the stage's output is simply missing.
	SeverityOptional
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeverityDegraded:
		return "degraded"
	case SeverityOptional:
		return "optional"
	default:
		return "unknown"
	}
}

// Stage names a step of either pipeline. They double as metric labels.
type Stage string

const (
	StageMetadata      Stage = "metadata"
	StageAudio         Stage = "audio"
	StageTranscription Stage = "transcription"
	StageChunking      Stage = "chunking"
	StageTranslation   Stage = "translation"
	StageIndexing      Stage = "indexing"

	StageClipBounds   Stage = "clip_bounds"
	StageClipRender   Stage = "clip_render"
	StageClipUpload   Stage = "clip_upload"
	StageClipComplete Stage = "clip_complete"
)

// Pipeline labels.
const (
	PipelineMain = "main"
	PipelineClip = "clip"
)

// Stage outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// errSkipped marks a stage that had nothing to do (no translator, no index).
var errSkipped = errors.New("stage skipped")

// StageResult is what the orchestrator learns from one stage.
type StageResult struct {
	Stage    Stage
	Severity Severity
	Outcome  string
	Err      error
	Duration time.Duration
}

// Aborts reports whether the result ends the main chain.
func (r StageResult) Aborts() bool {
	return r.Err != nil && r.Severity == SeverityFatal
}

// LanguageResult is one translation job's outcome.
type LanguageResult struct {
	Language string
	Cues     int
	Key      string
	Attempts int
	Err      error
}

// RunState is passed from stage to stage of one main run. Each stage reads
// what earlier stages committed and records its own output here.
type RunState struct {
	Video *model.Video
	Token int64

	AudioKey     string
	TranscriptID int64
	Sentences    []model.Sentence
	Languages    []LanguageResult
	IndexedDocs  int

	Results []StageResult
}

// Succeeded lists the languages whose subtitle was written.
func (s *RunState) Succeeded() []string {
	var out []string
	for _, l := range s.Languages {
		if l.Err == nil {
			out = append(out, l.Language)
		}
	}
	return out
}

// Result returns the recorded result of stage, if it ran.
func (s *RunState) Result(stage Stage) (StageResult, bool) {
	for _, r := range s.Results {
		if r.Stage == stage {
			return r, true
		}
	}
	return StageResult{}, false
}

// EnqueueResult is the synchronous answer of the trigger entry points.
type EnqueueResult string

const (
	EnqueueStarted           EnqueueResult = "started"
	EnqueueAlreadyInProgress EnqueueResult = "already_in_progress"
	EnqueueNotFound          EnqueueResult = "not_found"
)
