// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	PipelineKey = "vidlingo.pipeline"
	StageKey    = "vidlingo.stage"
	SeverityKey = "vidlingo.severity"
	VideoIDKey  = "vidlingo.video_id"
	ClipIDKey   = "vidlingo.clip_id"
	LanguageKey = "vidlingo.language"
	AttemptKey  = "vidlingo.attempt"
	OutcomeKey  = "vidlingo.outcome"
)

// StageAttributes describes one pipeline stage span.
func StageAttributes(pipeline, stage, severity string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PipelineKey, pipeline),
		attribute.String(StageKey, stage),
		attribute.String(SeverityKey, severity),
	}
}

// VideoAttributes identifies the video a span works on.
func VideoAttributes(videoID int64) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.Int64(VideoIDKey, videoID)}
}

// ClipAttributes identifies the clip and its source video.
func ClipAttributes(clipID, videoID int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(ClipIDKey, clipID),
		attribute.Int64(VideoIDKey, videoID),
	}
}

// RecordError marks the span failed. A nil error leaves it untouched.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
