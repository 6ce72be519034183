// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldJobID         = "job_id"
	FieldTraceID       = "trace_id"
	FieldVideoID       = "video_id"
	FieldClipID        = "clip_id"
	FieldUserID        = "user_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPipeline  = "pipeline"
	FieldStage     = "stage"
	FieldAttempt   = "attempt"
	FieldSeverity  = "severity"
	FieldLanguage  = "language"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Storage fields
	FieldObjectKey = "object_key"
	FieldPath      = "path"
	FieldBaseURL   = "base_url"
)
