// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model provides the persisted domain types and their closed enumerations.
package model

import (
	"fmt"

	"github.com/ManuGH/vidlingo/internal/fsm"
)

// VideoStatus is the single source of truth for whether a pipeline run is in flight.
type VideoStatus string

const (
	VideoDraft      VideoStatus = "draft"
	VideoProcessing VideoStatus = "processing"
	VideoPublished  VideoStatus = "published"
	VideoArchived   VideoStatus = "archived"
)

func (s VideoStatus) String() string { return string(s) }

// IsValid checks whether the status is one of the defined constants.
func (s VideoStatus) IsValid() bool {
	switch s {
	case VideoDraft, VideoProcessing, VideoPublished, VideoArchived:
		return true
	default:
		return false
	}
}

// ParseVideoStatus maps a stored value onto the enum. Matching is exact.
func ParseVideoStatus(v string) (VideoStatus, error) {
	s := VideoStatus(v)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown video status %q", v)
	}
	return s, nil
}

// VideoTransitions lists every status change the pipeline and admin edits may perform.
var VideoTransitions = fsm.MustTable("video",
	fsm.Edge[VideoStatus]{From: VideoDraft, To: VideoProcessing},
	fsm.Edge[VideoStatus]{From: VideoPublished, To: VideoProcessing},
	fsm.Edge[VideoStatus]{From: VideoArchived, To: VideoProcessing},
	fsm.Edge[VideoStatus]{From: VideoProcessing, To: VideoPublished},
	fsm.Edge[VideoStatus]{From: VideoProcessing, To: VideoDraft},
	fsm.Edge[VideoStatus]{From: VideoDraft, To: VideoArchived},
	fsm.Edge[VideoStatus]{From: VideoPublished, To: VideoArchived},
	fsm.Edge[VideoStatus]{From: VideoArchived, To: VideoDraft},
)

// ClipStatus tracks a clip request through its sub-pipeline.
type ClipStatus string

const (
	ClipPending    ClipStatus = "pending"
	ClipProcessing ClipStatus = "processing"
	ClipReady      ClipStatus = "ready"
	ClipFailed     ClipStatus = "failed"
)

func (s ClipStatus) String() string { return string(s) }

// IsValid checks whether the status is one of the defined constants.
func (s ClipStatus) IsValid() bool {
	switch s {
	case ClipPending, ClipProcessing, ClipReady, ClipFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the clip sub-pipeline has finished.
func (s ClipStatus) IsTerminal() bool {
	switch s {
	case ClipReady, ClipFailed:
		return true
	default:
		return false
	}
}

// ParseClipStatus maps a stored value onto the enum. Matching is exact.
func ParseClipStatus(v string) (ClipStatus, error) {
	s := ClipStatus(v)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown clip status %q", v)
	}
	return s, nil
}

// ClipTransitions lists the clip sub-pipeline edges. Failed clips may be re-run.
var ClipTransitions = fsm.MustTable("clip",
	fsm.Edge[ClipStatus]{From: ClipPending, To: ClipProcessing},
	fsm.Edge[ClipStatus]{From: ClipFailed, To: ClipProcessing},
	fsm.Edge[ClipStatus]{From: ClipProcessing, To: ClipReady},
	fsm.Edge[ClipStatus]{From: ClipProcessing, To: ClipFailed},
)

// SubtitleSource tags where a subtitle file came from.
type SubtitleSource string

const (
	SourceManual      SubtitleSource = "manual"
	SourceAIGenerated SubtitleSource = "ai_generated"
	SourceImported    SubtitleSource = "imported"
)

// IsValid checks whether the source is one of the defined constants.
func (s SubtitleSource) IsValid() bool {
	switch s {
	case SourceManual, SourceAIGenerated, SourceImported:
		return true
	default:
		return false
	}
}

// ParseSubtitleSource maps a stored value onto the enum.
func ParseSubtitleSource(v string) (SubtitleSource, error) {
	s := SubtitleSource(v)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown subtitle source %q", v)
	}
	return s, nil
}

// Tier is the account plan that decides the daily clip cap.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierAdmin   Tier = "admin"
)

// ParseTier maps a header or stored value onto the enum. Unknown values are free.
func ParseTier(v string) Tier {
	switch Tier(v) {
	case TierPremium:
		return TierPremium
	case TierAdmin:
		return TierAdmin
	default:
		return TierFree
	}
}
