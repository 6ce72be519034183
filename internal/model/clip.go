// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "time"

// Clip is a user-owned sub-video request.
// StartTime/EndTime hold the requested bounds until the pipeline resolves them.
type Clip struct {
	ID           int64
	UserID       int64
	VideoID      int64
	Title        string
	SearchPhrase string
	StartTime    *float64
	EndTime      *float64
	Status       ClipStatus
	ErrorMessage string
	ClipKey      string
	ThumbnailKey string
	SubtitleKey  string
	CreatedAt    time.Time
	CompletedAt  time.Time
}

// HasBounds reports whether both bounds are set.
func (c *Clip) HasBounds() bool {
	return c.StartTime != nil && c.EndTime != nil
}

// ClipResult is what a successful clip run persists.
type ClipResult struct {
	Start        float64
	End          float64
	ClipKey      string
	ThumbnailKey string
	SubtitleKey  string
}

// UserQuota is the per-user, per-day clip counter.
type UserQuota struct {
	UserID       int64
	Day          string // YYYY-MM-DD, UTC
	ClipsCreated int
	MaxClips     int
}

// Remaining clips for the day, never negative.
func (q UserQuota) Remaining() int {
	if q.ClipsCreated >= q.MaxClips {
		return 0
	}
	return q.MaxClips - q.ClipsCreated
}

// QuotaDay formats t as the calendar day key (UTC).
func QuotaDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
