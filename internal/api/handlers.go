// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/vidlingo/internal/api/middleware"
	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/ManuGH/vidlingo/internal/pipeline"
)

const (
	headerUserTier = "X-User-Tier"
	maxBodyBytes   = 64 << 10
)

type enqueueResponse struct {
	Status  pipeline.EnqueueResult `json:"status"`
	VideoID int64                  `json:"video_id,omitempty"`
	ClipID  int64                  `json:"clip_id,omitempty"`
}

type createClipRequest struct {
	VideoID      int64    `json:"video_id"`
	Title        string   `json:"title"`
	SearchPhrase string   `json:"search_phrase"`
	StartTime    *float64 `json:"start_time"`
	EndTime      *float64 `json:"end_time"`
}

type clipView struct {
	ID           int64      `json:"id"`
	VideoID      int64      `json:"video_id"`
	Title        string     `json:"title,omitempty"`
	SearchPhrase string     `json:"search_phrase,omitempty"`
	Status       string     `json:"status"`
	StartTime    *float64   `json:"start_time"`
	EndTime      *float64   `json:"end_time"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ClipKey      string     `json:"clip_key,omitempty"`
	ThumbnailKey string     `json:"thumbnail_key,omitempty"`
	SubtitleKey  string     `json:"subtitle_key,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func newClipView(c *model.Clip) clipView {
	v := clipView{
		ID:           c.ID,
		VideoID:      c.VideoID,
		Title:        c.Title,
		SearchPhrase: c.SearchPhrase,
		Status:       c.Status.String(),
		StartTime:    c.StartTime,
		EndTime:      c.EndTime,
		ErrorMessage: c.ErrorMessage,
		ClipKey:      c.ClipKey,
		ThumbnailKey: c.ThumbnailKey,
		SubtitleKey:  c.SubtitleKey,
		CreatedAt:    c.CreatedAt,
	}
	if !c.CompletedAt.IsZero() {
		t := c.CompletedAt
		v.CompletedAt = &t
	}
	return v
}

type quotaView struct {
	Day          string `json:"day"`
	ClipsCreated int    `json:"clips_created"`
	MaxClips     int    `json:"max_clips"`
	Remaining    int    `json:"remaining"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEnqueueVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := s.svc.EnqueueMainPipeline(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeEnqueue(w, r, res, enqueueResponse{Status: res, VideoID: id})
}

func (s *Server) handleEnqueueClip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := s.svc.EnqueueClipPipeline(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeEnqueue(w, r, res, enqueueResponse{Status: res, ClipID: id})
}

func writeEnqueue(w http.ResponseWriter, r *http.Request, res pipeline.EnqueueResult, body enqueueResponse) {
	switch res {
	case pipeline.EnqueueStarted:
		writeJSON(w, http.StatusAccepted, body)
	case pipeline.EnqueueAlreadyInProgress:
		writeJSON(w, http.StatusConflict, body)
	case pipeline.EnqueueNotFound:
		writeProblem(w, r, http.StatusNotFound, "not_found", "")
	default:
		writeProblem(w, r, http.StatusInternalServerError, "internal_error", "")
	}
}

func (s *Server) handleCreateClip(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var body createClipRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	clip, res, err := s.svc.CreateClip(r.Context(), pipeline.ClipRequest{
		UserID:       userID,
		Tier:         model.ParseTier(r.Header.Get(headerUserTier)),
		VideoID:      body.VideoID,
		Title:        body.Title,
		SearchPhrase: body.SearchPhrase,
		Start:        body.StartTime,
		End:          body.EndTime,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusCreated
	if res != pipeline.EnqueueStarted {
		code = http.StatusAccepted
	}
	writeJSON(w, code, newClipView(clip))
}

func (s *Server) handleGetClip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	clip, err := s.clips.GetClip(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newClipView(clip))
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	q, err := s.svc.UserQuota(r.Context(), userID, model.ParseTier(r.Header.Get(headerUserTier)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotaView{
		Day:          q.Day,
		ClipsCreated: q.ClipsCreated,
		MaxClips:     q.MaxClips,
		Remaining:    q.Remaining(),
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return 0, false
	}
	return id, true
}

func callerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get(middleware.HeaderUserID)
	if raw == "" {
		writeProblem(w, r, http.StatusBadRequest, "invalid_request", "missing "+middleware.HeaderUserID)
		return 0, false
	}
	id, err := parseID(raw)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return 0, false
	}
	return id, true
}

var errBadID = errors.New("id must be a positive integer")

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", errBadID, raw)
	}
	return id, nil
}
