// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/vidlingo/internal/clipadvisor"
	"github.com/ManuGH/vidlingo/internal/config"
	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/metrics"
	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/ManuGH/vidlingo/internal/queue"
	"github.com/ManuGH/vidlingo/internal/store"
)

// Service is the trigger surface: it flips status synchronously and hands
// the run to the queue.
type Service struct {
	Store store.Store
	Queue queue.Queue
	// Quota returns the current per-tier caps; it is read per request so a
	// config reload applies without restart.
	Quota func() config.QuotaConfig
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func newCorrelationID(ctx context.Context) string {
	if id := log.CorrelationIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

// EnqueueMainPipeline moves the video to processing and schedules the run.
// A failed status write aborts before anything is scheduled.
func (s *Service) EnqueueMainPipeline(ctx context.Context, videoID int64) (EnqueueResult, error) {
	token, res, err := s.Store.BeginProcessing(ctx, videoID)
	if err != nil {
		metrics.IncEnqueue(PipelineMain, "error")
		return "", err
	}
	switch res {
	case store.BeginNotFound:
		metrics.IncEnqueue(PipelineMain, string(EnqueueNotFound))
		return EnqueueNotFound, nil
	case store.BeginAlreadyInProgress:
		metrics.IncEnqueue(PipelineMain, string(EnqueueAlreadyInProgress))
		return EnqueueAlreadyInProgress, nil
	}

	job := queue.Job{
		Kind:          queue.KindMain,
		ID:            videoID,
		Token:         token,
		CorrelationID: newCorrelationID(ctx),
		EnqueuedAt:    s.now().UTC(),
	}
	if err := s.Queue.Publish(ctx, job); err != nil {
		metrics.IncEnqueue(PipelineMain, "error")
		cause := fmt.Errorf("schedule pipeline: %w", err)
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
		defer cancel()
		if ferr := s.Store.FinishProcessing(rctx, videoID, token, model.VideoDraft, cause.Error()); ferr != nil {
			return "", errors.Join(cause, ferr)
		}
		return "", cause
	}

	metrics.IncEnqueue(PipelineMain, string(EnqueueStarted))
	logger := log.WithComponentFromContext(ctx, "pipeline")
	logger.Info().
		Int64(log.FieldVideoID, videoID).
		Str(log.FieldCorrelationID, job.CorrelationID).
		Str(log.FieldEvent, "pipeline.enqueued").
		Msg("main pipeline scheduled")
	return EnqueueStarted, nil
}

// EnqueueClipPipeline moves a pending or failed clip to processing and
// schedules it. A clip already processing or ready reports already_in_progress.
func (s *Service) EnqueueClipPipeline(ctx context.Context, clipID int64) (EnqueueResult, error) {
	ok, err := s.Store.StartClip(ctx, clipID)
	if errors.Is(err, store.ErrNotFound) {
		metrics.IncEnqueue(PipelineClip, string(EnqueueNotFound))
		return EnqueueNotFound, nil
	}
	if err != nil {
		metrics.IncEnqueue(PipelineClip, "error")
		return "", err
	}
	if !ok {
		metrics.IncEnqueue(PipelineClip, string(EnqueueAlreadyInProgress))
		return EnqueueAlreadyInProgress, nil
	}

	job := queue.Job{
		Kind:          queue.KindClip,
		ID:            clipID,
		CorrelationID: newCorrelationID(ctx),
		EnqueuedAt:    s.now().UTC(),
	}
	if err := s.Queue.Publish(ctx, job); err != nil {
		metrics.IncEnqueue(PipelineClip, "error")
		cause := fmt.Errorf("schedule clip: %w", err)
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
		defer cancel()
		if ferr := s.Store.FailClip(rctx, clipID, cause.Error()); ferr != nil {
			return "", errors.Join(cause, ferr)
		}
		return "", cause
	}

	metrics.IncEnqueue(PipelineClip, string(EnqueueStarted))
	logger := log.WithComponentFromContext(ctx, "pipeline")
	logger.Info().
		Int64(log.FieldClipID, clipID).
		Str(log.FieldCorrelationID, job.CorrelationID).
		Str(log.FieldEvent, "pipeline.enqueued").
		Msg("clip pipeline scheduled")
	return EnqueueStarted, nil
}

// ClipRequest is a user's request for a new clip. Start and End are either
// both set or both nil; without them the bounds come from SearchPhrase.
type ClipRequest struct {
	UserID       int64
	Tier         model.Tier
	VideoID      int64
	Title        string
	SearchPhrase string
	Start        *float64
	End          *float64
}

// ErrInvalidRequest wraps rejected clip requests.
var ErrInvalidRequest = errors.New("invalid clip request")

func (r ClipRequest) validate() error {
	if r.VideoID <= 0 {
		return fmt.Errorf("%w: video id is required", ErrInvalidRequest)
	}
	if (r.Start == nil) != (r.End == nil) {
		return fmt.Errorf("%w: start and end must be given together", ErrInvalidRequest)
	}
	if r.Start != nil {
		if err := clipadvisor.ValidateExplicit(*r.Start, *r.End, 0); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil
	}
	if r.SearchPhrase == "" {
		return fmt.Errorf("%w: search phrase or bounds required", ErrInvalidRequest)
	}
	return nil
}

// QuotaCap is the daily clip cap of tier.
func QuotaCap(q config.QuotaConfig, tier model.Tier) int {
	switch tier {
	case model.TierPremium:
		return q.Premium
	case model.TierAdmin:
		return q.Admin
	default:
		return q.Free
	}
}

func (s *Service) quota() config.QuotaConfig {
	if s.Quota != nil {
		return s.Quota()
	}
	return config.Defaults().Quota
}

// CreateClip records the clip against the user's daily quota and schedules
// it. store.ErrQuotaExceeded is returned before anything is enqueued.
func (s *Service) CreateClip(ctx context.Context, req ClipRequest) (*model.Clip, EnqueueResult, error) {
	if err := req.validate(); err != nil {
		return nil, "", err
	}
	clip, err := s.Store.CreateClip(ctx, &model.Clip{
		UserID:       req.UserID,
		VideoID:      req.VideoID,
		Title:        req.Title,
		SearchPhrase: req.SearchPhrase,
		StartTime:    req.Start,
		EndTime:      req.End,
	}, QuotaCap(s.quota(), req.Tier))
	if err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			metrics.IncEnqueue(PipelineClip, "quota_exceeded")
		}
		return nil, "", err
	}

	res, err := s.EnqueueClipPipeline(ctx, clip.ID)
	if err != nil {
		return clip, "", err
	}
	if res == EnqueueStarted {
		clip.Status = model.ClipProcessing
	}
	return clip, res, nil
}

// UserQuota reports the user's usage for the current day.
func (s *Service) UserQuota(ctx context.Context, userID int64, tier model.Tier) (model.UserQuota, error) {
	return s.Store.GetQuota(ctx, userID, model.QuotaDay(s.now()), QuotaCap(s.quota(), tier))
}
