// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/vidlingo/internal/blob"
	"github.com/ManuGH/vidlingo/internal/clipadvisor"
	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/metrics"
	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/ManuGH/vidlingo/internal/store"
	"github.com/ManuGH/vidlingo/internal/subtitle"
	"github.com/ManuGH/vidlingo/internal/telemetry"
)

// clipThumbnailOffset is how far into the clip its thumbnail is taken.
const clipThumbnailOffset = 1.0

// clipRun carries one clip execution between its steps.
type clipRun struct {
	clip     *model.Clip
	video    *model.Video
	bounds   clipadvisor.Bounds
	source   clipadvisor.Source
	uploaded []string
}

// RunClip resolves the clip's bounds, renders it with thumbnail and subtitle,
// uploads the three objects and marks the clip ready. Any failure marks it
// failed with a bounded message; objects uploaded by this run are removed.
func (o *Orchestrator) RunClip(ctx context.Context, clipID int64) error {
	defer metrics.TrackInflight(PipelineClip)()

	ctx, span := o.tracer.Start(ctx, "pipeline.clip")
	defer span.End()

	logger := log.WithContext(ctx, log.WithComponent("pipeline")).With().
		Int64(log.FieldClipID, clipID).
		Str(log.FieldPipeline, PipelineClip).
		Logger()

	c, err := o.deps.Store.GetClip(ctx, clipID)
	if err != nil {
		telemetry.RecordError(span, err)
		metrics.IncPipelineRun(PipelineClip, "not_found")
		return err
	}
	span.SetAttributes(telemetry.ClipAttributes(c.ID, c.VideoID)...)
	if c.Status != model.ClipProcessing {
		metrics.IncPipelineRun(PipelineClip, "stale")
		logger.Warn().Str("status", c.Status.String()).Str(log.FieldEvent, "pipeline.stale").
			Msg("clip is not processing, dropping job")
		return fmt.Errorf("clip %d is %s: %w", clipID, c.Status, store.ErrStaleRun)
	}

	run := &clipRun{clip: c}
	logger.Info().Int64(log.FieldVideoID, c.VideoID).Str(log.FieldEvent, "pipeline.start").Msg("clip pipeline started")

	res, err := o.executeClip(ctx, run)
	if err != nil {
		telemetry.RecordError(span, err)
		o.discardUploads(ctx, run)
		return o.failClip(ctx, c.ID, err)
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	start := time.Now()
	if err := o.deps.Store.CompleteClip(wctx, c.ID, res); err != nil {
		metrics.ObserveStage(PipelineClip, string(StageClipComplete), OutcomeFailed, time.Since(start))
		telemetry.RecordError(span, err)
		o.discardUploads(ctx, run)
		if errors.Is(err, store.ErrStaleRun) {
			metrics.IncPipelineRun(PipelineClip, "stale")
			return err
		}
		return o.failClip(ctx, c.ID, err)
	}
	metrics.ObserveStage(PipelineClip, string(StageClipComplete), OutcomeOK, time.Since(start))
	metrics.IncPipelineRun(PipelineClip, model.ClipReady.String())
	span.SetAttributes(attribute.String(telemetry.OutcomeKey, model.ClipReady.String()))
	logger.Info().
		Float64("start", res.Start).
		Float64("end", res.End).
		Str("bounds_source", string(run.source)).
		Str(log.FieldEvent, "pipeline.done").
		Msg("clip ready")
	return nil
}

func (o *Orchestrator) executeClip(ctx context.Context, run *clipRun) (model.ClipResult, error) {
	var res model.ClipResult

	v, err := o.deps.Store.GetVideo(ctx, run.clip.VideoID)
	if err != nil {
		return res, fmt.Errorf("load source video: %w", err)
	}
	run.video = v

	var sentences []model.Sentence
	if err := o.clipStep(ctx, StageClipBounds, func(ctx context.Context) error {
		sentences, err = o.deps.Store.ListSentences(ctx, v.ID)
		if err != nil {
			return err
		}
		return o.resolveBounds(ctx, run, sentences)
	}); err != nil {
		return res, err
	}

	dir, cleanup, err := o.tempDir("clip")
	if err != nil {
		return res, err
	}
	defer cleanup()

	var clipPath, thumbPath string
	var vtt []byte
	if err := o.clipStep(ctx, StageClipRender, func(ctx context.Context) error {
		clipPath, thumbPath, vtt, err = o.renderClip(ctx, run, sentences, dir)
		return err
	}); err != nil {
		return res, err
	}

	if err := o.clipStep(ctx, StageClipUpload, func(ctx context.Context) error {
		return o.uploadClip(ctx, run, clipPath, thumbPath, vtt, &res)
	}); err != nil {
		return res, err
	}

	res.Start, res.End = run.bounds.Start, run.bounds.End
	return res, nil
}

// clipStep times and traces one step of the clip run.
func (o *Orchestrator) clipStep(ctx context.Context, stage Stage, fn func(ctx context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "stage."+string(stage),
		trace.WithAttributes(telemetry.StageAttributes(PipelineClip, string(stage), SeverityFatal.String())...))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
		telemetry.RecordError(span, err)
	}
	metrics.ObserveStage(PipelineClip, string(stage), outcome, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return nil
}

// resolveBounds uses explicit bounds when the request carried them, otherwise
// the advisor with its deterministic fallback.
func (o *Orchestrator) resolveBounds(ctx context.Context, run *clipRun, sentences []model.Sentence) error {
	c := run.clip
	if c.HasBounds() {
		if err := clipadvisor.ValidateExplicit(*c.StartTime, *c.EndTime, run.video.Duration); err != nil {
			return err
		}
		run.bounds = clipadvisor.Bounds{Start: *c.StartTime, End: *c.EndTime}
		run.source = clipadvisor.SourceExplicit
		return nil
	}
	run.bounds, run.source = clipadvisor.Resolve(ctx, o.deps.Advisor, sentences, c.SearchPhrase)
	if d := run.video.Duration; d > 0 && run.bounds.Start >= d {
		return fmt.Errorf("%w: start %.3f beyond source duration %.3f", clipadvisor.ErrInvalidBounds, run.bounds.Start, d)
	}
	return nil
}

// renderClip cuts the clip, grabs its thumbnail and slices the English
// subtitle. vtt is nil when the video has no sentences in range.
func (o *Orchestrator) renderClip(ctx context.Context, run *clipRun, sentences []model.Sentence, dir string) (string, string, []byte, error) {
	src, err := o.downloadSource(ctx, run.video, dir)
	if err != nil {
		return "", "", nil, err
	}
	clipPath := filepath.Join(dir, "clip.mp4")
	b := run.bounds
	if err := o.deps.Media.Cut(ctx, src, clipPath, b.Start, b.Duration()); err != nil {
		return "", "", nil, err
	}
	thumbPath := filepath.Join(dir, "clip.jpg")
	if err := o.deps.Media.Thumbnail(ctx, clipPath, thumbPath, min(clipThumbnailOffset, b.Duration()/2)); err != nil {
		return "", "", nil, err
	}

	var vtt []byte
	if cues := subtitle.SliceForClip(subtitle.FromSentences(sentences), b.Start, b.End); len(cues) > 0 {
		vtt = subtitle.EncodeVTT(cues)
	}
	return clipPath, thumbPath, vtt, nil
}

func (o *Orchestrator) uploadClip(ctx context.Context, run *clipRun, clipPath, thumbPath string, vtt []byte, res *model.ClipResult) error {
	id := run.clip.ID

	key := blob.ClipKey(id)
	if err := o.deps.Blobs.PutFile(ctx, key, clipPath, blob.ContentTypeMP4); err != nil {
		return fmt.Errorf("upload clip: %w", err)
	}
	run.uploaded = append(run.uploaded, key)
	res.ClipKey = key

	key = blob.ClipThumbnailKey(id)
	if err := o.deps.Blobs.PutFile(ctx, key, thumbPath, blob.ContentTypeJPEG); err != nil {
		return fmt.Errorf("upload clip thumbnail: %w", err)
	}
	run.uploaded = append(run.uploaded, key)
	res.ThumbnailKey = key

	if vtt == nil {
		return nil
	}
	key = blob.ClipSubtitleKey(id)
	if err := o.deps.Blobs.Put(ctx, key, bytes.NewReader(vtt), int64(len(vtt)), blob.ContentTypeVTT); err != nil {
		return fmt.Errorf("upload clip subtitle: %w", err)
	}
	run.uploaded = append(run.uploaded, key)
	res.SubtitleKey = key
	return nil
}

// discardUploads removes what this run uploaded, best-effort.
func (o *Orchestrator) discardUploads(ctx context.Context, run *clipRun) {
	if len(run.uploaded) == 0 {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	logger := log.WithContext(ctx, log.WithComponent("pipeline"))
	for _, key := range run.uploaded {
		if err := o.deps.Blobs.Delete(dctx, key); err != nil {
			logger.Warn().Err(err).Str(log.FieldObjectKey, key).Msg("failed to remove partial clip object")
		}
	}
	run.uploaded = nil
}

// failClip persists the failure and returns cause to the caller.
func (o *Orchestrator) failClip(ctx context.Context, clipID int64, cause error) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	msg := TruncateMessage(cause.Error(), o.opts.ClipErrorMax)
	if err := o.deps.Store.FailClip(wctx, clipID, msg); err != nil {
		metrics.IncPipelineRun(PipelineClip, "error")
		return errors.Join(cause, fmt.Errorf("fail clip %d: %w", clipID, err))
	}
	metrics.IncPipelineRun(PipelineClip, model.ClipFailed.String())
	logger := log.WithComponentFromContext(ctx, "pipeline")
	logger.Warn().
		Err(cause).
		Int64(log.FieldClipID, clipID).
		Str(log.FieldNewState, model.ClipFailed.String()).
		Str(log.FieldEvent, "clip.failed").
		Msg("clip failed")
	return cause
}

// TruncateMessage caps msg at limit runes.
func TruncateMessage(msg string, limit int) string {
	if limit <= 0 {
		return msg
	}
	r := []rune(msg)
	if len(r) <= limit {
		return msg
	}
	return string(r[:limit])
}
