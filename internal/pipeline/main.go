// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/metrics"
	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/ManuGH/vidlingo/internal/store"
	"github.com/ManuGH/vidlingo/internal/telemetry"
)

// finishTimeout bounds the final status write, which runs even after the
// run's context ended.
const finishTimeout = 10 * time.Second

// RunMain drives one video from processing to published or back to draft.
// token is the value BeginProcessing returned; the final write is dropped
// when the row has moved on since.
func (o *Orchestrator) RunMain(ctx context.Context, videoID, token int64) (*RunState, error) {
	defer o.track(videoID)()
	defer metrics.TrackInflight(PipelineMain)()

	ctx, span := o.tracer.Start(ctx, "pipeline.main", trace.WithAttributes(telemetry.VideoAttributes(videoID)...))
	defer span.End()

	logger := log.WithContext(ctx, log.WithComponent("pipeline")).With().
		Int64(log.FieldVideoID, videoID).
		Str(log.FieldPipeline, PipelineMain).
		Logger()

	v, err := o.deps.Store.GetVideo(ctx, videoID)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, store.ErrNotFound) {
			metrics.IncPipelineRun(PipelineMain, "not_found")
			return nil, err
		}
		return nil, o.finish(ctx, videoID, token, model.VideoDraft, fmt.Errorf("load video: %w", err))
	}
	if err := currentRun(v, token); err != nil {
		metrics.IncPipelineRun(PipelineMain, "stale")
		logger.Warn().Err(err).Str("status", v.Status.String()).Str(log.FieldEvent, "pipeline.stale").
			Msg("run superseded, dropping job")
		return nil, err
	}

	st := &RunState{Video: v, Token: token}
	logger.Info().Str(log.FieldEvent, "pipeline.start").Msg("main pipeline started")

	o.enrichMetadata(ctx, st)

	for _, spec := range o.mainStages() {
		if err := o.stillCurrent(ctx, videoID, token); err != nil {
			metrics.IncPipelineRun(PipelineMain, "stale")
			logger.Warn().Err(err).Str(log.FieldStage, string(spec.name)).Str(log.FieldEvent, "pipeline.stale").
				Msg("run superseded, stopping")
			return st, err
		}
		res := o.runStage(ctx, st, spec)
		if res.Aborts() {
			err := fmt.Errorf("%s: %w", res.Stage, res.Err)
			telemetry.RecordError(span, err)
			span.SetAttributes(attribute.String(telemetry.OutcomeKey, "draft"))
			return st, o.finish(ctx, videoID, token, model.VideoDraft, err)
		}
	}

	if err := ctx.Err(); err != nil {
		// The chain finished only because later stages gave up on a dead context.
		span.SetAttributes(attribute.String(telemetry.OutcomeKey, "draft"))
		return st, o.finish(ctx, videoID, token, model.VideoDraft, fmt.Errorf("pipeline interrupted: %w", err))
	}

	span.SetAttributes(attribute.String(telemetry.OutcomeKey, "published"))
	logger.Info().
		Int("sentences", len(st.Sentences)).
		Strs("languages", st.Succeeded()).
		Int("indexed", st.IndexedDocs).
		Str(log.FieldEvent, "pipeline.done").
		Msg("main pipeline finished")
	return st, o.finish(ctx, videoID, token, model.VideoPublished, nil)
}

// currentRun reports ErrStaleRun unless v is processing under token.
func currentRun(v *model.Video, token int64) error {
	if v.Status != model.VideoProcessing {
		return fmt.Errorf("video %d is %s: %w", v.ID, v.Status, store.ErrStaleRun)
	}
	if v.RunToken != token {
		return fmt.Errorf("video %d run %d superseded by %d: %w", v.ID, token, v.RunToken, store.ErrStaleRun)
	}
	return nil
}

// stillCurrent re-reads the row between stages. Other read errors are left to
// the next stage to surface.
func (o *Orchestrator) stillCurrent(ctx context.Context, videoID, token int64) error {
	v, err := o.deps.Store.GetVideo(ctx, videoID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("video %d: %w", videoID, store.ErrStaleRun)
	case err != nil:
		return nil
	}
	return currentRun(v, token)
}

// finish writes the run's final status. cause is persisted as last_error and
// returned to the caller.
func (o *Orchestrator) finish(ctx context.Context, videoID, token int64, status model.VideoStatus, cause error) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	logger := log.WithContext(ctx, log.WithComponent("pipeline")).With().Int64(log.FieldVideoID, videoID).Logger()

	if err := o.deps.Store.FinishProcessing(wctx, videoID, token, status, lastError); err != nil {
		if errors.Is(err, store.ErrStaleRun) {
			metrics.IncPipelineRun(PipelineMain, "stale")
			logger.Warn().Err(err).Str(log.FieldEvent, "pipeline.stale").Msg("run superseded, final status not written")
			return err
		}
		metrics.IncPipelineRun(PipelineMain, "error")
		return errors.Join(cause, fmt.Errorf("finish video %d: %w", videoID, err))
	}

	metrics.IncPipelineRun(PipelineMain, status.String())
	logger.Info().
		Str(log.FieldOldState, model.VideoProcessing.String()).
		Str(log.FieldNewState, status.String()).
		Str(log.FieldEvent, "video.transition").
		Msg("video status changed")
	return cause
}

func (o *Orchestrator) mainStages() []stageSpec {
	return []stageSpec{
		{name: StageAudio, severity: SeverityFatal, policy: &o.opts.Audio, run: o.extractAudio},
		{name: StageTranscription, severity: SeverityFatal, policy: &o.opts.Transcription, run: o.transcribe},
		{name: StageChunking, severity: SeverityFatal, policy: &o.opts.Chunking, run: o.chunk},
		{name: StageTranslation, severity: SeverityDegraded, run: o.translateAll},
		{name: StageIndexing, severity: SeverityOptional, policy: &o.opts.Indexing, run: o.index},
	}
}
