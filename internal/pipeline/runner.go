// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/metrics"
	"github.com/ManuGH/vidlingo/internal/resilience"
	"github.com/ManuGH/vidlingo/internal/telemetry"
)

// stageFunc is one attempt of a stage. It records its output on st.
type stageFunc func(ctx context.Context, st *RunState) error

type stageSpec struct {
	name     Stage
	severity Severity
	// policy is nil for stages that retry internally (translation).
	policy *resilience.Policy
	run    stageFunc
}

// runStage executes one stage under its retry policy and classifies the result.
func (o *Orchestrator) runStage(ctx context.Context, st *RunState, spec stageSpec) StageResult {
	ctx, span := o.tracer.Start(ctx, "stage."+string(spec.name),
		trace.WithAttributes(telemetry.StageAttributes(PipelineMain, string(spec.name), spec.severity.String())...),
		trace.WithAttributes(telemetry.VideoAttributes(st.Video.ID)...),
	)
	defer span.End()

	logger := log.WithContext(ctx, log.WithComponent("pipeline")).With().
		Int64(log.FieldVideoID, st.Video.ID).
		Str(log.FieldStage, string(spec.name)).
		Str(log.FieldSeverity, spec.severity.String()).
		Logger()
	logger.Info().Str(log.FieldEvent, "stage.start").Msg("stage started")

	start := time.Now()
	var err error
	if spec.policy == nil {
		err = spec.run(ctx, st)
	} else {
		p := *spec.policy
		p.OnRetry = func(attempt int, err error, delay time.Duration) {
			metrics.IncStageAttempt(string(spec.name), "retry")
			logger.Warn().Err(err).
				Int(log.FieldAttempt, attempt).
				Dur("backoff", delay).
				Str(log.FieldEvent, "stage.retry").
				Msg("stage attempt failed, retrying")
		}
		err = p.Do(ctx, func(ctx context.Context, attempt int) error {
			span.SetAttributes(attribute.Int(telemetry.AttemptKey, attempt))
			return spec.run(ctx, st)
		})
	}

	res := StageResult{Stage: spec.name, Severity: spec.severity, Duration: time.Since(start)}
	switch {
	case err == nil:
		res.Outcome = OutcomeOK
		if spec.policy != nil {
			metrics.IncStageAttempt(string(spec.name), "ok")
		}
		logger.Info().Dur("duration", res.Duration).Str(log.FieldEvent, "stage.done").Msg("stage finished")
	case errors.Is(err, errSkipped):
		res.Outcome = OutcomeSkipped
		logger.Warn().Err(err).Str(log.FieldEvent, "stage.skipped").Msg("stage skipped")
	default:
		res.Outcome = OutcomeFailed
		res.Err = err
		if spec.policy != nil {
			metrics.IncStageAttempt(string(spec.name), attemptResult(err))
		}
		telemetry.RecordError(span, err)
		ev := logger.Warn()
		if spec.severity == SeverityFatal {
			ev = logger.Error()
		}
		ev.Err(err).Dur("duration", res.Duration).Str(log.FieldEvent, "stage.failed").Msg("stage failed")
	}
	span.SetAttributes(attribute.String(telemetry.OutcomeKey, res.Outcome))
	metrics.ObserveStage(PipelineMain, string(spec.name), res.Outcome, res.Duration)

	st.Results = append(st.Results, res)
	return res
}

func attemptResult(err error) string {
	var exhausted *resilience.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		return "exhausted"
	case resilience.IsPermanent(err):
		return "permanent"
	default:
		return "aborted"
	}
}

// skip marks a stage as having nothing to do. It is never retried.
func skip(reason error) error {
	return resilience.Permanent(errors.Join(errSkipped, reason))
}
