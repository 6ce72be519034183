// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics registers the Prometheus collectors of the pipeline worker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidlingo_stage_duration_seconds",
		Help:    "Wall time of a pipeline stage including retries",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"pipeline", "stage", "outcome"})

	stageAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlingo_stage_attempts_total",
		Help: "Stage attempts by result (ok, retry, exhausted, permanent)",
	}, []string{"stage", "result"})

	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlingo_pipeline_runs_total",
		Help: "Finished pipeline runs by outcome",
	}, []string{"pipeline", "outcome"})

	pipelineInflight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vidlingo_pipeline_inflight",
		Help: "Pipeline runs currently executing in this process",
	}, []string{"pipeline"})

	translationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlingo_translation_languages_total",
		Help: "Per-language translation job outcomes",
	}, []string{"language", "outcome"})

	translationBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlingo_translation_batches_total",
		Help: "Translation batches by source (llm, cache) and alignment (exact, padded, truncated)",
	}, []string{"source", "alignment"})

	enqueueResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlingo_enqueue_results_total",
		Help: "Entry point results (started, already_in_progress, not_found, quota_exceeded)",
	}, []string{"pipeline", "result"})

	sweeperActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlingo_sweeper_actions_total",
		Help: "Watchdog resets and retention deletions",
	}, []string{"sweeper", "action"})

	chunkValidationIssues = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlingo_chunk_validation_issues_total",
		Help: "Data-quality warnings raised by post-chunking validation",
	}, []string{"kind"})
)

// ObserveStage records a stage's total duration and outcome.
func ObserveStage(pipeline, stage, outcome string, d time.Duration) {
	stageDuration.WithLabelValues(pipeline, stage, outcome).Observe(d.Seconds())
}

// IncStageAttempt counts a single attempt of a stage.
func IncStageAttempt(stage, result string) {
	stageAttempts.WithLabelValues(stage, result).Inc()
}

// IncPipelineRun counts a finished run.
func IncPipelineRun(pipeline, outcome string) {
	pipelineRuns.WithLabelValues(pipeline, outcome).Inc()
}

// TrackInflight increments the in-flight gauge and returns the matching decrement.
func TrackInflight(pipeline string) func() {
	g := pipelineInflight.WithLabelValues(pipeline)
	g.Inc()
	return g.Dec
}

// IncTranslation counts one language job outcome.
func IncTranslation(language, outcome string) {
	translationOutcomes.WithLabelValues(language, outcome).Inc()
}

// IncTranslationBatch counts one translated batch.
func IncTranslationBatch(source, alignment string) {
	translationBatches.WithLabelValues(source, alignment).Inc()
}

// IncEnqueue counts an entry point result.
func IncEnqueue(pipeline, result string) {
	enqueueResults.WithLabelValues(pipeline, result).Inc()
}

// IncSweeper counts a sweeper action.
func IncSweeper(sweeper, action string) {
	sweeperActions.WithLabelValues(sweeper, action).Inc()
}

// AddChunkIssues counts validation warnings of one kind.
func AddChunkIssues(kind string, n int) {
	if n <= 0 {
		return
	}
	chunkValidationIssues.WithLabelValues(kind).Add(float64(n))
}
