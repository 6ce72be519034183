// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/vidlingo/internal/blob"
	"github.com/ManuGH/vidlingo/internal/clipadvisor"
	"github.com/ManuGH/vidlingo/internal/config"
	"github.com/ManuGH/vidlingo/internal/media/ffmpeg"
	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/ManuGH/vidlingo/internal/queue"
	"github.com/ManuGH/vidlingo/internal/resilience"
	"github.com/ManuGH/vidlingo/internal/search"
	"github.com/ManuGH/vidlingo/internal/segment"
	"github.com/ManuGH/vidlingo/internal/store"
	"github.com/ManuGH/vidlingo/internal/stt"
	"github.com/ManuGH/vidlingo/internal/telemetry"
)

// Media is the transcoder surface the stages use. *ffmpeg.Runner implements it.
type Media interface {
	Probe(ctx context.Context, src string) (ffmpeg.ProbeResult, error)
	Thumbnail(ctx context.Context, src, dest string, offset float64) error
	ExtractAudio(ctx context.Context, src, dest string, duration float64) error
	Cut(ctx context.Context, src, dest string, start, duration float64) error
}

// Translator turns ordered source sentences into one target language.
// *translate.Translator implements it.
type Translator interface {
	Translate(ctx context.Context, target model.Language, texts []string) ([]string, error)
}

// Deps are the collaborators of a run. Translator, Indexer and Advisor may be
// nil: translation is then skipped, indexing is a no-op and clip bounds use
// the deterministic fallback.
type Deps struct {
	Store      store.Store
	Blobs      blob.Store
	Media      Media
	STT        stt.Transcriber
	Segmenter  segment.Segmenter
	Translator Translator
	Indexer    search.Indexer
	Advisor    clipadvisor.Advisor
}

// Options tune a run.
type Options struct {
	Audio         resilience.Policy
	Transcription resilience.Policy
	Chunking      resilience.Policy
	Translation   resilience.Policy
	Indexing      resilience.Policy

	Segment segment.Params
	MaxGap  float64

	Languages           []model.Language
	TranslationParallel int
	AudioURLTTL         time.Duration
	ClipErrorMax        int
	TempDir             string
}

// PolicyFromConfig maps one stage's retry settings onto a policy.
func PolicyFromConfig(rc config.RetryConfig) resilience.Policy {
	return resilience.Policy{
		MaxAttempts:    rc.MaxAttempts,
		BaseDelay:      rc.BaseDelay,
		MaxDelay:       rc.MaxDelay,
		AttemptTimeout: rc.AttemptTimeout,
	}
}

// OptionsFromConfig builds run options from the resolved configuration.
func OptionsFromConfig(cfg config.AppConfig) Options {
	r := cfg.Pipeline.Retries
	return Options{
		Audio:         PolicyFromConfig(r.Audio),
		Transcription: PolicyFromConfig(r.Transcription),
		Chunking:      PolicyFromConfig(r.Chunking),
		Translation:   PolicyFromConfig(r.Translation),
		Indexing:      PolicyFromConfig(r.Indexing),
		Segment: segment.Params{
			Strategy:    cfg.Chunking.Strategy,
			MaxDuration: cfg.Chunking.MaxDuration,
			MinDuration: cfg.Chunking.MinDuration,
			MaxWords:    cfg.Chunking.MaxWords,
		},
		MaxGap:              cfg.Chunking.MaxGap,
		Languages:           model.TargetLanguages,
		TranslationParallel: cfg.Translation.Concurrency,
		AudioURLTTL:         cfg.Services.STTTimeout + time.Hour,
		ClipErrorMax:        cfg.Pipeline.ClipErrorMax,
		TempDir:             cfg.Pipeline.TempDir,
	}
}

func (o Options) withDefaults() Options {
	if o.Segment.Strategy == "" {
		o.Segment = segment.DefaultParams()
	}
	if o.MaxGap <= 0 {
		o.MaxGap = segment.DefaultMaxGap
	}
	if o.Languages == nil {
		o.Languages = model.TargetLanguages
	}
	if o.TranslationParallel <= 0 {
		o.TranslationParallel = len(o.Languages)
	}
	if o.AudioURLTTL <= 0 {
		o.AudioURLTTL = time.Hour
	}
	if o.ClipErrorMax <= 0 {
		o.ClipErrorMax = 500
	}
	if o.TempDir == "" {
		o.TempDir = os.TempDir()
	}
	return o
}

// Orchestrator executes queued jobs. It is safe for concurrent use by the
// worker pool.
type Orchestrator struct {
	deps   Deps
	opts   Options
	tracer trace.Tracer

	mu     sync.Mutex
	active map[int64]struct{}
}

// New wires an orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Indexer == nil {
		deps.Indexer = search.Noop{}
	}
	return &Orchestrator{
		deps:   deps,
		opts:   opts.withDefaults(),
		tracer: telemetry.Tracer("vidlingo/pipeline"),
		active: make(map[int64]struct{}),
	}
}

// Handle is the queue.Handler that dispatches jobs by kind.
func (o *Orchestrator) Handle(ctx context.Context, job queue.Job) error {
	switch job.Kind {
	case queue.KindMain:
		_, err := o.RunMain(ctx, job.ID, job.Token)
		return err
	case queue.KindClip:
		return o.RunClip(ctx, job.ID)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// Active reports whether this process is currently running videoID.
func (o *Orchestrator) Active(videoID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[videoID]
	return ok
}

func (o *Orchestrator) track(videoID int64) func() {
	o.mu.Lock()
	o.active[videoID] = struct{}{}
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.active, videoID)
		o.mu.Unlock()
	}
}

// tempDir creates a scratch directory for one stage attempt. The returned
// cleanup must run on every path.
func (o *Orchestrator) tempDir(pattern string) (string, func(), error) {
	if err := os.MkdirAll(o.opts.TempDir, 0o750); err != nil {
		return "", nil, fmt.Errorf("create temp root: %w", err)
	}
	dir, err := os.MkdirTemp(o.opts.TempDir, "vidlingo-"+pattern+"-")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}
