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
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/metrics"
	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/ManuGH/vidlingo/internal/subtitle"
	"github.com/ManuGH/vidlingo/internal/telemetry"
)

var errNoTranslator = errors.New("no translation model configured")

// translateAll runs one independent job per target language. A language that
// exhausts its retries is recorded and the others carry on; the stage fails
// (as degraded) only to report which languages are missing.
func (o *Orchestrator) translateAll(ctx context.Context, st *RunState) error {
	if o.deps.Translator == nil {
		return skip(errNoTranslator)
	}

	results := make([]LanguageResult, len(o.opts.Languages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.TranslationParallel)
	for i, lang := range o.opts.Languages {
		g.Go(func() error {
			results[i] = o.translateLanguage(gctx, st.Video, lang)
			// Never fail the group: one language must not cancel the rest.
			return nil
		})
	}
	_ = g.Wait()
	st.Languages = results

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Language, r.Err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d languages failed: %w", len(errs), len(results), errors.Join(errs...))
	}
	return nil
}

// translateLanguage is one language job with its own retry budget.
func (o *Orchestrator) translateLanguage(ctx context.Context, v *model.Video, lang model.Language) LanguageResult {
	ctx, span := o.tracer.Start(ctx, "translate."+lang.Code, trace.WithAttributes(
		attribute.String(telemetry.LanguageKey, lang.Code),
		attribute.Int64(telemetry.VideoIDKey, v.ID),
	))
	defer span.End()

	logger := log.WithContext(ctx, log.WithComponent("pipeline")).With().
		Int64(log.FieldVideoID, v.ID).
		Str(log.FieldStage, string(StageTranslation)).
		Str(log.FieldLanguage, lang.Code).
		Logger()

	res := LanguageResult{Language: lang.Code}
	policy := o.opts.Translation
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		metrics.IncStageAttempt(string(StageTranslation), "retry")
		logger.Warn().Err(err).
			Int(log.FieldAttempt, attempt).
			Dur("backoff", delay).
			Str(log.FieldEvent, "translation.retry").
			Msg("translation attempt failed, retrying")
	}

	res.Err = policy.Do(ctx, func(ctx context.Context, attempt int) error {
		res.Attempts = attempt
		sentences, err := o.deps.Store.ListSentences(ctx, v.ID)
		if err != nil {
			return err
		}
		if len(sentences) == 0 {
			return fmt.Errorf("video %d has no sentences", v.ID)
		}
		texts := make([]string, len(sentences))
		for i, s := range sentences {
			texts[i] = s.Text
		}
		translated, err := o.deps.Translator.Translate(ctx, lang, texts)
		if err != nil {
			return err
		}
		cues, err := subtitle.WithTexts(sentences, translated)
		if err != nil {
			return err
		}
		key, err := o.putSubtitle(ctx, v.ID, lang, cues)
		if err != nil {
			return err
		}
		res.Key, res.Cues = key, len(cues)
		return nil
	})

	if res.Err != nil {
		metrics.IncStageAttempt(string(StageTranslation), attemptResult(res.Err))
		metrics.IncTranslation(lang.Code, OutcomeFailed)
		telemetry.RecordError(span, res.Err)
		logger.Warn().Err(res.Err).Int("attempts", res.Attempts).
			Str(log.FieldEvent, "translation.failed").
			Msg("language translation failed")
		return res
	}
	metrics.IncStageAttempt(string(StageTranslation), "ok")
	metrics.IncTranslation(lang.Code, OutcomeOK)
	logger.Info().Int("cues", res.Cues).Str(log.FieldEvent, "translation.done").Msg("language subtitle published")
	return res
}
