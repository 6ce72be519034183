// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package translate produces language-parallel sentence lists. Output always
// has the same length and order as the input, whatever the model returns.
package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/metrics"
	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// MaxBatchSize is the largest number of lines sent in one model call.
const MaxBatchSize = 50

// Generator performs one model call for a batch and returns the raw text.
type Generator interface {
	Generate(ctx context.Context, target model.Language, lines []string) (string, error)
}

// Cache memoizes finished batches. A miss returns ok=false and no error.
type Cache interface {
	Get(ctx context.Context, key string) (lines []string, ok bool, err error)
	Put(ctx context.Context, key string, lines []string) error
}

// Translator batches sentences through a Generator.
type Translator struct {
	gen       Generator
	cache     Cache
	limiter   *rate.Limiter
	batchSize int
	logger    zerolog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithCache enables the batch memo cache.
func WithCache(c Cache) Option { return func(t *Translator) { t.cache = c } }

// WithLimiter throttles model calls. One limiter is shared by all languages.
func WithLimiter(l *rate.Limiter) Option { return func(t *Translator) { t.limiter = l } }

// WithBatchSize overrides the batch size, capped at MaxBatchSize.
func WithBatchSize(n int) Option {
	return func(t *Translator) {
		if n > 0 && n <= MaxBatchSize {
			t.batchSize = n
		}
	}
}

// New builds a Translator around gen.
func New(gen Generator, opts ...Option) *Translator {
	t := &Translator{
		gen:       gen,
		batchSize: MaxBatchSize,
		logger:    log.WithComponent("translate"),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Translate returns one translated line per input text, in order. Batches run
// sequentially; any failed batch fails the whole call so the caller can retry
// the language as a unit.
func (t *Translator) Translate(ctx context.Context, target model.Language, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	logger := log.WithContext(ctx, t.logger).With().Str(log.FieldLanguage, target.Code).Logger()

	out := make([]string, 0, len(texts))
	batches := (len(texts) + t.batchSize - 1) / t.batchSize
	for b := 0; b < batches; b++ {
		lo := b * t.batchSize
		hi := min(lo+t.batchSize, len(texts))
		batch := make([]string, hi-lo)
		for i, s := range texts[lo:hi] {
			batch[i] = oneLine(s)
		}

		lines, err := t.translateBatch(ctx, logger, target, batch)
		if err != nil {
			return nil, fmt.Errorf("translate %s batch %d/%d: %w", target.Code, b+1, batches, err)
		}
		out = append(out, lines...)
	}
	return out, nil
}

func (t *Translator) translateBatch(ctx context.Context, logger zerolog.Logger, target model.Language, batch []string) ([]string, error) {
	key := CacheKey(target.Code, batch)
	if t.cache != nil {
		lines, ok, err := t.cache.Get(ctx, key)
		if err != nil {
			logger.Warn().Err(err).Str(log.FieldEvent, "translate.cache_error").Msg("cache read failed, calling model")
		} else if ok && len(lines) == len(batch) {
			metrics.IncTranslationBatch("cache", "exact")
			return lines, nil
		}
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	raw, err := t.gen.Generate(ctx, target, batch)
	if err != nil {
		return nil, err
	}

	parsed := ParseLines(raw)
	lines, alignment := Align(batch, parsed)
	if alignment != AlignExact {
		logger.Warn().
			Str(log.FieldEvent, "translate.mismatch").
			Int("expected", len(batch)).
			Int("got", len(parsed)).
			Str("alignment", alignment).
			Msg("translation line count mismatch, using best-effort alignment")
	}
	metrics.IncTranslationBatch("model", alignment)

	if t.cache != nil && alignment == AlignExact {
		if err := t.cache.Put(ctx, key, lines); err != nil {
			logger.Warn().Err(err).Str(log.FieldEvent, "translate.cache_error").Msg("cache write failed")
		}
	}
	return lines, nil
}

// Alignment outcomes.
const (
	AlignExact     = "exact"
	AlignPadded    = "padded"
	AlignTruncated = "truncated"
)

// Align returns exactly len(src) lines: extras are dropped and missing lines
// are filled with the corresponding source line.
func Align(src, got []string) ([]string, string) {
	out := make([]string, len(src))
	n := copy(out, got)
	for i := n; i < len(src); i++ {
		out[i] = src[i]
	}
	switch {
	case len(got) < len(src):
		return out, AlignPadded
	case len(got) > len(src):
		return out, AlignTruncated
	default:
		return out, AlignExact
	}
}

var numbering = regexp.MustCompile(`^(\d+)[.)\-:]\s+`)

// ParseLines splits model output into lines, dropping blank lines. List
// numbering such as "1. " or "2) " is removed only when every line carries it
// and the numbers run 1, 2, 3 in order, so text like "3. Oktober" survives.
func ParseLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if !listNumbered(out) {
		return out
	}
	kept := out[:0]
	for _, line := range out {
		if line = strings.TrimSpace(numbering.ReplaceAllString(line, "")); line != "" {
			kept = append(kept, line)
		}
	}
	return kept
}

func listNumbered(lines []string) bool {
	if len(lines) == 0 {
		return false
	}
	for i, line := range lines {
		m := numbering.FindStringSubmatch(line)
		if m == nil || m[1] != strconv.Itoa(i+1) {
			return false
		}
	}
	return true
}

// CacheKey identifies a batch for one target language.
func CacheKey(lang string, batch []string) string {
	h := sha256.New()
	h.Write([]byte(lang))
	for _, s := range batch {
		h.Write([]byte{0})
		h.Write([]byte(s))
	}
	return "tr:" + lang + ":" + hex.EncodeToString(h.Sum(nil))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
