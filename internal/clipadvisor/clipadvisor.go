// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package clipadvisor resolves clip boundaries for a search phrase, either
// from the boundary service or from a deterministic fallback.
package clipadvisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/ManuGH/vidlingo/internal/platform/httpx"
	"github.com/ManuGH/vidlingo/internal/resilience"
	"golang.org/x/text/cases"
)

// Duration limits of a resolved clip, in seconds.
const (
	MinDuration = 3.0
	MaxDuration = 60.0

	// FallbackPadding is added around the first matching sentence.
	FallbackPadding = 2.0
	// NoMatchEnd is the end of the fallback clip when nothing matched.
	NoMatchEnd = 10.0
)

// ErrInvalidBounds rejects caller-supplied bounds.
var ErrInvalidBounds = errors.New("clip: invalid bounds")

// Bounds is a clip window in source seconds.
type Bounds struct {
	Start float64
	End   float64
}

func (b Bounds) Duration() float64 { return b.End - b.Start }

// Request is what the advisor needs to pick a window.
type Request struct {
	Sentences []model.Sentence
	Phrase    string
	// Matching holds sentence indices whose text contains Phrase.
	Matching []int
}

// Advisor proposes clip bounds.
type Advisor interface {
	Determine(ctx context.Context, req Request) (Bounds, error)
}

// MatchSentences returns the indices of sentences containing phrase,
// compared case-insensitively. An empty phrase matches nothing.
func MatchSentences(sentences []model.Sentence, phrase string) []int {
	// A Caser keeps state, so each call gets its own.
	folder := cases.Fold()
	needle := folder.String(strings.TrimSpace(phrase))
	if needle == "" {
		return nil
	}
	var out []int
	for _, s := range sentences {
		if strings.Contains(folder.String(s.Text), needle) {
			out = append(out, s.Index)
		}
	}
	return out
}

// Clamp keeps the start and stretches or shortens the end so the duration
// lies in [MinDuration, MaxDuration]. A negative start moves to zero.
func Clamp(b Bounds) Bounds {
	if b.Start < 0 {
		b.Start = 0
	}
	switch d := b.Duration(); {
	case d < MinDuration:
		b.End = b.Start + MinDuration
	case d > MaxDuration:
		b.End = b.Start + MaxDuration
	}
	return b
}

// Fallback is the first matching sentence widened by FallbackPadding on each
// side (start not below zero), or [0, NoMatchEnd] when nothing matched.
func Fallback(sentences []model.Sentence, matching []int) Bounds {
	if len(matching) > 0 {
		for _, s := range sentences {
			if s.Index == matching[0] {
				return Bounds{Start: max(0, s.Start-FallbackPadding), End: s.End + FallbackPadding}
			}
		}
	}
	return Bounds{Start: 0, End: NoMatchEnd}
}

// ValidateExplicit checks caller-supplied bounds. sourceDuration of zero
// means unknown.
func ValidateExplicit(start, end, sourceDuration float64) error {
	switch {
	case start < 0:
		return fmt.Errorf("%w: start %.3f is negative", ErrInvalidBounds, start)
	case start >= end:
		return fmt.Errorf("%w: start %.3f not before end %.3f", ErrInvalidBounds, start, end)
	case sourceDuration > 0 && end > sourceDuration:
		return fmt.Errorf("%w: end %.3f beyond source duration %.3f", ErrInvalidBounds, end, sourceDuration)
	}
	return nil
}

// Source tells where resolved bounds came from.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceAdvisor  Source = "advisor"
	SourceFallback Source = "fallback"
)

// Resolve asks the advisor for bounds around phrase and clamps the answer.
// Any advisor error, including a nil advisor, selects Fallback.
func Resolve(ctx context.Context, adv Advisor, sentences []model.Sentence, phrase string) (Bounds, Source) {
	matching := MatchSentences(sentences, phrase)
	if adv != nil && len(sentences) > 0 {
		b, err := adv.Determine(ctx, Request{Sentences: sentences, Phrase: phrase, Matching: matching})
		if err == nil {
			return Clamp(b), SourceAdvisor
		}
		logger := log.WithComponentFromContext(ctx, "clipadvisor")
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "clip.advisor_fallback").
			Int("matches", len(matching)).
			Msg("boundary advisor failed, using fallback bounds")
	}
	return Clamp(Fallback(sentences, matching)), SourceFallback
}

type wireSentence struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type wireRequest struct {
	Sentences       []wireSentence `json:"sentences"`
	SearchPhrase    string         `json:"search_phrase"`
	MatchingIndices []int          `json:"matching_indices"`
}

type wireResponse struct {
	StartTime *float64 `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
}

// Client calls POST {base}/determine_boundaries.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *resilience.CircuitBreaker
}

// NewClient builds the client; breaker may be nil.
func NewClient(baseURL string, timeout time.Duration, breaker *resilience.CircuitBreaker) *Client {
	return &Client{baseURL: baseURL, http: httpx.NewClient("clipadvisor", timeout), breaker: breaker}
}

func (c *Client) Determine(ctx context.Context, req Request) (Bounds, error) {
	in := wireRequest{
		Sentences:       make([]wireSentence, len(req.Sentences)),
		SearchPhrase:    req.Phrase,
		MatchingIndices: req.Matching,
	}
	if in.MatchingIndices == nil {
		in.MatchingIndices = []int{}
	}
	for i, s := range req.Sentences {
		in.Sentences[i] = wireSentence{Index: s.Index, Text: s.Text, Start: s.Start, End: s.End}
	}

	var out wireResponse
	call := func() error {
		return httpx.PostJSON(ctx, c.http, httpx.JoinURL(c.baseURL, "determine_boundaries"), in, &out)
	}
	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return Bounds{}, fmt.Errorf("clipadvisor: %w", err)
	}
	if out.StartTime == nil || out.EndTime == nil {
		return Bounds{}, errors.New("clipadvisor: response without start_time/end_time")
	}
	return Bounds{Start: *out.StartTime, End: *out.EndTime}, nil
}

var _ Advisor = (*Client)(nil)
