// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package segment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/ManuGH/vidlingo/internal/platform/httpx"
	"github.com/ManuGH/vidlingo/internal/resilience"
)

type wireWord struct {
	Word  string   `json:"word"`
	Start float64  `json:"start"`
	End   float64  `json:"end"`
	Score *float64 `json:"score,omitempty"`
}

type wireRequest struct {
	Words       []wireWord `json:"words"`
	Language    string     `json:"language"`
	Strategy    string     `json:"strategy"`
	MaxDuration float64    `json:"max_duration"`
	MinDuration float64    `json:"min_duration"`
	MaxWords    int        `json:"max_words"`
}

type wireChunk struct {
	Text  string     `json:"text"`
	Start float64    `json:"start"`
	End   float64    `json:"end"`
	Words []wireWord `json:"words"`
}

type wireResponse struct {
	Chunks    []wireChunk `json:"chunks"`
	Sentences []wireChunk `json:"sentences"`
}

// HTTPClient calls POST {base}/chunk on the segmentation service.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	breaker *resilience.CircuitBreaker
}

// NewHTTPClient builds the client; breaker may be nil.
func NewHTTPClient(baseURL string, timeout time.Duration, breaker *resilience.CircuitBreaker) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    httpx.NewClient("segmenter", timeout),
		breaker: breaker,
	}
}

func (c *HTTPClient) Segment(ctx context.Context, words []model.Word, p Params) ([]model.Sentence, error) {
	if len(words) == 0 {
		return nil, ErrNoWords
	}
	req := wireRequest{
		Words:       make([]wireWord, len(words)),
		Language:    p.Language,
		Strategy:    p.Strategy,
		MaxDuration: p.MaxDuration,
		MinDuration: p.MinDuration,
		MaxWords:    p.MaxWords,
	}
	if req.Strategy == "" {
		req.Strategy = StrategyHybrid
	}
	if req.Language == "" {
		req.Language = "en"
	}
	for i, w := range words {
		score := w.Confidence
		req.Words[i] = wireWord{Word: w.Word, Start: w.Start, End: w.End, Score: &score}
	}

	var resp wireResponse
	call := func() error {
		return httpx.PostJSON(ctx, c.http, httpx.JoinURL(c.baseURL, "chunk"), req, &resp)
	}
	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, fmt.Errorf("segment: chunk: %w", err)
	}

	chunks := resp.Chunks
	if len(chunks) == 0 {
		chunks = resp.Sentences
	}
	if len(chunks) == 0 {
		return nil, errors.New("segment: service returned no chunks")
	}

	out := make([]model.Sentence, 0, len(chunks))
	for _, ch := range chunks {
		s := model.Sentence{
			Index: len(out),
			Text:  strings.TrimSpace(ch.Text),
			Start: ch.Start,
			End:   ch.End,
		}
		for _, w := range ch.Words {
			mw := model.Word{Word: w.Word, Start: w.Start, End: w.End, Confidence: 1.0}
			if w.Score != nil {
				mw.Confidence = *w.Score
			}
			s.Words = append(s.Words, mw)
		}
		if s.Text == "" && len(s.Words) > 0 {
			s.Text = JoinWords(s.Words)
		}
		out = append(out, s)
	}
	return out, nil
}

var _ Segmenter = (*HTTPClient)(nil)
