// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package stt is the client of the speech-to-text service.
package stt

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
)

// ErrEmptyTranscript means the service answered without any segment.
var ErrEmptyTranscript = errors.New("stt: transcript has no segments")

// Request describes one transcription job.
type Request struct {
	AudioURL string
	// Language is a hint; empty lets the service detect it.
	Language string
	Align    bool
}

// Transcriber turns an audio reference into a timed transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (*model.Transcript, error)
}

type wireRequest struct {
	AudioURL             string `json:"audio_url"`
	Language             string `json:"language,omitempty"`
	Align                bool   `json:"align"`
	ReturnWordTimestamps bool   `json:"return_word_timestamps"`
}

type wireWord struct {
	Word  string   `json:"word"`
	Start float64  `json:"start"`
	End   float64  `json:"end"`
	Score *float64 `json:"score"`
}

type wireSegment struct {
	Text  string     `json:"text"`
	Start float64    `json:"start"`
	End   float64    `json:"end"`
	Words []wireWord `json:"words"`
}

type wireResponse struct {
	Language string        `json:"language"`
	Text     string        `json:"text"`
	Duration float64       `json:"duration"`
	Segments []wireSegment `json:"segments"`
}

// Client calls POST {base}/transcribe.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *resilience.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default traced client.
func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.http = c } }

// WithBreaker guards calls with a circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option { return func(cl *Client) { cl.breaker = cb } }

// NewClient builds a client for baseURL. timeout bounds one transcription.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    httpx.NewClient("stt", timeout),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Transcribe sends the audio reference and flattens the answer.
func (c *Client) Transcribe(ctx context.Context, req Request) (*model.Transcript, error) {
	logger := log.WithContext(ctx, log.WithComponent("stt"))
	in := wireRequest{
		AudioURL:             req.AudioURL,
		Language:             req.Language,
		Align:                req.Align,
		ReturnWordTimestamps: true,
	}

	var out wireResponse
	call := func() error {
		return httpx.PostJSON(ctx, c.http, httpx.JoinURL(c.baseURL, "transcribe"), in, &out)
	}
	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, fmt.Errorf("stt: transcribe: %w", err)
	}

	t, err := flatten(out)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str(log.FieldEvent, "stt.done").
		Str(log.FieldLanguage, t.Language).
		Int("segments", len(t.Segments)).
		Int("words", len(t.Words)).
		Msg("transcription received")
	return t, nil
}

func flatten(r wireResponse) (*model.Transcript, error) {
	if len(r.Segments) == 0 {
		return nil, ErrEmptyTranscript
	}

	t := &model.Transcript{
		Language: r.Language,
		Duration: r.Duration,
		Segments: make([]model.Segment, 0, len(r.Segments)),
	}
	texts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		seg := model.Segment{Text: strings.TrimSpace(s.Text), Start: s.Start, End: s.End}
		for _, w := range s.Words {
			mw := model.Word{Word: strings.TrimSpace(w.Word), Start: w.Start, End: w.End, Confidence: 1.0}
			if w.Score != nil {
				mw.Confidence = *w.Score
			}
			seg.Words = append(seg.Words, mw)
			t.Words = append(t.Words, mw)
		}
		t.Segments = append(t.Segments, seg)
		if seg.Text != "" {
			texts = append(texts, seg.Text)
		}
	}
	t.FullText = strings.Join(texts, " ")
	if t.FullText == "" {
		t.FullText = strings.TrimSpace(r.Text)
	}
	if t.Duration == 0 {
		t.Duration = t.Segments[len(t.Segments)-1].End
	}
	return t, nil
}

var _ Transcriber = (*Client)(nil)
