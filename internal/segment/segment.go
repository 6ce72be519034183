// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package segment turns a flat word stream into ordered sentence chunks,
// either in-process or through the remote segmentation service, and checks
// the result for timing problems.
package segment

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/ManuGH/vidlingo/internal/model"
)

// Strategies understood by both implementations.
const (
	StrategyHybrid        = "hybrid"
	StrategyFixedDuration = "fixed_duration"
)

// ErrNoWords is returned for an empty word list.
var ErrNoWords = errors.New("segment: no words to chunk")

// Params are the chunking knobs.
type Params struct {
	Strategy    string
	Language    string
	MaxDuration float64
	MinDuration float64
	MaxWords    int
}

// DefaultParams matches the service defaults.
func DefaultParams() Params {
	return Params{
		Strategy:    StrategyHybrid,
		Language:    "en",
		MaxDuration: 10,
		MinDuration: 2,
		MaxWords:    15,
	}
}

// Segmenter splits words into sentences indexed 0..n-1.
type Segmenter interface {
	Segment(ctx context.Context, words []model.Word, p Params) ([]model.Sentence, error)
}

// isPunctOnly reports whether tok consists of punctuation only, such as "."
// or "?!". Those tokens attach to the previous word without a space.
func isPunctOnly(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if !unicode.IsPunct(r) {
			return false
		}
	}
	return true
}

func endsSentence(tok string) bool {
	tok = strings.TrimRight(tok, "\"')]”’")
	if tok == "" {
		return false
	}
	switch []rune(tok)[len([]rune(tok))-1] {
	case '.', '!', '?', '。', '！', '？', '…':
		return true
	}
	return false
}

// JoinWords builds sentence text from tokens.
func JoinWords(words []model.Word) string {
	var b strings.Builder
	for _, w := range words {
		tok := strings.TrimSpace(w.Word)
		if tok == "" {
			continue
		}
		if b.Len() > 0 && !isPunctOnly(tok) {
			b.WriteByte(' ')
		}
		b.WriteString(tok)
	}
	return b.String()
}

func sentenceFrom(index int, words []model.Word) model.Sentence {
	return model.Sentence{
		Index: index,
		Text:  JoinWords(words),
		Start: words[0].Start,
		End:   words[len(words)-1].End,
		Words: append([]model.Word(nil), words...),
	}
}
