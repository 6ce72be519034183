// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package segment

import (
	"context"

	"github.com/ManuGH/vidlingo/internal/model"
)

// LocalChunker runs the hybrid strategy in-process.
type LocalChunker struct{}

// Segment scans words in order and closes a chunk on the first trigger:
// a sentence-ending token once the chunk lasts at least MinDuration, the
// chunk reaching MaxDuration, or the chunk reaching MaxWords.
func (LocalChunker) Segment(ctx context.Context, words []model.Word, p Params) ([]model.Sentence, error) {
	if len(words) == 0 {
		return nil, ErrNoWords
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def := DefaultParams()
	if p.MaxDuration <= 0 {
		p.MaxDuration = def.MaxDuration
	}
	if p.MinDuration < 0 {
		p.MinDuration = 0
	}
	if p.MaxWords <= 0 {
		p.MaxWords = def.MaxWords
	}
	useSentences := p.Strategy != StrategyFixedDuration

	var groups [][]model.Word
	var cur []model.Word
	var start float64
	for _, w := range words {
		if len(cur) == 0 {
			start = w.Start
		}
		cur = append(cur, w)
		elapsed := w.End - start

		if (useSentences && endsSentence(w.Word) && elapsed >= p.MinDuration) ||
			elapsed >= p.MaxDuration ||
			len(cur) >= p.MaxWords {
			groups = append(groups, cur)
			cur = nil
		}
	}

	if len(cur) > 0 {
		n := len(groups)
		short := cur[len(cur)-1].End-cur[0].Start < p.MinDuration
		if n > 0 && short && cur[0].Start-groups[n-1][len(groups[n-1])-1].End < p.MinDuration {
			groups[n-1] = append(groups[n-1], cur...)
		} else {
			groups = append(groups, cur)
		}
	}

	out := make([]model.Sentence, 0, len(groups))
	for i, g := range groups {
		out = append(out, sentenceFrom(i, g))
	}
	return out, nil
}

var _ Segmenter = LocalChunker{}
