// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package segment

import (
	"fmt"
	"strings"

	"github.com/ManuGH/vidlingo/internal/model"
)

// DefaultMaxGap is the largest tolerated silence between two sentences.
const DefaultMaxGap = 5.0

// Issue kinds.
const (
	IssueIndex   = "index"
	IssueOverlap = "overlap"
	IssueGap     = "gap"
	IssueEmpty   = "empty_text"
	IssueTiming  = "timing"
)

// Issue is one data-quality finding.
type Issue struct {
	Kind   string
	Index  int
	Detail string
}

func (i Issue) String() string { return fmt.Sprintf("%s@%d: %s", i.Kind, i.Index, i.Detail) }

// Report collects the findings of Validate. Findings are warnings; STT
// timing noise is expected.
type Report struct {
	Issues []Issue
}

// OK reports whether no issue was found.
func (r Report) OK() bool { return len(r.Issues) == 0 }

// Count returns the number of issues of kind.
func (r Report) Count(kind string) int {
	n := 0
	for _, i := range r.Issues {
		if i.Kind == kind {
			n++
		}
	}
	return n
}

// Validate checks index contiguity, non-overlap and gaps between neighbours.
func Validate(sentences []model.Sentence, maxGap float64) Report {
	if maxGap <= 0 {
		maxGap = DefaultMaxGap
	}
	var r Report
	add := func(kind string, idx int, format string, args ...any) {
		r.Issues = append(r.Issues, Issue{Kind: kind, Index: idx, Detail: fmt.Sprintf(format, args...)})
	}

	for i, s := range sentences {
		if s.Index != i {
			add(IssueIndex, i, "index %d at position %d", s.Index, i)
		}
		if strings.TrimSpace(s.Text) == "" {
			add(IssueEmpty, i, "sentence has no text")
		}
		if s.End < s.Start {
			add(IssueTiming, i, "end %.3f before start %.3f", s.End, s.Start)
		}
		if i == 0 {
			continue
		}
		prev := sentences[i-1]
		if prev.End > s.Start {
			add(IssueOverlap, i, "previous ends at %.3f after start %.3f", prev.End, s.Start)
		} else if gap := s.Start - prev.End; gap > maxGap {
			add(IssueGap, i, "gap %.3fs exceeds %.3fs", gap, maxGap)
		}
	}
	return r
}
