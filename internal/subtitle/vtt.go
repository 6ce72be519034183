// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package subtitle encodes and decodes WebVTT subtitle files.
package subtitle

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ManuGH/vidlingo/internal/model"
)

// Cue is one timed subtitle line. Times are seconds.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// ErrMalformed is returned by the decoders.
var ErrMalformed = errors.New("subtitle: malformed vtt")

// FormatTimestamp renders seconds as HH:MM:SS.mmm, rounded to the millisecond.
// Negative input renders as zero.
func FormatTimestamp(sec float64) string {
	ms := int64(math.Round(sec * 1000))
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// ParseTimestamp accepts HH:MM:SS.mmm and MM:SS.mmm.
func ParseTimestamp(ts string) (float64, error) {
	ts = strings.TrimSpace(ts)
	whole, frac, ok := strings.Cut(ts, ".")
	if !ok || len(frac) != 3 {
		return 0, fmt.Errorf("%w: timestamp %q", ErrMalformed, ts)
	}
	parts := strings.Split(whole, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: timestamp %q", ErrMalformed, ts)
	}
	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: timestamp %q", ErrMalformed, ts)
		}
		total = total*60 + n
	}
	ms, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: timestamp %q", ErrMalformed, ts)
	}
	return float64(total) + float64(ms)/1000, nil
}

// EncodeVTT renders cues as WEBVTT with 1-based cue numbers. Newlines inside
// cue text are folded to spaces so every cue is exactly one text line.
func EncodeVTT(cues []Cue) []byte {
	var b bytes.Buffer
	b.WriteString("WEBVTT\n\n")
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, FormatTimestamp(c.Start), FormatTimestamp(c.End), foldText(c.Text))
	}
	return b.Bytes()
}

func foldText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}

// DecodeVTT parses files written by EncodeVTT and common variants (optional
// cue identifiers, cue settings after the end time, multi-line text).
func DecodeVTT(data []byte) ([]Cue, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !sc.Scan() || !strings.HasPrefix(strings.TrimPrefix(sc.Text(), "\ufeff"), "WEBVTT") {
		return nil, fmt.Errorf("%w: missing WEBVTT header", ErrMalformed)
	}

	var cues []Cue
	var cur *Cue
	var text []string
	flush := func() {
		if cur != nil {
			cur.Text = strings.Join(text, " ")
			cues = append(cues, *cur)
		}
		cur, text = nil, nil
	}

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case line == "":
			flush()
		case cur == nil && strings.Contains(line, "-->"):
			startStr, rest, _ := strings.Cut(line, "-->")
			endStr := strings.Fields(rest)
			if len(endStr) == 0 {
				return nil, fmt.Errorf("%w: timing line %q", ErrMalformed, line)
			}
			start, err := ParseTimestamp(startStr)
			if err != nil {
				return nil, err
			}
			end, err := ParseTimestamp(endStr[0])
			if err != nil {
				return nil, err
			}
			cur = &Cue{Start: start, End: end}
		case cur != nil:
			text = append(text, strings.TrimSpace(line))
		}
		// Anything else is a cue identifier or a NOTE/STYLE block line.
	}
	flush()
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("subtitle: read vtt: %w", err)
	}
	return cues, nil
}

// FromSentences builds one cue per sentence.
func FromSentences(sentences []model.Sentence) []Cue {
	cues := make([]Cue, len(sentences))
	for i, s := range sentences {
		cues[i] = Cue{Start: s.Start, End: s.End, Text: s.Text}
	}
	return cues
}

// FromSegments builds the first-draft cues straight from recognition segments.
func FromSegments(segments []model.Segment) []Cue {
	cues := make([]Cue, 0, len(segments))
	for _, s := range segments {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		cues = append(cues, Cue{Start: s.Start, End: s.End, Text: s.Text})
	}
	return cues
}

// WithTexts keeps the sentence timing and swaps in translated texts.
// texts must be aligned with sentences.
func WithTexts(sentences []model.Sentence, texts []string) ([]Cue, error) {
	if len(texts) != len(sentences) {
		return nil, fmt.Errorf("subtitle: %d texts for %d sentences", len(texts), len(sentences))
	}
	cues := FromSentences(sentences)
	for i := range cues {
		cues[i].Text = texts[i]
	}
	return cues, nil
}

// SliceForClip keeps cues overlapping [start, end), shifts them so the clip
// starts at zero and clamps them into [0, end-start].
func SliceForClip(cues []Cue, start, end float64) []Cue {
	if end <= start {
		return nil
	}
	length := end - start
	var out []Cue
	for _, c := range cues {
		if c.End <= start || c.Start >= end {
			continue
		}
		s := math.Max(0, c.Start-start)
		e := math.Min(length, c.End-start)
		if e <= s {
			continue
		}
		out = append(out, Cue{Start: s, End: e, Text: c.Text})
	}
	return out
}
