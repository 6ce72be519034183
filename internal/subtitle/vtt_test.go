// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package subtitle

import (
	"math"
	"testing"

	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp(t *testing.T) {
	for in, want := range map[float64]string{
		0:         "00:00:00.000",
		1.1:       "00:00:01.100",
		61.0006:   "00:01:01.001",
		3599.9996: "01:00:00.000",
		36000.25:  "10:00:00.250",
		-2:        "00:00:00.000",
	} {
		assert.Equal(t, want, FormatTimestamp(in), "input %v", in)
	}
}

func TestParseTimestamp(t *testing.T) {
	v, err := ParseTimestamp("01:02:03.456")
	require.NoError(t, err)
	assert.InDelta(t, 3723.456, v, 1e-9)

	v, err = ParseTimestamp("02:03.004")
	require.NoError(t, err)
	assert.InDelta(t, 123.004, v, 1e-9)

	for _, bad := range []string{"", "1:2", "00:00:01,000", "aa:00:01.000", "00:00:01.00"} {
		_, err := ParseTimestamp(bad)
		assert.ErrorIs(t, err, ErrMalformed, bad)
	}
}

func TestEncodeVTTExactBytes(t *testing.T) {
	got := EncodeVTT([]Cue{
		{Start: 0, End: 1.1, Text: "Hello world."},
		{Start: 5, End: 5.3, Text: "Bye\nnow"},
	})
	want := "WEBVTT\n\n" +
		"1\n00:00:00.000 --> 00:00:01.100\nHello world.\n\n" +
		"2\n00:00:05.000 --> 00:00:05.300\nBye now\n\n"
	assert.Equal(t, want, string(got))
	assert.Equal(t, "WEBVTT\n\n", string(EncodeVTT(nil)))
}

func TestRoundTripMillisecondPrecision(t *testing.T) {
	in := []Cue{
		{Start: 0.0004, End: 1.2344, Text: "a"},
		{Start: 62.5, End: 3725.999, Text: "b"},
	}
	out, err := DecodeVTT(EncodeVTT(in))
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.LessOrEqual(t, math.Abs(out[i].Start-in[i].Start), 0.0005)
		assert.LessOrEqual(t, math.Abs(out[i].End-in[i].End), 0.0005)
		assert.Equal(t, in[i].Text, out[i].Text)
	}
}

func TestDecodeVTTVariants(t *testing.T) {
	data := "\ufeffWEBVTT - title\r\n\r\nNOTE hi\r\n\r\nintro\r\n00:01.000 --> 00:02.500 align:start\r\nline one\r\nline two\r\n"
	cues, err := DecodeVTT([]byte(data))
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, Cue{Start: 1, End: 2.5, Text: "line one line two"}, cues[0])

	_, err = DecodeVTT([]byte("1\n00:00:00.000 --> 00:00:01.000\nx\n"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSliceForClip(t *testing.T) {
	cues := []Cue{
		{Start: 0, End: 4, Text: "before"},
		{Start: 8, End: 12, Text: "straddles start"},
		{Start: 13, End: 15, Text: "inside"},
		{Start: 19, End: 25, Text: "straddles end"},
		{Start: 20, End: 22, Text: "at end"},
	}
	got := SliceForClip(cues, 10, 20)
	assert.Equal(t, []Cue{
		{Start: 0, End: 2, Text: "straddles start"},
		{Start: 3, End: 5, Text: "inside"},
		{Start: 9, End: 10, Text: "straddles end"},
	}, got)
	assert.Nil(t, SliceForClip(cues, 5, 5))
}

func TestFromSentencesAndTexts(t *testing.T) {
	sentences := []model.Sentence{{Text: "Hi", Start: 0, End: 1}, {Text: "Bye", Start: 2, End: 3}}
	cues, err := WithTexts(sentences, []string{"Xin chào", "Tạm biệt"})
	require.NoError(t, err)
	assert.Equal(t, "Tạm biệt", cues[1].Text)
	assert.InDelta(t, 2.0, cues[1].Start, 1e-9)

	_, err = WithTexts(sentences, []string{"one"})
	assert.Error(t, err)

	segs := FromSegments([]model.Segment{{Text: " ", Start: 0, End: 1}, {Text: "ok", Start: 1, End: 2}})
	assert.Len(t, segs, 1)
}
