// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidlingo/internal/model"
)

func TestUpsertTranscriptKeepsOneRowPerVideo(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	vid := seedVideo(t, s)

	words := []model.Word{{Word: "Hello", Start: 0, End: 0.5, Confidence: 0.9}}
	id1, err := s.UpsertTranscript(ctx, &model.Transcript{VideoID: vid, Language: "en", FullText: "Hello", Words: words})
	require.NoError(t, err)
	_, err = s.ReplaceSentences(ctx, id1, []model.Sentence{{Text: "Hello", Start: 0, End: 0.5}})
	require.NoError(t, err)

	id2, err := s.UpsertTranscript(ctx, &model.Transcript{VideoID: vid, Language: "en", FullText: "Hello again", Words: words})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	got, err := s.GetTranscriptByVideo(ctx, vid)
	require.NoError(t, err)
	assert.Equal(t, "Hello again", got.FullText)
	assert.False(t, got.Chunked, "re-transcription resets the chunked flag")
	if diff := cmp.Diff(words, got.Words); diff != "" {
		t.Errorf("words mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, got.Segments)
}

func TestReplaceSentencesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	vid := seedVideo(t, s)
	tid, err := s.UpsertTranscript(ctx, &model.Transcript{VideoID: vid, Language: "en"})
	require.NoError(t, err)

	sentences := []model.Sentence{
		{Index: 7, Text: "Hello world.", Start: 0, End: 1.1},
		{Index: 9, Text: "Bye", Start: 5, End: 5.3},
	}
	for run := 0; run < 2; run++ {
		_, err := s.ReplaceSentences(ctx, tid, sentences)
		require.NoError(t, err)
	}

	got, err := s.ListSentences(ctx, vid)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i, sent := range got {
		assert.Equal(t, i, sent.Index)
		assert.Equal(t, tid, sent.TranscriptID)
		assert.Equal(t, vid, sent.VideoID)
	}
	assert.Equal(t, "Bye", got[1].Text)

	tr, err := s.GetTranscriptByVideo(ctx, vid)
	require.NoError(t, err)
	assert.True(t, tr.Chunked)

	_, err = s.ReplaceSentences(ctx, tid, sentences[:1])
	require.NoError(t, err)
	got, err = s.ListSentences(ctx, vid)
	require.NoError(t, err)
	assert.Len(t, got, 1, "replacement drops sentences that no longer exist")

	_, err = s.ReplaceSentences(ctx, 4040, sentences)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertSubtitleKeepsSingleDefault(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	vid := seedVideo(t, s)

	require.NoError(t, s.UpsertSubtitle(ctx, &model.Subtitle{VideoID: vid, Language: "vi", Name: "Vietnamese", Key: "subtitles/1/vi.vtt", IsDefault: true, Source: model.SourceManual}))
	require.NoError(t, s.UpsertSubtitle(ctx, &model.Subtitle{VideoID: vid, Language: "en", Name: "English", Key: "subtitles/1/en.vtt", IsDefault: true, Source: model.SourceAIGenerated}))
	require.NoError(t, s.UpsertSubtitle(ctx, &model.Subtitle{VideoID: vid, Language: "en", Name: "English", Key: "subtitles/1/en-v2.vtt", IsDefault: true, Source: model.SourceAIGenerated}))

	subs, err := s.ListSubtitles(ctx, vid)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	defaults := 0
	for _, sub := range subs {
		if sub.IsDefault {
			defaults++
			assert.Equal(t, "en", sub.Language)
			assert.Equal(t, "subtitles/1/en-v2.vtt", sub.Key)
		}
	}
	assert.Equal(t, 1, defaults)

	assert.Error(t, s.UpsertSubtitle(ctx, &model.Subtitle{VideoID: vid, Language: "fr", Source: "robot"}))
}
