package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidlingo/internal/fsm"
)

func TestParseVideoStatusIsExact(t *testing.T) {
	s, err := ParseVideoStatus("processing")
	require.NoError(t, err)
	assert.Equal(t, VideoProcessing, s)

	_, err = ParseVideoStatus("PROCESSING")
	assert.Error(t, err)
	_, err = ParseVideoStatus("")
	assert.Error(t, err)
}

func TestVideoTransitions(t *testing.T) {
	require.NoError(t, VideoTransitions.Check(VideoDraft, VideoProcessing))
	require.NoError(t, VideoTransitions.Check(VideoProcessing, VideoPublished))
	require.NoError(t, VideoTransitions.Check(VideoProcessing, VideoDraft))
	assert.ErrorIs(t, VideoTransitions.Check(VideoProcessing, VideoProcessing), fsm.ErrInvalidTransition)
	assert.ErrorIs(t, VideoTransitions.Check(VideoDraft, VideoPublished), fsm.ErrInvalidTransition)
}

func TestClipStatus(t *testing.T) {
	assert.True(t, ClipReady.IsTerminal())
	assert.True(t, ClipFailed.IsTerminal())
	assert.False(t, ClipProcessing.IsTerminal())
	require.NoError(t, ClipTransitions.Check(ClipFailed, ClipProcessing))
	assert.Error(t, ClipTransitions.Check(ClipReady, ClipProcessing))

	_, err := ParseClipStatus("done")
	assert.Error(t, err)
}

func TestTargetLanguages(t *testing.T) {
	require.Len(t, TargetLanguages, 8)
	seen := map[string]bool{}
	for _, l := range TargetLanguages {
		assert.False(t, seen[l.Code], "duplicate %s", l.Code)
		assert.NotEqual(t, SourceLanguage.Code, l.Code)
		seen[l.Code] = true
	}
	l, ok := LookupLanguage("ja")
	require.True(t, ok)
	assert.Equal(t, "Japanese", l.Name)
}

func TestQuotaHelpers(t *testing.T) {
	q := UserQuota{ClipsCreated: 4, MaxClips: 5}
	assert.Equal(t, 1, q.Remaining())
	q.ClipsCreated = 7
	assert.Equal(t, 0, q.Remaining())

	ts := time.Date(2026, 3, 1, 23, 30, 0, 0, time.FixedZone("x", -3*3600))
	assert.Equal(t, "2026-03-02", QuotaDay(ts))
	assert.Equal(t, TierFree, ParseTier("gold"))
	assert.Equal(t, TierAdmin, ParseTier("admin"))
}
