// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidlingo/internal/blob"
	"github.com/ManuGH/vidlingo/internal/clipadvisor"
	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/ManuGH/vidlingo/internal/queue"
	"github.com/ManuGH/vidlingo/internal/store"
	"github.com/ManuGH/vidlingo/internal/subtitle"
)

// publishVideo runs the main pipeline so the video has sentences and a duration.
func (h *harness) publishVideo() int64 {
	h.t.Helper()
	id := h.seedVideo()
	job := h.begin(id)
	_, err := h.orchestrator().RunMain(context.Background(), job.ID, job.Token)
	require.NoError(h.t, err)
	return id
}

// requestClip creates a clip through the service and returns its job.
func (h *harness) requestClip(req ClipRequest) (*model.Clip, queue.Job) {
	h.t.Helper()
	if req.UserID == 0 {
		req.UserID = 7
	}
	c, res, err := h.service().CreateClip(context.Background(), req)
	require.NoError(h.t, err)
	require.Equal(h.t, EnqueueStarted, res)
	require.Equal(h.t, model.ClipProcessing, c.Status)
	jobs := h.queue.Jobs()
	job := jobs[len(jobs)-1]
	require.Equal(h.t, queue.KindClip, job.Kind)
	require.Equal(h.t, c.ID, job.ID)
	return c, job
}

func ptr(f float64) *float64 { return &f }

func TestRunClipFallbackWhenAdvisorUnreachable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	vid := h.publishVideo()
	c, job := h.requestClip(ClipRequest{VideoID: vid, SearchPhrase: "xyz123"})

	require.NoError(t, h.orchestrator().Handle(ctx, job))

	got, err := h.store.GetClip(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClipReady, got.Status)
	require.NotNil(t, got.StartTime)
	require.NotNil(t, got.EndTime)
	assert.Equal(t, 0.0, *got.StartTime)
	assert.Equal(t, 10.0, *got.EndTime)
	assert.False(t, got.CompletedAt.IsZero())

	require.Len(t, h.advisor.got, 1)
	assert.Empty(t, h.advisor.got[0].Matching)
	assert.Len(t, h.advisor.got[0].Sentences, 2)

	require.NotEmpty(t, h.media.cuts)
	assert.Equal(t, cutCall{Start: 0, Duration: 10}, h.media.cuts[len(h.media.cuts)-1])
	assert.Equal(t, 1.0, h.media.thumbs[len(h.media.thumbs)-1])

	for _, key := range []string{got.ClipKey, got.ThumbnailKey, got.SubtitleKey} {
		assert.True(t, h.exists(key), key)
	}
	cues := readCues(t, h, got.SubtitleKey)
	assert.Len(t, cues, 2)
	h.assertTempClean()
}

func TestRunClipClampsAdvisorAnswer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	vid := h.publishVideo()
	h.advisor.err = nil
	h.advisor.bounds = clipadvisor.Bounds{Start: 10, End: 11}
	c, job := h.requestClip(ClipRequest{VideoID: vid, SearchPhrase: "BYE"})

	require.NoError(t, h.orchestrator().RunClip(ctx, job.ID))

	require.Len(t, h.advisor.got, 1)
	assert.Equal(t, []int{1}, h.advisor.got[0].Matching)

	got, err := h.store.GetClip(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClipReady, got.Status)
	assert.Equal(t, 10.0, *got.StartTime)
	assert.Equal(t, 13.0, *got.EndTime)
	// No sentence overlaps [10, 13).
	assert.Empty(t, got.SubtitleKey)
	assert.False(t, h.exists(blob.ClipSubtitleKey(c.ID)))
}

func TestRunClipExplicitBoundsSlicesSubtitle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	vid := h.publishVideo()
	c, job := h.requestClip(ClipRequest{VideoID: vid, Start: ptr(0.5), End: ptr(5.2)})

	require.NoError(t, h.orchestrator().RunClip(ctx, job.ID))
	assert.Empty(t, h.advisor.got, "explicit bounds skip the advisor")

	got, err := h.store.GetClip(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, model.ClipReady, got.Status)

	want := []subtitle.Cue{
		{Start: 0, End: 0.6, Text: "Hello world."},
		{Start: 4.5, End: 4.7, Text: "Bye"},
	}
	opt := cmpopts.EquateApprox(0, 0.0005)
	if diff := cmp.Diff(want, readCues(t, h, got.SubtitleKey), opt); diff != "" {
		t.Fatalf("clip subtitle mismatch (-want +got):\n%s", diff)
	}
}

func TestRunClipRejectsBoundsBeyondSource(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	vid := h.publishVideo()
	c, job := h.requestClip(ClipRequest{VideoID: vid, Start: ptr(100), End: ptr(200)})

	err := h.orchestrator().RunClip(ctx, job.ID)
	require.ErrorIs(t, err, clipadvisor.ErrInvalidBounds)

	got, err := h.store.GetClip(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClipFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "beyond source duration")
	assert.Empty(t, got.ClipKey)
}

func TestRunClipFailureMessageIsBounded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	vid := h.publishVideo()
	h.media.thumbErr = errors.New(strings.Repeat("é", 600))
	c, job := h.requestClip(ClipRequest{VideoID: vid, Start: ptr(0), End: ptr(4)})

	require.Error(t, h.orchestrator().RunClip(ctx, job.ID))

	got, err := h.store.GetClip(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClipFailed, got.Status)
	assert.Equal(t, 500, utf8.RuneCountInString(got.ErrorMessage))
	assert.Empty(t, got.ClipKey)
	assert.Empty(t, got.ThumbnailKey)
	assert.Empty(t, got.SubtitleKey)
	h.assertTempClean()
}

func TestRunClipUploadFailureRemovesPartialObjects(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	vid := h.publishVideo()
	c, job := h.requestClip(ClipRequest{VideoID: vid, Start: ptr(0), End: ptr(4)})

	h.deps.Blobs = &failingBlobs{Store: h.blobs, prefix: "clips/subtitles/"}
	err := h.orchestrator().RunClip(ctx, job.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload clip subtitle")

	got, err := h.store.GetClip(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClipFailed, got.Status)
	assert.False(t, h.exists(blob.ClipKey(c.ID)))
	assert.False(t, h.exists(blob.ClipThumbnailKey(c.ID)))
}

func TestRunClipIgnoresClipNotProcessing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	vid := h.seedVideo()
	c, err := h.store.CreateClip(ctx, &model.Clip{UserID: 1, VideoID: vid, SearchPhrase: "hello"}, 5)
	require.NoError(t, err)

	err = h.orchestrator().RunClip(ctx, c.ID)
	require.ErrorIs(t, err, store.ErrStaleRun)
	assert.Empty(t, h.media.cuts)
}

func TestTruncateMessage(t *testing.T) {
	assert.Equal(t, "abc", TruncateMessage("abc", 5))
	assert.Equal(t, "ab", TruncateMessage("abc", 2))
	assert.Equal(t, "日本", TruncateMessage("日本語", 2))
	assert.Equal(t, "abc", TruncateMessage("abc", 0))
}
