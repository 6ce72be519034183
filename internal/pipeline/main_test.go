// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidlingo/internal/blob"
	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/ManuGH/vidlingo/internal/queue"
	"github.com/ManuGH/vidlingo/internal/resilience"
	"github.com/ManuGH/vidlingo/internal/store"
	"github.com/ManuGH/vidlingo/internal/subtitle"
)

func readCues(t *testing.T, h *harness, key string) []subtitle.Cue {
	t.Helper()
	rc, err := h.blobs.Get(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	cues, err := subtitle.DecodeVTT(data)
	require.NoError(t, err)
	return cues
}

func TestRunMainPublishes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.seedVideo()
	job := h.begin(id)

	st, err := h.orchestrator().RunMain(ctx, job.ID, job.Token)
	require.NoError(t, err)

	v, err := h.store.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.VideoPublished, v.Status)
	assert.False(t, v.PublishedAt.IsZero())
	assert.Empty(t, v.LastError)
	assert.Equal(t, 120.0, v.Duration)
	assert.Equal(t, "1280x720", v.Resolution)
	assert.Equal(t, blob.VideoThumbnailKey(id), v.ThumbnailKey)
	assert.Equal(t, blob.AudioKey(id), v.AudioKey)
	assert.True(t, h.exists(v.ThumbnailKey))
	assert.True(t, h.exists(v.AudioKey))

	require.Len(t, h.stt.reqs, 1)
	assert.True(t, strings.HasPrefix(h.stt.reqs[0].AudioURL, "file://"))
	assert.True(t, h.stt.reqs[0].Align)

	sentences, err := h.store.ListSentences(ctx, id)
	require.NoError(t, err)
	type span struct {
		Index      int
		Text       string
		Start, End float64
	}
	var got []span
	for _, s := range sentences {
		got = append(got, span{s.Index, s.Text, s.Start, s.End})
	}
	want := []span{{0, "Hello world.", 0.0, 1.1}, {1, "Bye", 5.0, 5.3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sentences mismatch (-want +got):\n%s", diff)
	}

	subs, err := h.store.ListSubtitles(ctx, id)
	require.NoError(t, err)
	assert.Len(t, subs, 1+len(model.TargetLanguages))
	for _, s := range subs {
		assert.Equal(t, s.Language == "en", s.IsDefault, s.Language)
		assert.Equal(t, model.SourceAIGenerated, s.Source)
	}

	// The English file is rebuilt from sentences, superseding the segment draft.
	en := readCues(t, h, blob.SubtitleKey(id, "en"))
	require.Len(t, en, 2)
	assert.Equal(t, "Hello world.", en[0].Text)

	vi := readCues(t, h, blob.SubtitleKey(id, "vi"))
	require.Len(t, vi, 2)
	assert.Equal(t, "[vi] Hello world.", vi[0].Text)
	assert.InDelta(t, 5.3, vi[1].End, 0.0005)

	docs := h.indexer.docs[id]
	require.Len(t, docs, 2)
	assert.Equal(t, "Intro", docs[0].VideoTitle)
	assert.Equal(t, int64(2), docs[0].CategoryID)
	assert.Equal(t, 2, st.IndexedDocs)

	assert.Len(t, st.Succeeded(), len(model.TargetLanguages))
	for _, stage := range []Stage{StageMetadata, StageAudio, StageTranscription, StageChunking, StageTranslation, StageIndexing} {
		res, ok := st.Result(stage)
		require.True(t, ok, stage)
		assert.Equal(t, OutcomeOK, res.Outcome, stage)
	}
	h.assertTempClean()
}

func TestEnqueueMainPipelineGuard(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.seedVideo()
	svc := h.service()

	res, err := svc.EnqueueMainPipeline(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, EnqueueStarted, res)

	before, err := h.store.GetVideo(ctx, id)
	require.NoError(t, err)

	res, err = svc.EnqueueMainPipeline(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, EnqueueAlreadyInProgress, res)

	after, err := h.store.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.ProcessingStartedAt, after.ProcessingStartedAt)
	assert.Len(t, h.queue.Jobs(), 1)

	res, err = svc.EnqueueMainPipeline(ctx, 9999)
	require.NoError(t, err)
	assert.Equal(t, EnqueueNotFound, res)

	job := h.queue.Jobs()[0]
	assert.Equal(t, queue.KindMain, job.Kind)
	assert.NotEmpty(t, job.CorrelationID)
	assert.NotZero(t, job.Token)
}

func TestEnqueueMainPipelinePublishFailureRevertsToDraft(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.seedVideo()
	h.queue.err = queue.ErrClosed

	_, err := h.service().EnqueueMainPipeline(ctx, id)
	require.ErrorIs(t, err, queue.ErrClosed)

	v, err := h.store.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.VideoDraft, v.Status)
	assert.Contains(t, v.LastError, "schedule pipeline")
}

func TestRunMainFatalStageRevertsToDraft(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.stt.err = errors.New("stt returned 503")
	id := h.seedVideo()
	job := h.begin(id)

	st, err := h.orchestrator().RunMain(ctx, job.ID, job.Token)
	require.Error(t, err)
	var exhausted *resilience.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, h.stt.calls)

	v, err := h.store.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.VideoDraft, v.Status)
	assert.Contains(t, v.LastError, "transcription")
	assert.Contains(t, v.LastError, "stt returned 503")
	assert.True(t, v.PublishedAt.IsZero())

	// Later stages never ran.
	_, ran := st.Result(StageChunking)
	assert.False(t, ran)
	assert.Zero(t, h.translator.Calls("vi"))
	h.assertTempClean()
}

func TestRunMainMissingSourceIsPermanent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.seedVideo()
	require.NoError(t, h.blobs.Delete(ctx, "videos/intro.mp4"))
	job := h.begin(id)

	st, err := h.orchestrator().RunMain(ctx, job.ID, job.Token)
	require.Error(t, err)
	assert.True(t, resilience.IsPermanent(err))

	meta, ok := st.Result(StageMetadata)
	require.True(t, ok)
	assert.Equal(t, OutcomeFailed, meta.Outcome)

	v, err := h.store.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.VideoDraft, v.Status)
	assert.Contains(t, v.LastError, "audio")
	h.assertTempClean()
}

func TestRunMainTranslationFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.translator.fail = map[string]bool{"ja": true}
	id := h.seedVideo()
	job := h.begin(id)

	st, err := h.orchestrator().RunMain(ctx, job.ID, job.Token)
	require.NoError(t, err)

	v, err := h.store.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.VideoPublished, v.Status)

	subs, err := h.store.ListSubtitles(ctx, id)
	require.NoError(t, err)
	assert.Len(t, subs, len(model.TargetLanguages))
	for _, s := range subs {
		assert.NotEqual(t, "ja", s.Language)
	}

	assert.Equal(t, 3, h.translator.Calls("ja"))
	assert.Equal(t, 1, h.translator.Calls("vi"))

	res, ok := st.Result(StageTranslation)
	require.True(t, ok)
	assert.Equal(t, SeverityDegraded, res.Severity)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.False(t, res.Aborts())
	assert.NotContains(t, st.Succeeded(), "ja")
	assert.Len(t, st.Succeeded(), len(model.TargetLanguages)-1)

	idx, ok := st.Result(StageIndexing)
	require.True(t, ok)
	assert.Equal(t, OutcomeOK, idx.Outcome)
}

func TestRunMainOptionalCollaboratorsMissing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.deps.Translator = nil
	h.deps.Indexer = nil
	id := h.seedVideo()
	job := h.begin(id)

	st, err := h.orchestrator().RunMain(ctx, job.ID, job.Token)
	require.NoError(t, err)

	v, err := h.store.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.VideoPublished, v.Status)

	subs, err := h.store.ListSubtitles(ctx, id)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "en", subs[0].Language)

	for _, stage := range []Stage{StageTranslation, StageIndexing} {
		res, ok := st.Result(stage)
		require.True(t, ok)
		assert.Equal(t, OutcomeSkipped, res.Outcome, stage)
		assert.NoError(t, res.Err)
	}
}

func TestRunMainIndexingFailureKeepsPublished(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.indexer.err = errors.New("cluster red")
	id := h.seedVideo()
	job := h.begin(id)

	st, err := h.orchestrator().RunMain(ctx, job.ID, job.Token)
	require.NoError(t, err)

	v, err := h.store.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.VideoPublished, v.Status)

	res, ok := st.Result(StageIndexing)
	require.True(t, ok)
	assert.Equal(t, SeverityOptional, res.Severity)
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestRunMainMetadataFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.media.probeErr = errors.New("moov atom not found")
	id := h.seedVideo()
	job := h.begin(id)

	st, err := h.orchestrator().RunMain(ctx, job.ID, job.Token)
	require.NoError(t, err)

	v, err := h.store.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.VideoPublished, v.Status)
	assert.Zero(t, v.Duration)
	assert.Empty(t, v.ThumbnailKey)

	meta, ok := st.Result(StageMetadata)
	require.True(t, ok)
	assert.Equal(t, OutcomeFailed, meta.Outcome)
}

func TestRunMainRerunReplacesOutput(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.seedVideo()
	o := h.orchestrator()

	for i := 0; i < 2; i++ {
		job := h.begin(id)
		_, err := o.RunMain(ctx, job.ID, job.Token)
		require.NoError(t, err)
	}

	sentences, err := h.store.ListSentences(ctx, id)
	require.NoError(t, err)
	require.Len(t, sentences, 2)
	for i, s := range sentences {
		assert.Equal(t, i, s.Index)
	}
	subs, err := h.store.ListSubtitles(ctx, id)
	require.NoError(t, err)
	assert.Len(t, subs, 1+len(model.TargetLanguages))
	assert.Len(t, h.indexer.docs[id], 2)
}

func TestRunMainStaleTokenDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.seedVideo()
	job := h.begin(id)

	_, err := h.orchestrator().RunMain(ctx, job.ID, job.Token+1)
	require.ErrorIs(t, err, store.ErrStaleRun)

	v, err := h.store.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.VideoProcessing, v.Status)
	assert.Zero(t, h.stt.calls)
}

func TestRunMainSkipsJobResetByWatchdog(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.seedVideo()
	first := h.begin(id)

	h.clock.Advance(3 * time.Hour)
	w := &Watchdog{Store: h.store, StaleAfter: 2 * time.Hour, Now: h.clock.Now}
	n, err := w.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	second := h.begin(id)
	require.NotEqual(t, first.Token, second.Token)

	_, err = h.orchestrator().RunMain(ctx, first.ID, first.Token)
	require.ErrorIs(t, err, store.ErrStaleRun)
	assert.Zero(t, h.stt.calls)

	v, err := h.store.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.VideoProcessing, v.Status)
	assert.Equal(t, second.Token, v.RunToken)

	_, err = h.orchestrator().RunMain(ctx, second.ID, second.Token)
	require.NoError(t, err)
	v, err = h.store.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.VideoPublished, v.Status)
}

func TestRunMainDropsJobForIdleVideo(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.seedVideo()

	_, err := h.orchestrator().RunMain(ctx, id, 1)
	require.ErrorIs(t, err, store.ErrStaleRun)
	assert.Zero(t, h.stt.calls)
}

func TestHandleDispatchesByKind(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	o := h.orchestrator()
	id := h.seedVideo()
	job := h.begin(id)

	require.NoError(t, o.Handle(ctx, job))
	assert.False(t, o.Active(id))

	err := o.Handle(ctx, queue.Job{Kind: "bogus", ID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job kind")
}
