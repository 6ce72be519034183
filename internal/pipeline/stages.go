// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/vidlingo/internal/blob"
	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/metrics"
	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/ManuGH/vidlingo/internal/resilience"
	"github.com/ManuGH/vidlingo/internal/search"
	"github.com/ManuGH/vidlingo/internal/segment"
	"github.com/ManuGH/vidlingo/internal/stt"
	"github.com/ManuGH/vidlingo/internal/subtitle"
)

// videoThumbnailOffset is where the video thumbnail is taken, pulled back to
// half the duration for short videos.
const videoThumbnailOffset = 5.0

// metadataTimeout bounds stage 0, which has no retry policy of its own.
const metadataTimeout = 10 * time.Minute

// downloadSource fetches the raw video into dir. A missing source object is
// permanent.
func (o *Orchestrator) downloadSource(ctx context.Context, v *model.Video, dir string) (string, error) {
	if v.VideoKey == "" {
		return "", resilience.Permanent(fmt.Errorf("video %d has no source object", v.ID))
	}
	ext := path.Ext(v.VideoKey)
	if ext == "" {
		ext = ".mp4"
	}
	dest := filepath.Join(dir, "source"+ext)
	if err := o.deps.Blobs.Download(ctx, v.VideoKey, dest); err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidKey) {
			return "", resilience.Permanent(fmt.Errorf("download source: %w", err))
		}
		return "", fmt.Errorf("download source: %w", err)
	}
	return dest, nil
}

// enrichMetadata probes the source, renders a thumbnail and stores both.
// It is best-effort: failures are logged and the run continues.
func (o *Orchestrator) enrichMetadata(ctx context.Context, st *RunState) {
	start := time.Now()
	logger := log.WithContext(ctx, log.WithComponent("pipeline")).With().
		Int64(log.FieldVideoID, st.Video.ID).
		Str(log.FieldStage, string(StageMetadata)).
		Logger()

	err := o.probeAndThumbnail(ctx, st)
	res := StageResult{Stage: StageMetadata, Severity: SeverityOptional, Outcome: OutcomeOK, Duration: time.Since(start)}
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		logger.Warn().Err(err).Str(log.FieldEvent, "stage.failed").Msg("metadata enrichment failed, continuing")
	} else {
		logger.Info().
			Float64("duration_s", st.Video.Duration).
			Str("resolution", st.Video.Resolution).
			Str(log.FieldEvent, "stage.done").
			Msg("metadata stored")
	}
	metrics.ObserveStage(PipelineMain, string(StageMetadata), res.Outcome, res.Duration)
	st.Results = append(st.Results, res)
}

func (o *Orchestrator) probeAndThumbnail(ctx context.Context, st *RunState) error {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	dir, cleanup, err := o.tempDir("metadata")
	if err != nil {
		return err
	}
	defer cleanup()

	v := st.Video
	src, err := o.downloadSource(ctx, v, dir)
	if err != nil {
		return err
	}
	probe, err := o.deps.Media.Probe(ctx, src)
	if err != nil {
		return err
	}

	offset := videoThumbnailOffset
	if probe.Duration > 0 && probe.Duration < 2*offset {
		offset = probe.Duration / 2
	}
	thumb := filepath.Join(dir, "thumbnail.jpg")
	if err := o.deps.Media.Thumbnail(ctx, src, thumb, offset); err != nil {
		return err
	}
	key := blob.VideoThumbnailKey(v.ID)
	if err := o.deps.Blobs.PutFile(ctx, key, thumb, blob.ContentTypeJPEG); err != nil {
		return fmt.Errorf("upload thumbnail: %w", err)
	}

	info := model.MediaInfo{Duration: probe.Duration, Resolution: probe.Resolution(), ThumbnailKey: key}
	if err := o.deps.Store.UpdateMediaInfo(ctx, v.ID, info); err != nil {
		return err
	}
	v.Duration, v.Resolution, v.ThumbnailKey = info.Duration, info.Resolution, info.ThumbnailKey
	return nil
}

// extractAudio renders the mono 16 kHz track and uploads it.
func (o *Orchestrator) extractAudio(ctx context.Context, st *RunState) error {
	dir, cleanup, err := o.tempDir("audio")
	if err != nil {
		return err
	}
	defer cleanup()

	v := st.Video
	src, err := o.downloadSource(ctx, v, dir)
	if err != nil {
		return err
	}
	wav := filepath.Join(dir, "audio.wav")
	if err := o.deps.Media.ExtractAudio(ctx, src, wav, v.Duration); err != nil {
		return err
	}
	key := blob.AudioKey(v.ID)
	if err := o.deps.Blobs.PutFile(ctx, key, wav, blob.ContentTypeWAV); err != nil {
		return fmt.Errorf("upload audio: %w", err)
	}
	if err := o.deps.Store.SetAudioKey(ctx, v.ID, key); err != nil {
		return err
	}
	st.AudioKey = key
	v.AudioKey = key
	return nil
}

// transcribe sends the audio to speech recognition, stores the raw
// transcript and publishes a first English subtitle from its segments.
func (o *Orchestrator) transcribe(ctx context.Context, st *RunState) error {
	v := st.Video
	url, err := o.deps.Blobs.URL(ctx, st.AudioKey, o.opts.AudioURLTTL)
	if err != nil {
		return fmt.Errorf("audio url: %w", err)
	}
	t, err := o.deps.STT.Transcribe(ctx, stt.Request{AudioURL: url, Language: v.Language, Align: true})
	if err != nil {
		return err
	}
	t.VideoID = v.ID
	if t.Language == "" {
		t.Language = model.SourceLanguage.Code
	}
	id, err := o.deps.Store.UpsertTranscript(ctx, t)
	if err != nil {
		return err
	}
	st.TranscriptID = id

	if _, err := o.putSubtitle(ctx, v.ID, model.SourceLanguage, subtitle.FromSegments(t.Segments)); err != nil {
		return err
	}
	return nil
}

// chunk segments the stored word stream into sentences, replaces the old
// sentence set and republishes the English subtitle on the new boundaries.
func (o *Orchestrator) chunk(ctx context.Context, st *RunState) error {
	v := st.Video
	t, err := o.deps.Store.GetTranscriptByVideo(ctx, v.ID)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}
	if len(t.Words) == 0 {
		return fmt.Errorf("transcript %d has no words", t.ID)
	}

	params := o.opts.Segment
	params.Language = t.Language
	sentences, err := o.deps.Segmenter.Segment(ctx, t.Words, params)
	if err != nil {
		return err
	}
	if len(sentences) == 0 {
		return fmt.Errorf("segmenter returned no sentences for transcript %d", t.ID)
	}
	stored, err := o.deps.Store.ReplaceSentences(ctx, t.ID, sentences)
	if err != nil {
		return err
	}
	st.TranscriptID = t.ID
	st.Sentences = stored

	o.reportChunkQuality(ctx, v.ID, stored)

	if _, err := o.putSubtitle(ctx, v.ID, model.SourceLanguage, subtitle.FromSentences(stored)); err != nil {
		return err
	}
	return nil
}

// reportChunkQuality logs validation issues as warnings. Timing noise from
// recognition is expected, so issues never fail the stage.
func (o *Orchestrator) reportChunkQuality(ctx context.Context, videoID int64, sentences []model.Sentence) {
	report := segment.Validate(sentences, o.opts.MaxGap)
	if report.OK() {
		return
	}
	counts := make(map[string]int)
	for _, issue := range report.Issues {
		counts[issue.Kind]++
	}
	for kind, n := range counts {
		metrics.AddChunkIssues(kind, n)
	}

	const maxLogged = 10
	logger := log.WithContext(ctx, log.WithComponent("pipeline")).With().Int64(log.FieldVideoID, videoID).Logger()
	issues := make([]string, 0, min(len(report.Issues), maxLogged))
	for i, issue := range report.Issues {
		if i == maxLogged {
			break
		}
		issues = append(issues, issue.String())
	}
	logger.Warn().
		Int("issues", len(report.Issues)).
		Str("sample", strings.Join(issues, "; ")).
		Str(log.FieldEvent, "chunk.validation").
		Msg("sentence validation reported data-quality issues")
}

// putSubtitle encodes cues, uploads them and upserts the subtitle row.
func (o *Orchestrator) putSubtitle(ctx context.Context, videoID int64, lang model.Language, cues []subtitle.Cue) (string, error) {
	data := subtitle.EncodeVTT(cues)
	key := blob.SubtitleKey(videoID, lang.Code)
	if err := o.deps.Blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), blob.ContentTypeVTT); err != nil {
		return "", fmt.Errorf("upload %s subtitle: %w", lang.Code, err)
	}
	sub := &model.Subtitle{
		VideoID:   videoID,
		Language:  lang.Code,
		Name:      lang.Name,
		Key:       key,
		IsDefault: lang.Code == model.SourceLanguage.Code,
		Source:    model.SourceAIGenerated,
	}
	if err := o.deps.Store.UpsertSubtitle(ctx, sub); err != nil {
		return "", err
	}
	return key, nil
}

// index replaces the video's search documents.
func (o *Orchestrator) index(ctx context.Context, st *RunState) error {
	if _, ok := o.deps.Indexer.(search.Noop); ok {
		return skip(search.ErrUnavailable)
	}
	sentences, err := o.deps.Store.ListSentences(ctx, st.Video.ID)
	if err != nil {
		return err
	}
	n, err := o.deps.Indexer.ReindexVideo(ctx, st.Video.ID, search.Documents(st.Video, sentences))
	if err != nil {
		return err
	}
	st.IndexedDocs = n
	return nil
}
