// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidlingo/internal/blob"
	"github.com/ManuGH/vidlingo/internal/clipadvisor"
	"github.com/ManuGH/vidlingo/internal/config"
	"github.com/ManuGH/vidlingo/internal/media/ffmpeg"
	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/ManuGH/vidlingo/internal/persistence/sqlite"
	"github.com/ManuGH/vidlingo/internal/queue"
	"github.com/ManuGH/vidlingo/internal/resilience"
	"github.com/ManuGH/vidlingo/internal/search"
	"github.com/ManuGH/vidlingo/internal/segment"
	"github.com/ManuGH/vidlingo/internal/store"
	"github.com/ManuGH/vidlingo/internal/stt"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type cutCall struct {
	Start, Duration float64
}

type fakeMedia struct {
	mu       sync.Mutex
	probe    ffmpeg.ProbeResult
	probeErr error
	thumbErr error
	audioErr error
	cuts     []cutCall
	thumbs   []float64
}

func writeFake(dest, content string) error {
	return os.WriteFile(dest, []byte(content), 0o600)
}

func (m *fakeMedia) Probe(_ context.Context, src string) (ffmpeg.ProbeResult, error) {
	if _, err := os.Stat(src); err != nil {
		return ffmpeg.ProbeResult{}, err
	}
	return m.probe, m.probeErr
}

func (m *fakeMedia) Thumbnail(_ context.Context, _, dest string, offset float64) error {
	m.mu.Lock()
	m.thumbs = append(m.thumbs, offset)
	m.mu.Unlock()
	if m.thumbErr != nil {
		return m.thumbErr
	}
	return writeFake(dest, "jpeg")
}

func (m *fakeMedia) ExtractAudio(_ context.Context, _, dest string, _ float64) error {
	if m.audioErr != nil {
		return m.audioErr
	}
	return writeFake(dest, "wav")
}

func (m *fakeMedia) Cut(_ context.Context, _, dest string, start, duration float64) error {
	m.mu.Lock()
	m.cuts = append(m.cuts, cutCall{Start: start, Duration: duration})
	m.mu.Unlock()
	return writeFake(dest, "mp4")
}

// scenarioTranscript is "Hello world." followed by "Bye" after a pause.
func scenarioTranscript() *model.Transcript {
	words := []model.Word{
		{Word: "Hello", Start: 0.0, End: 0.5, Confidence: 1},
		{Word: "world", Start: 0.5, End: 1.0, Confidence: 1},
		{Word: ".", Start: 1.0, End: 1.1, Confidence: 1},
		{Word: "Bye", Start: 5.0, End: 5.3, Confidence: 1},
	}
	return &model.Transcript{
		Language: "en",
		FullText: "Hello world. Bye",
		Words:    words,
		Segments: []model.Segment{
			{Text: "Hello world.", Start: 0, End: 1.1, Words: words[:3]},
			{Text: "Bye", Start: 5.0, End: 5.3, Words: words[3:]},
		},
		Duration: 5.3,
	}
}

type fakeSTT struct {
	mu    sync.Mutex
	calls int
	reqs  []stt.Request
	err   error
}

func (f *fakeSTT) Transcribe(_ context.Context, req stt.Request) (*model.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return scenarioTranscript(), nil
}

type fakeTranslator struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls map[string]int
}

func (f *fakeTranslator) Translate(_ context.Context, target model.Language, texts []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[target.Code]++
	if f.fail[target.Code] {
		return nil, errors.New("model overloaded")
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = "[" + target.Code + "] " + t
	}
	return out, nil
}

func (f *fakeTranslator) Calls(code string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[code]
}

type fakeIndexer struct {
	mu   sync.Mutex
	docs map[int64][]search.Document
	err  error
}

func (f *fakeIndexer) ReindexVideo(_ context.Context, videoID int64, docs []search.Document) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.docs == nil {
		f.docs = make(map[int64][]search.Document)
	}
	f.docs[videoID] = docs
	return len(docs), nil
}

func (f *fakeIndexer) DeleteVideo(_ context.Context, videoID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, videoID)
	return nil
}

type fakeAdvisor struct {
	bounds clipadvisor.Bounds
	err    error
	got    []clipadvisor.Request
}

func (f *fakeAdvisor) Determine(_ context.Context, req clipadvisor.Request) (clipadvisor.Bounds, error) {
	f.got = append(f.got, req)
	return f.bounds, f.err
}

// recordingQueue keeps published jobs for the test to run by hand.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []queue.Job
	err  error
}

func (q *recordingQueue) Publish(_ context.Context, job queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Consume(ctx context.Context, _ queue.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) Jobs() []queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Job(nil), q.jobs...)
}

// failingBlobs fails Put/PutFile for keys with the given prefix.
type failingBlobs struct {
	blob.Store
	prefix string
}

func (f *failingBlobs) Put(ctx context.Context, key string, r io.Reader, size int64, ct string) error {
	if strings.HasPrefix(key, f.prefix) {
		return errors.New("object store write refused")
	}
	return f.Store.Put(ctx, key, r, size, ct)
}

func (f *failingBlobs) PutFile(ctx context.Context, key, src, ct string) error {
	if strings.HasPrefix(key, f.prefix) {
		return errors.New("object store write refused")
	}
	return f.Store.PutFile(ctx, key, src, ct)
}

type harness struct {
	t          *testing.T
	clock      *testClock
	store      *store.SqliteStore
	blobs      *blob.FSStore
	media      *fakeMedia
	stt        *fakeSTT
	translator *fakeTranslator
	indexer    *fakeIndexer
	advisor    *fakeAdvisor
	queue      *recordingQueue
	tempDir    string
	deps       Deps
	opts       Options
}

func quickPolicy(attempts int) resilience.Policy {
	return resilience.Policy{MaxAttempts: attempts}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	root := t.TempDir()

	s, err := store.NewSqliteStore(context.Background(), filepath.Join(root, "db.sqlite"), sqlite.DefaultConfig(), store.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	blobs, err := blob.NewFSStore(filepath.Join(root, "objects"))
	require.NoError(t, err)

	h := &harness{
		t:          t,
		clock:      clock,
		store:      s,
		blobs:      blobs,
		media:      &fakeMedia{probe: ffmpeg.ProbeResult{Duration: 120, Width: 1280, Height: 720}},
		stt:        &fakeSTT{},
		translator: &fakeTranslator{},
		indexer:    &fakeIndexer{},
		advisor:    &fakeAdvisor{err: errors.New("advisor unreachable")},
		queue:      &recordingQueue{},
		tempDir:    filepath.Join(root, "tmp"),
	}
	h.deps = Deps{
		Store:      s,
		Blobs:      blobs,
		Media:      h.media,
		STT:        h.stt,
		Segmenter:  segment.LocalChunker{},
		Translator: h.translator,
		Indexer:    h.indexer,
		Advisor:    h.advisor,
	}
	h.opts = Options{
		Audio:         quickPolicy(3),
		Transcription: quickPolicy(3),
		Chunking:      quickPolicy(3),
		Translation:   quickPolicy(3),
		Indexing:      quickPolicy(2),
		Segment: segment.Params{
			Strategy:    segment.StrategyHybrid,
			MaxDuration: 10,
			MinDuration: 1,
			MaxWords:    15,
		},
		MaxGap:       5,
		ClipErrorMax: 500,
		TempDir:      h.tempDir,
	}
	return h
}

func (h *harness) orchestrator() *Orchestrator {
	return New(h.deps, h.opts)
}

func (h *harness) service() *Service {
	return &Service{
		Store: h.store,
		Queue: h.queue,
		Quota: func() config.QuotaConfig { return config.QuotaConfig{Free: 5, Premium: 50, Admin: 1000} },
		Now:   h.clock.Now,
	}
}

// seedVideo stores a draft video with a source object.
func (h *harness) seedVideo() int64 {
	h.t.Helper()
	ctx := context.Background()
	key := "videos/intro.mp4"
	require.NoError(h.t, h.blobs.Put(ctx, key, strings.NewReader("source"), 6, blob.ContentTypeMP4))
	id, err := h.store.CreateVideo(ctx, &model.Video{Title: "Intro", Level: "beginner", VideoKey: key, CategoryID: 2})
	require.NoError(h.t, err)
	return id
}

// begin moves the video to processing and returns the queued job.
func (h *harness) begin(videoID int64) queue.Job {
	h.t.Helper()
	res, err := h.service().EnqueueMainPipeline(context.Background(), videoID)
	require.NoError(h.t, err)
	require.Equal(h.t, EnqueueStarted, res)
	jobs := h.queue.Jobs()
	require.NotEmpty(h.t, jobs)
	return jobs[len(jobs)-1]
}

func (h *harness) assertTempClean() {
	h.t.Helper()
	entries, err := os.ReadDir(h.tempDir)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	require.NoError(h.t, err)
	require.Empty(h.t, entries, "stage temp directories must be removed")
}

func (h *harness) exists(key string) bool {
	h.t.Helper()
	rc, err := h.blobs.Get(context.Background(), key)
	if errors.Is(err, blob.ErrNotFound) {
		return false
	}
	require.NoError(h.t, err)
	_ = rc.Close()
	return true
}
