// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrStalled is returned when ffmpeg stops reporting progress.
var ErrStalled = errors.New("ffmpeg progress stalled")

// progressWatch follows "-progress pipe:1" key=value output. Any increase of
// out_time_us or total_size counts as a heartbeat.
type progressWatch struct {
	mu        sync.Mutex
	stall     time.Duration
	now       func() time.Time
	last      time.Time
	outTimeUS int64
	totalSize int64
	ended     bool
}

func newProgressWatch(stall time.Duration) *progressWatch {
	return &progressWatch{stall: stall, now: time.Now}
}

func (w *progressWatch) observe(line string) {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	switch key {
	case "out_time_us", "out_time_ms":
		// out_time_ms is microseconds too, for historical reasons.
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > w.outTimeUS {
			w.outTimeUS = n
			w.last = w.now()
		}
	case "total_size":
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > w.totalSize {
			w.totalSize = n
			w.last = w.now()
		}
	case "progress":
		if val == "end" {
			w.ended = true
		}
	}
}

func (w *progressWatch) stalled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.ended && w.now().Sub(w.last) > w.stall
}

// attach returns the writer for cmd.Stdout and a finish func that must be
// called after the process exited.
func (w *progressWatch) attach(ctx context.Context, abort context.CancelCauseFunc) (io.Writer, func()) {
	w.mu.Lock()
	w.last = w.now()
	w.mu.Unlock()

	pr, pw := io.Pipe()
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(2)
	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(pr)
		for sc.Scan() {
			w.observe(sc.Text())
		}
		_, _ = io.Copy(io.Discard, pr)
	}()
	go func() {
		defer wg.Done()
		t := time.NewTicker(tickFor(w.stall))
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if w.stalled() {
					abort(ErrStalled)
					return
				}
			}
		}
	}()

	return pw, func() {
		close(done)
		_ = pw.Close()
		wg.Wait()
	}
}

func tickFor(stall time.Duration) time.Duration {
	tick := stall / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	if tick > time.Second {
		tick = time.Second
	}
	return tick
}

// tail keeps the last max bytes written to it.
type tail struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTail(max int) *tail { return &tail{max: max} }

func (t *tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tail) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return bytes.Clone(t.buf)
}

func (t *tail) String() string { return strings.TrimSpace(string(t.Bytes())) }
