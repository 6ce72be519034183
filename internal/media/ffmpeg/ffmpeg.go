// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ffmpeg wraps the ffmpeg and ffprobe binaries used by the pipelines.
// Every command runs in its own process group with a timeout scaled by the
// media duration, and long-running encodes are aborted when their progress
// stops advancing.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/metrics"
	"github.com/ManuGH/vidlingo/internal/procgroup"
	"github.com/rs/zerolog"
)

// Config controls binaries and time limits.
type Config struct {
	Bin           string
	ProbeBin      string
	MinTimeout    time.Duration
	TimeoutFactor float64
	KillGrace     time.Duration
	StallTimeout  time.Duration
}

// Runner executes media commands.
type Runner struct {
	cfg    Config
	logger zerolog.Logger
}

// New applies defaults for unset fields.
func New(cfg Config) *Runner {
	if cfg.Bin == "" {
		cfg.Bin = "ffmpeg"
	}
	if cfg.ProbeBin == "" {
		cfg.ProbeBin = "ffprobe"
	}
	if cfg.MinTimeout <= 0 {
		cfg.MinTimeout = 2 * time.Minute
	}
	if cfg.TimeoutFactor <= 0 {
		cfg.TimeoutFactor = 2
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = 5 * time.Second
	}
	return &Runner{cfg: cfg, logger: log.WithComponent("ffmpeg")}
}

// CommandError is a non-zero exit with the tail of stderr attached.
type CommandError struct {
	Op       string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: exit %d: %v", e.Op, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s: exit %d: %v: %s", e.Op, e.ExitCode, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Timeout is the wall-clock budget for processing media of the given length.
func (r *Runner) Timeout(duration float64) time.Duration {
	scaled := time.Duration(duration * r.cfg.TimeoutFactor * float64(time.Second))
	if scaled < r.cfg.MinTimeout {
		return r.cfg.MinTimeout
	}
	return scaled
}

func secs(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }

// run executes bin with args. When progress is true, "-progress pipe:1" is
// expected in args and the stall detector watches stdout.
func (r *Runner) run(ctx context.Context, op, bin string, args []string, timeout time.Duration, progress bool) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stallCtx, stall := context.WithCancelCause(runCtx)
	defer stall(nil)

	cmd := exec.Command(bin, args...) // #nosec G204 -- bin comes from config, args are built here
	stderr := newTail(4096)
	cmd.Stderr = stderr

	var stdout []byte
	var finish func()
	if progress && r.cfg.StallTimeout > 0 {
		w := newProgressWatch(r.cfg.StallTimeout)
		cmd.Stdout, finish = w.attach(stallCtx, stall)
	} else {
		buf := newTail(1 << 20)
		cmd.Stdout = buf
		finish = func() { stdout = buf.Bytes() }
	}

	start := time.Now()
	err := procgroup.Run(stallCtx, cmd, r.cfg.KillGrace)
	finish()

	ev := r.logger.Debug()
	if err != nil {
		ev = r.logger.Warn().Err(err)
	}
	ev.Str(log.FieldEvent, "ffmpeg.exec").
		Str("op", op).
		Dur("elapsed", time.Since(start)).
		Msg("media command finished")

	if err == nil {
		metrics.IncMediaCommand(op, "ok")
		return stdout, nil
	}

	switch {
	case errors.Is(context.Cause(stallCtx), ErrStalled):
		metrics.IncMediaCommand(op, "stalled")
		return nil, fmt.Errorf("%s: %w", op, ErrStalled)
	case errors.Is(err, procgroup.ErrKilled):
		metrics.IncMediaCommand(op, "timeout")
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.IncMediaCommand(op, "error")
	exit := -1
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		exit = ee.ExitCode()
	}
	return nil, &CommandError{Op: op, ExitCode: exit, Stderr: stderr.String(), Err: err}
}

// Thumbnail writes one frame taken at offset seconds, scaled to 320px wide.
func (r *Runner) Thumbnail(ctx context.Context, src, dest string, offset float64) error {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", secs(offset),
		"-i", src,
		"-vframes", "1",
		"-vf", "scale=320:-1",
		dest,
	}
	_, err := r.run(ctx, "thumbnail", r.cfg.Bin, args, r.cfg.MinTimeout, false)
	return err
}

// ExtractAudio writes a 16 kHz mono signed 16-bit PCM WAV of src.
func (r *Runner) ExtractAudio(ctx context.Context, src, dest string, duration float64) error {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostats", "-y",
		"-i", src,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		"-progress", "pipe:1",
		dest,
	}
	_, err := r.run(ctx, "extract_audio", r.cfg.Bin, args, r.Timeout(duration), true)
	return err
}

// Cut stream-copies [start, start+duration) of src into dest without re-encoding.
func (r *Runner) Cut(ctx context.Context, src, dest string, start, duration float64) error {
	if duration <= 0 {
		return fmt.Errorf("cut: non-positive duration %s", secs(duration))
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostats", "-y",
		"-ss", secs(start),
		"-i", src,
		"-t", secs(duration),
		"-c", "copy",
		"-avoid_negative_ts", "1",
		"-progress", "pipe:1",
		dest,
	}
	_, err := r.run(ctx, "cut", r.cfg.Bin, args, r.Timeout(duration), true)
	return err
}
