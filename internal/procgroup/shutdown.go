// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/metrics"
)

// ErrKilled wraps the wait error of a process that was stopped because its
// context ended.
var ErrKilled = errors.New("process group killed")

func signalResult(err error) string {
	switch {
	case err == nil:
		return "sent"
	case errors.Is(err, syscall.ESRCH):
		return "esrch"
	default:
		return "error"
	}
}

// Terminate stops a process group: SIGTERM, wait up to grace, then SIGKILL.
// It always drains waitCh and returns its error. Safe on nil commands.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	metrics.IncProcTerminate("SIGTERM", signalResult(Kill(cmd, syscall.SIGTERM)))

	select {
	case err := <-waitCh:
		return err
	case <-time.After(grace):
		log.L().Warn().Int("pid", cmd.Process.Pid).Str(log.FieldEvent, "proc.sigkill").Msg("grace period exceeded, sending SIGKILL to process group")
		metrics.IncProcTerminate("SIGKILL", signalResult(Kill(cmd, syscall.SIGKILL)))
		return <-waitCh
	}
}

// Run starts cmd in its own process group and waits for it. When ctx ends
// first the group is terminated and the returned error wraps both ErrKilled
// and the context error.
func Run(ctx context.Context, cmd *exec.Cmd, grace time.Duration) error {
	Set(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		return err
	case <-ctx.Done():
		werr := Terminate(cmd, waitCh, grace)
		return fmt.Errorf("%w: %w (wait: %v)", ErrKilled, ctx.Err(), werr)
	}
}
