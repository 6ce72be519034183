// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/vidlingo/internal/log"
)

// App runs one worker process: the trigger API, the worker pool, the stale
// run watchdog, the clip retention sweeper and config reloads.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	runtime      *Runtime
	reloadSignal os.Signal
}

func NewApp(logger zerolog.Logger, manager Manager, rt *Runtime) *App {
	return &App{logger: logger, manager: manager, runtime: rt, reloadSignal: syscall.SIGHUP}
}

// Run blocks until ctx is cancelled or a subsystem fails. The runtime is
// closed before Run returns, after every subsystem has stopped.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	defer a.closeRuntime(ctx)

	g, ctx := errgroup.WithContext(ctx)

	// A missing watcher only disables live reload from file changes.
	if err := a.runtime.Holder.StartWatcher(ctx); err != nil {
		a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("config watcher not started")
	}
	if a.reloadSignal != nil {
		g.Go(func() error { return a.reloadOnSignal(ctx) })
	}

	g.Go(func() error { return ignoreCanceled(a.runtime.Pool().Run(ctx)) })
	g.Go(func() error { return ignoreCanceled(a.runtime.Watchdog.Run(ctx)) })
	g.Go(func() error { return ignoreCanceled(a.runtime.Retention.Run(ctx)) })
	g.Go(func() error { return a.manager.Start(ctx) })

	return g.Wait()
}

func (a *App) reloadOnSignal(ctx context.Context) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, a.reloadSignal)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sig:
			a.logger.Info().
				Str(log.FieldEvent, "config.reload_signal").
				Str("signal", a.reloadSignal.String()).
				Msg("reloading config")
			if err := a.runtime.Holder.Reload(ctx); err != nil {
				a.logger.Warn().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("config reload failed")
			}
		}
	}
}

func (a *App) closeRuntime(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := a.runtime.Close(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("runtime closed with errors")
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
