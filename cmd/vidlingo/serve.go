// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vidlingo/internal/daemon"
	"github.com/ManuGH/vidlingo/internal/health"
	"github.com/ManuGH/vidlingo/internal/log"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var skipChecks bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the trigger API, worker pool and sweepers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := loadRuntime(ctx, opts)
			if err != nil {
				return err
			}
			logger := log.WithComponent("daemon")
			cfg := rt.Holder.Get()
			if !skipChecks {
				if err := health.PerformStartupChecks(ctx, cfg); err != nil {
					_ = rt.Close(ctx)
					return fmt.Errorf("startup checks failed: %w", err)
				}
			}

			mgr, err := daemon.NewManager(daemon.Deps{
				Logger:     logger,
				Server:     cfg.Server,
				APIHandler: rt.Handler(),
			})
			if err != nil {
				_ = rt.Close(ctx)
				return err
			}

			logger.Info().
				Str("version", cfg.Version).
				Str("queue", cfg.Queue.Backend).
				Str("storage", cfg.Storage.Backend).
				Int("workers", cfg.Queue.Workers).
				Msg("starting vidlingo")
			return daemon.NewApp(logger, mgr, rt).Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&skipChecks, "skip-startup-checks", false, "start even when pre-flight checks fail")
	return cmd
}
