// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the stale-run watchdog and clip retention once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			rt, err := loadRuntime(ctx, opts)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := rt.Close(context.WithoutCancel(ctx)); err == nil {
					err = cerr
				}
			}()

			// No worker runs in this process, so nothing counts as active.
			rt.Watchdog.Active = nil
			reset, err := rt.Watchdog.Sweep(ctx)
			if err != nil {
				return fmt.Errorf("watchdog: %w", err)
			}
			deleted, err := rt.Retention.Sweep(ctx)
			if err != nil {
				return fmt.Errorf("retention: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d stale videos, deleted %d expired clips\n", reset, deleted)
			return nil
		},
	}
}
