// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vidlingo/internal/daemon"
	"github.com/ManuGH/vidlingo/internal/pipeline"
	"github.com/ManuGH/vidlingo/internal/queue"
)

func newEnqueueCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Trigger a pipeline run",
		Long: `Triggers a main (video) or clip pipeline run.

With the redis queue the job is handed to the running workers. With the
in-memory queue there are no other workers, so the run executes in this
process before the command returns.`,
	}
	cmd.AddCommand(
		enqueueSubCmd(opts, "video", "Run the main pipeline for a video",
			func(ctx context.Context, rt *daemon.Runtime, id int64) (pipeline.EnqueueResult, error) {
				return rt.Service.EnqueueMainPipeline(ctx, id)
			}),
		enqueueSubCmd(opts, "clip", "Run the clip pipeline for a clip",
			func(ctx context.Context, rt *daemon.Runtime, id int64) (pipeline.EnqueueResult, error) {
				return rt.Service.EnqueueClipPipeline(ctx, id)
			}),
	)
	return cmd
}

type enqueueFunc func(ctx context.Context, rt *daemon.Runtime, id int64) (pipeline.EnqueueResult, error)

func enqueueSubCmd(opts *rootOptions, name, short string, enqueue enqueueFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid %s id %q", name, args[0])
			}
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

			res, err := enqueue(ctx, rt, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d: %s\n", name, id, res)
			if res != pipeline.EnqueueStarted {
				return nil
			}
			if _, inProcess := rt.Queue.(*queue.MemoryQueue); inProcess {
				return drain(ctx, rt)
			}
			return nil
		},
	}
}

// drain closes the in-memory queue and works it off.
func drain(ctx context.Context, rt *daemon.Runtime) error {
	if err := rt.Queue.Close(); err != nil {
		return err
	}
	return rt.Pool().Run(ctx)
}
