// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ManuGH/vidlingo/internal/config"
	"github.com/ManuGH/vidlingo/internal/daemon"
	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "vidlingo",
		Short:         "Video language-learning pipeline worker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing default .env is fine; an explicit one must exist.
			if err := godotenv.Load(opts.envFile); err != nil && cmd.Flags().Changed("env-file") {
				return fmt.Errorf("load env file: %w", err)
			}
			log.Configure(log.Config{Level: "info", Service: "vidlingo", Version: version.Version})
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (YAML)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")

	root.AddCommand(
		newServeCmd(opts),
		newEnqueueCmd(opts),
		newSweepCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadRuntime resolves configuration and opens every collaborator.
func loadRuntime(ctx context.Context, opts *rootOptions) (*daemon.Runtime, error) {
	loader := config.NewLoader(opts.configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	log.Reset(log.Config{Level: cfg.Log.Level, Service: cfg.Log.Service, Version: cfg.Version})

	logger := log.WithComponent("cli")
	source := "env+defaults"
	if opts.configPath != "" {
		source = "file"
	}
	logger.Info().
		Str(log.FieldEvent, "config.loaded").
		Str("source", source).
		Str(log.FieldPath, opts.configPath).
		Msg("configuration loaded")

	return daemon.Build(ctx, config.NewHolder(cfg, loader, opts.configPath))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}
