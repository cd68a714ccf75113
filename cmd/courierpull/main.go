package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"courier/internal/logging"
	"courier/internal/puller"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string

	cmd := &cobra.Command{
		Use:           "courierpull",
		Short:         "Pull staged artifacts from a courier relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configFlag, logLevelFlag)
		},
	}
	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevelFlag, "log-level", "info", "Log level")
	return cmd
}

func run(parent context.Context, configPath, logLevel string) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if configPath == "" {
		defaultPath, err := puller.DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = defaultPath
	}

	cfg, err := puller.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: logLevel, Format: "console"})
	if err != nil {
		return err
	}
	logger.Debug("loaded puller configuration", logging.String("path", configPath))

	return puller.New(cfg, logger).Run(ctx)
}
