package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/daemon"
	"courier/internal/ledger"
	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/seedbox"
	"courier/internal/transfer"
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
		Use:           "courierd",
		Short:         "Courier relay daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configFlag, logLevelFlag)
		},
	}
	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevelFlag, "log-level", "", "Override the configured log level")
	return cmd
}

func run(parent context.Context, configPath, logLevel string) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, resolvedPath, exists, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if exists {
		logger.Debug("configuration loaded", logging.String("path", resolvedPath))
	} else {
		logger.Warn("no configuration file found, using defaults", logging.String("path", resolvedPath))
	}

	source, err := seedbox.NewClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("create seedbox client: %w", err)
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	gate := transfer.NewGate(cfg, logger)
	notifier := notifications.NewService(cfg)

	d, err := daemon.New(cfg, store, source, gate, notifier, nil, logger)
	if err != nil {
		_ = store.Close()
		return err
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return err
	}

	pidPath, err := writePIDFile(cfg)
	if err != nil {
		logger.Warn("failed to write pid file", logging.Error(err))
	} else {
		defer os.Remove(pidPath)
	}

	<-ctx.Done()
	logger.Info("courierd shutting down")
	return nil
}

func writePIDFile(cfg *config.Config) (string, error) {
	path := filepath.Join(cfg.Paths.LogDir, "courierd.pid")
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
