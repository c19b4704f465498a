package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/chanchat/internal/app"
	"github.com/vovakirdan/chanchat/internal/config"
	applog "github.com/vovakirdan/chanchat/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "chanchat",
		Short:         "Channel-based group chat server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, logLevel)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml (written with defaults if missing)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	return cmd
}

func run(parent context.Context, configPath, logLevel string) error {
	bootLog := applog.New("info")

	cfg, resolvedPath, err := config.Load(bootLog, configPath)
	if err != nil {
		bootLog.Error().Err(err).Msg("failed to load config")
		return err
	}
	cfg.UpdateFrom(config.Config{LogLevel: strings.ToLower(logLevel)})
	if err := config.Validate(cfg); err != nil {
		bootLog.Error().Err(err).Msg("invalid config")
		return err
	}

	logger, closer, err := applog.NewWithFile(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		bootLog.Error().Err(err).Str("log_file", cfg.LogFile).Msg("failed to open log file")
		return err
	}
	defer closer.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return fmt.Errorf("init app: %w", err)
	}

	logger.Info().
		Str("config", resolvedPath).
		Str("addr", application.ChatAddr().String()).
		Int("max_sessions", cfg.MaxSessions).
		Msg("starting chanchat server")

	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
