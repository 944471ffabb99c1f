package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alem-hub/learnhub/config"
	"github.com/alem-hub/learnhub/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "learnhub",
	Short:         "Learning progress, experience and course access API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

// loadConfig читает конфигурацию и строит логгер по LOG_LEVEL.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	format := logger.FormatJSON
	if cfg.IsDevelopment() {
		format = logger.FormatText
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    format,
		AddSource: cfg.IsDevelopment(),
	}).With(
		logger.String("service", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)

	return cfg, log, nil
}
