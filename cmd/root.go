package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psds-microservice/problem-portal/internal/config"
	"github.com/psds-microservice/problem-portal/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "problem-portal",
	Short:         "Self-service known problems portal: search, filter, community solutions",
	RunE:          runAPI,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
}

// setup loads the config and builds the logger every command starts from.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}
