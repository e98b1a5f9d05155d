package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sugar/internal/config"
	"sugar/internal/logger"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "sugar",
	Short:         "sugar records blood glucose readings per user",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to an optional .env file")
	rootCmd.AddCommand(serveCmd, createUserCmd)
}

// setup loads configuration and builds the logger shared by all commands.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.LogLevel), nil
}
