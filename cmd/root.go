package cmd

import (
	"fmt"
	"os"

	"github.com/krishkalaria12/snap-detect/config"
	"github.com/krishkalaria12/snap-detect/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "snap-detect",
		Short:         "Image gallery with object detection",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml, json or toml); defaults to $SNAP_CONFIG")

	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat), nil
}
