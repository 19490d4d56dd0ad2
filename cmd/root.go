package main

import (
	"fmt"

	"github.com/fazamuttaqien/eventcal/pkg/config"
	"github.com/fazamuttaqien/eventcal/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli holds what every subcommand needs once the root pre-run has finished.
type cli struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "eventcal",
		Short:        "Community calendar service with Google Calendar sync",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(log)

			c.cfg = cfg
			c.logger = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newSyncCmd(c),
	)
	return root
}
