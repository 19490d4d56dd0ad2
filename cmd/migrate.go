package main

import (
	"fmt"

	"github.com/fazamuttaqien/eventcal/database"
	"github.com/spf13/cobra"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := database.New(ctx, c.cfg.Database.URL, database.Options{
				MaxOpenConns: c.cfg.Database.MaxOpenConns,
				MaxIdleConns: c.cfg.Database.MaxIdleConns,
			}, c.logger)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			if err := database.Migrate(ctx, db.DB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			c.logger.Info("schema is up to date")
			return nil
		},
	}
}
