package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fazamuttaqien/eventcal/internal/calsync"
	"github.com/fazamuttaqien/eventcal/internal/scheduler"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"github.com/spf13/cobra"
)

func newSyncCmd(c *cli) *cobra.Command {
	var (
		integrationID string
		direction     string
		eventIDs      []string
		all           bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile one Google Calendar integration, or all of them with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && integrationID == "" {
				return errors.New("either --integration or --all is required")
			}
			ctx := cmd.Context()

			a, err := c.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close(c.logger)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if all {
				sched, err := scheduler.New(scheduler.DefaultSchedule, a.store, a.reconciler, c.logger)
				if err != nil {
					return err
				}
				result, err := sched.RunOnce(ctx)
				if err != nil {
					return err
				}
				return enc.Encode(result)
			}

			integration, err := a.store.Integration(ctx, integrationID)
			if err != nil {
				return fmt.Errorf("load integration %s: %w", integrationID, err)
			}
			summary, err := a.reconciler.Sync(ctx, *integration, enum.SyncDirection(strings.ToUpper(direction)),
				calsync.Options{EventIDs: eventIDs})
			if err != nil {
				return err
			}
			return enc.Encode(summary)
		},
	}

	cmd.Flags().StringVar(&integrationID, "integration", "", "integration id to reconcile")
	cmd.Flags().StringVar(&direction, "direction", string(enum.SyncBidirectional), "IMPORT, EXPORT or BIDIRECTIONAL")
	cmd.Flags().StringSliceVar(&eventIDs, "event", nil, "limit export to these local event ids")
	cmd.Flags().BoolVar(&all, "all", false, "reconcile every enabled integration")
	return cmd
}
