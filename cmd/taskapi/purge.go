package main

import (
	"fmt"
	"time"

	"task-management-api/internal/services"

	"github.com/spf13/cobra"
)

func newPurgeCmd(a *app) *cobra.Command {
	var retention time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Hard-delete tasks soft-deleted longer than the retention period, once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("retention") {
				retention = a.cfg.Purge.Retention
			}

			pool, err := a.openDatabase()
			if err != nil {
				return err
			}
			defer pool.Close()

			purger := services.NewPurger(pool.DB, retention, a.cfg.Purge.BatchSize, services.WithPurgeLogger(a.log))
			purged, err := purger.Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d tasks deleted before %s\n", purged, purger.Cutoff().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 0, "override PURGE_RETENTION, e.g. 720h")
	return cmd
}
