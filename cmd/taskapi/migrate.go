package main

import (
	"task-management-api/internal/repositories"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	var flushCache bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := a.openDatabase()
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := repositories.Migrate(pool.DB); err != nil {
				return err
			}
			a.log.Info("schema is up to date")

			if !flushCache {
				return nil
			}
			redisCache, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			if redisCache == nil {
				a.log.Warn("redis is disabled, nothing to flush")
				return nil
			}
			defer redisCache.Close()

			// Cached entries may have the old shape after a schema change.
			if err := redisCache.DeletePattern(cmd.Context(), "*"); err != nil {
				return err
			}
			a.log.Info("cache flushed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&flushCache, "flush-cache", false, "drop every cached task and list page")
	return cmd
}
