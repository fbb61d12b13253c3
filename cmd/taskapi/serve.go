package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"task-management-api/internal/cache"
	"task-management-api/internal/monitoring"
	"task-management-api/internal/repositories"
	"task-management-api/internal/server"
	"task-management-api/internal/services"

	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", true, "create or update the schema before serving")
	return cmd
}

func (a *app) serve(ctx context.Context, autoMigrate bool) error {
	pool, err := a.openDatabase()
	if err != nil {
		return err
	}
	defer pool.Close()

	if autoMigrate {
		if err := repositories.Migrate(pool.DB); err != nil {
			return err
		}
	}

	metrics := monitoring.NewMetrics()
	health := monitoring.NewHealthChecker(5 * time.Second)
	health.Register("database", func(ctx context.Context) error { return pool.Health() })

	var taskService services.TaskService = services.NewTaskService(pool.DB, services.WithLogger(a.log))

	redisCache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	if redisCache != nil {
		defer redisCache.Close()
		cached := services.NewCachedTaskService(taskService, redisCache, a.cfg.Cache.TaskTTL, a.cfg.Cache.ListTTL, a.log)
		taskService = cached
		metrics.RegisterCache(redisCache.Metrics(), redisCache.Breaker())
		health.Register("cache", redisCache.Health)
		go cache.NewWarmer(redisCache, 2, a.log).Warm(ctx, cached.WarmupJobs())
	}

	router := server.NewRouter(a.cfg, server.Deps{
		TaskService: taskService,
		Metrics:     metrics,
		Health:      health,
	})

	return server.New(a.cfg.Server, router, a.log).Run(ctx)
}
