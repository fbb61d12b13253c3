package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"task-management-api/internal/cache"
	"task-management-api/internal/config"
	"task-management-api/internal/database"
	"task-management-api/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	gormlogger "gorm.io/gorm/logger"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg *config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "taskapi",
		Short:        "Task management API",
		Long:         "taskapi serves the task management HTTP API and runs its maintenance jobs.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a.cfg = cfg
			a.log = logger.Init(logger.Options{
				Level:      cfg.Log.Level,
				Format:     cfg.Log.Format,
				File:       cfg.Log.File,
				MaxSizeMB:  cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAgeDays: cfg.Log.MaxAgeDays,
			})
			if cfg.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newWorkerCmd(a),
		newPurgeCmd(a),
		newTokenCmd(a),
	)
	return root
}

func (a *app) openDatabase() (*database.DatabasePool, error) {
	level := gormlogger.Warn
	if a.cfg.Log.Level == "debug" {
		level = gormlogger.Info
	}

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:          a.cfg.Database.Driver,
		DSN:             a.cfg.GetDatabaseDSN(),
		MaxOpenConns:    a.cfg.Database.MaxOpenConns,
		MaxIdleConns:    a.cfg.Database.MaxIdleConns,
		ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: a.cfg.Database.ConnMaxIdleTime,
		LogLevel:        level,
		SlowThreshold:   200 * time.Millisecond,
		Logger:          a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.log.Info("database connected", "driver", a.cfg.Database.Driver)
	return pool, nil
}

// openCache returns nil when Redis is disabled.
func (a *app) openCache(ctx context.Context) (*cache.RedisCache, error) {
	if !a.cfg.Redis.Enabled {
		return nil, nil
	}

	c := cache.NewRedisCache(&cache.CacheConfig{
		Addr:         a.cfg.GetRedisAddr(),
		Password:     a.cfg.Redis.Password,
		DB:           a.cfg.Redis.DB,
		PoolSize:     a.cfg.Redis.PoolSize,
		MinIdleConns: a.cfg.Redis.MinIdleConns,
		MaxRetries:   a.cfg.Redis.MaxRetries,
		DialTimeout:  a.cfg.Redis.DialTimeout,
		ReadTimeout:  a.cfg.Redis.ReadTimeout,
		WriteTimeout: a.cfg.Redis.WriteTimeout,
		KeyPrefix:    "taskapi:",
		Breaker: &cache.CircuitBreakerConfig{
			MaxFailures:      5,
			Timeout:          30 * time.Second,
			HalfOpenMaxCalls: 3,
			OnStateChange: func(from, to cache.CircuitBreakerState) {
				a.log.Warn("cache circuit breaker changed state", "from", from.String(), "to", to.String())
			},
		},
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Health(pingCtx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.cfg.GetRedisAddr(), err)
	}
	a.log.Info("redis connected", "addr", a.cfg.GetRedisAddr())
	return c, nil
}
