package main

import (
	"context"
	"errors"
	"net"
	"os/signal"
	"syscall"

	"task-management-api/internal/config"
	"task-management-api/internal/monitoring"
	"task-management-api/internal/server"
	"task-management-api/internal/services"
	"task-management-api/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newWorkerCmd(a *app) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume background jobs and schedule the deleted-task purge",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.runWorker(ctx, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address, e.g. :9090")
	return cmd
}

func (a *app) runWorker(ctx context.Context, metricsAddr string) error {
	redisCache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	if redisCache == nil {
		return errors.New("the worker needs redis: set REDIS_ENABLED=true")
	}
	defer redisCache.Close()

	pool, err := a.openDatabase()
	if err != nil {
		return err
	}
	defer pool.Close()

	metrics := monitoring.NewMetrics()
	queue := worker.NewJobQueue(redisCache.Client())
	queues := a.cfg.Worker.Queues
	if len(queues) == 0 {
		queues = []string{worker.DefaultQueue}
	}
	metrics.RegisterQueues(queue, append(append([]string{}, queues...), worker.RetryQueue, worker.DeadQueue)...)

	w := worker.NewWorker(worker.WorkerConfig{
		RedisClient:  redisCache.Client(),
		Concurrency:  a.cfg.Worker.Concurrency,
		PollInterval: a.cfg.Worker.PollInterval,
		Queues:       queues,
		OnResult:     metrics.ObserveJob,
		Logger:       a.log,
	})

	purger := services.NewPurger(pool.DB, a.cfg.Purge.Retention, a.cfg.Purge.BatchSize, services.WithPurgeLogger(a.log))
	w.RegisterHandler(worker.JobTypePurgeDeleted, func(ctx context.Context, job *worker.Job) error {
		_, err := purger.Purge(ctx)
		if errors.Is(err, services.ErrPurgeDisabled) {
			return nil
		}
		return err
	})

	w.Start(ctx, a.cfg.Worker.Concurrency)
	defer w.Stop()

	if a.cfg.Purge.Retention > 0 && a.cfg.Purge.Interval > 0 {
		scheduler := worker.NewScheduler(queue, queues[0], worker.JobTypePurgeDeleted, a.cfg.Purge.Interval, a.log)
		go scheduler.Run(ctx)
	} else {
		a.log.Info("purge schedule disabled", "retention", a.cfg.Purge.Retention)
	}

	if metricsAddr == "" {
		<-ctx.Done()
		return nil
	}
	return a.serveWorkerMetrics(ctx, metricsAddr, metrics)
}

func (a *app) serveWorkerMetrics(ctx context.Context, addr string, metrics *monitoring.Metrics) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	router := gin.New()
	router.GET("/metrics", metrics.Handler())

	srvCfg := config.ServerConfig{
		Host:            host,
		Port:            port,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
	}
	return server.New(srvCfg, router, a.log).Run(ctx)
}
