package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/fieldops/internal/app"
	"github.com/odyssey-erp/fieldops/internal/delivery"
	jobmetrics "github.com/odyssey-erp/fieldops/internal/jobs"
	"github.com/odyssey-erp/fieldops/internal/localcache"
	"github.com/odyssey-erp/fieldops/internal/network"
	"github.com/odyssey-erp/fieldops/internal/platform/cache"
	"github.com/odyssey-erp/fieldops/internal/platform/db"
	"github.com/odyssey-erp/fieldops/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{ApplicationName: "fieldops-worker"})
	switch {
	case errors.Is(err, db.ErrUnreachable):
		// Resync tasks fail and retry until the database is back.
		logger.Warn("postgres unreachable at startup", slog.Any("error", err))
	case err != nil:
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	monitor := network.NewMonitor(pool, network.Config{
		Name:             "remote-data-worker",
		FailureThreshold: cfg.BreakerFailureThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout,
		ProbeInterval:    cfg.NetworkProbeInterval,
	}, logger)

	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.WorkerMetricsAddr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			_ = metricsServer.Close()
		}()
	}
	resyncJob := jobs.NewItemResyncJob(delivery.NewRepository(pool, monitor), logger, metrics)
	pruneJob := jobs.NewCachePruneJob(localcache.NewRedisStore(redisClient, cfg.CacheTTL, logger), cfg.HistoryDefaultDays, logger, metrics)

	pruneTask, err := jobs.NewCachePruneTask(0)
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskItemResync, Handler: resyncJob.Handle},
			{Type: jobs.TaskCachePrune, Handler: pruneJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
