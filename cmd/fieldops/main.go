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

	"github.com/odyssey-erp/fieldops/internal/app"
	"github.com/odyssey-erp/fieldops/internal/auth"
	"github.com/odyssey-erp/fieldops/internal/delivery"
	"github.com/odyssey-erp/fieldops/internal/distributions"
	"github.com/odyssey-erp/fieldops/internal/localcache"
	"github.com/odyssey-erp/fieldops/internal/network"
	"github.com/odyssey-erp/fieldops/internal/observability"
	"github.com/odyssey-erp/fieldops/internal/pin"
	"github.com/odyssey-erp/fieldops/internal/platform/cache"
	"github.com/odyssey-erp/fieldops/internal/platform/db"
	"github.com/odyssey-erp/fieldops/internal/rbac"
	"github.com/odyssey-erp/fieldops/internal/shared"
	"github.com/odyssey-erp/fieldops/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{ApplicationName: "fieldops"})
	switch {
	case errors.Is(err, db.ErrUnreachable):
		// Couriers keep working from cached snapshots until the monitor recovers.
		logger.Warn("postgres unreachable at startup", slog.Any("error", err))
	case err != nil:
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()
	deliveryMetrics := delivery.NewMetrics(metrics.Registerer())

	monitor := network.NewMonitor(dbpool, network.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout,
		ProbeInterval:    cfg.NetworkProbeInterval,
	}, logger)
	go monitor.Run(ctx)

	sessionManager := shared.NewSessionManager(redisClient, "fieldops_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	idempotencyStore := shared.NewIdempotencyStore(redisClient, 24*time.Hour)
	localCache := localcache.NewRedisStore(redisClient, cfg.CacheTTL, logger)

	hasher, err := pin.NewHasher(cfg.PinHashScheme)
	if err != nil {
		logger.Error("pin hasher", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts, cfg.ItemResyncMaxRetry)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	orderRepo := delivery.NewRepository(dbpool, monitor)
	distributionService := distributions.NewService(distributions.NewRepository(dbpool), localCache, logger)

	registry := delivery.NewRegistry(func(identity delivery.Identity) *delivery.Manager {
		return delivery.NewManager(identity, delivery.Config{
			Remote:      orderRepo,
			Assignments: distributionService,
			Cache:       localCache.Scope(identity.UserID),
			Network:     monitor,
			Resyncer:    jobClient,
			Metrics:     deliveryMetrics,
			Logger:      logger,
		})
	})

	authService := auth.NewService(auth.NewRepository(dbpool), hasher, localCache, registry, logger)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthHandler:    auth.NewHandler(logger, authService, sessionManager),
		DeliveryHandler: delivery.NewHandler(logger, registry, idempotencyStore, delivery.HandlerConfig{
			GeofenceRadius:     cfg.GeofenceRadiusMeters,
			HistoryDefaultDays: cfg.HistoryDefaultDays,
		}),
		DistributionsHandler: distributions.NewHandler(logger, distributionService),
		JobHandler:           jobs.NewHandler(inspector, logger),
		RBACMiddleware:       rbacMiddleware,
		Health:               monitor,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
