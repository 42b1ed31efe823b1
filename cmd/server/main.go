package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hearthline/leadflow/internal/adplatform"
	"github.com/hearthline/leadflow/internal/api"
	"github.com/hearthline/leadflow/internal/api/handlers"
	"github.com/hearthline/leadflow/internal/buildconfig"
	"github.com/hearthline/leadflow/internal/config"
	"github.com/hearthline/leadflow/internal/events"
	"github.com/hearthline/leadflow/internal/idempotency"
	"github.com/hearthline/leadflow/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger := newLogger(config.LogLevel())
	defer func() { _ = logger.Sync() }()

	if err := config.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, config.DatabaseURL())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	logger.Info("connected to database", zap.Any("build", buildconfig.VersionInfo()))

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		applied, err := store.Migrate(ctx, pool, config.MigrationsPath())
		if err != nil {
			logger.Fatal("migration failed", zap.Strings("applied", applied), zap.Error(err))
		}
		logger.Info("migrations applied", zap.Strings("versions", applied))
		return
	}

	deps := api.Dependencies{Checks: map[string]handlers.HealthCheck{}}

	// Lead events go to RabbitMQ when configured, otherwise to the log.
	if url := config.AMQPURL(); url != "" {
		pub, err := events.NewAMQPPublisher(url)
		if err != nil {
			logger.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer func() { _ = pub.Close() }()
		deps.Events = pub
		deps.Checks["rabbitmq"] = func(context.Context) error {
			if !pub.Healthy() {
				return events.ErrPublisherClosed
			}
			return nil
		}
		logger.Info("publishing events to rabbitmq", zap.String("exchange", events.ExchangeName))
	} else {
		deps.Events = events.NewLogPublisher(logger)
		logger.Info("AMQP_URL not set, events will be logged only")
	}

	// Webhook dedup is shared through Redis when configured.
	if url := config.RedisURL(); url != "" {
		guard, err := idempotency.NewRedisGuard(ctx, url, idempotency.DefaultTTL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer func() { _ = guard.Close() }()
		deps.Guard = guard
		deps.Checks["redis"] = guard.Ping
	} else {
		deps.Guard = idempotency.NewMemoryGuard(idempotency.DefaultTTL)
		logger.Info("REDIS_URL not set, webhook dedup is per process")
	}

	fetcher, err := adplatform.NewFetcher(config.AdPlatform(), config.FacebookGraphVersion())
	if err != nil {
		logger.Fatal("failed to create ad platform client", zap.Error(err))
	}
	deps.Fetcher = fetcher
	logger.Info("ad platform client initialized", zap.String("provider", config.AdPlatform()))

	app, err := api.NewApp(pool, deps, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}

	// Start background services
	if config.SLAScanInterval() > 0 {
		app.SLA.Start()
	}
	if config.FacebookSyncInterval() > 0 {
		app.FacebookSync.Start()
	}

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr), zap.String("version", buildconfig.Version()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	// Stop background services
	if config.SLAScanInterval() > 0 {
		app.SLA.Stop()
	}
	if config.FacebookSyncInterval() > 0 {
		app.FacebookSync.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
