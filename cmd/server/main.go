package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/playreport/api/internal/config"
	"github.com/playreport/api/internal/infra/ops"
	"github.com/playreport/api/internal/infra/postgres"
	"github.com/playreport/api/internal/infra/redis"
	"github.com/playreport/api/internal/infra/telemetry"
	"github.com/playreport/api/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing, cfg.App.Name, log)
	if err != nil {
		log.Error("failed to initialize tracing", "error", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error("failed to flush traces", "error", err)
		}
	}()

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)
	redis.DefaultMetrics.StartPoolStatsCollector(ctx, redisClient, 15*time.Second)

	// ==========================================================================
	// Repositories & Services
	// ==========================================================================
	repos := NewRepositories(db,
		postgres.WithConcurrentCount(cfg.Report.RunCountConcurrently),
		postgres.WithQueryTimeout(cfg.Report.QueryTimeout),
	)

	services, err := NewServices(&ServiceDeps{
		Config:      cfg,
		Log:         log,
		Repos:       repos,
		RedisClient: redisClient,
	})
	if err != nil {
		log.Error("failed to initialize services", "error", err)
		return 1
	}

	// ==========================================================================
	// Background Workers
	// ==========================================================================
	workers, err := NewWorkers(&WorkerDeps{
		Config:   cfg,
		Log:      log,
		Services: services,
	})
	if err != nil {
		log.Error("failed to initialize workers", "error", err)
		return 1
	}
	if err := workers.Start(ctx, log); err != nil {
		log.Error("failed to start workers", "error", err)
		return 1
	}

	// ==========================================================================
	// Ops Server
	// ==========================================================================
	health := ops.NewHealthHandler(
		ops.WithCheck("database", db),
		ops.WithCheck("redis", redisClient),
	)
	server := ops.NewServer(&cfg.Ops, ops.NewRouter(health, prometheus.DefaultGatherer), log)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()
	log.Info("application started", "ops_addr", cfg.Ops.Addr())

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Ops.ShutdownTimeout)
	defer cancel()

	workers.Stop(log)
	stopBackground()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

// =============================================================================
// Helper Functions
// =============================================================================

func initLogger(cfg *config.Config) *logger.Logger {
	var log *logger.Logger
	if cfg.IsProduction() {
		//nolint:gosec // G115: values validated non-negative in config.Validate()
		log = logger.New(logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Sampling: logger.SamplingConfig{
				Enabled:     cfg.Log.SamplingEnabled,
				Tick:        time.Second,
				Threshold:   uint64(cfg.Log.SamplingThreshold),
				Every:       uint64(cfg.Log.SamplingEvery),
			},
		})
	} else {
		log = logger.NewDevelopment()
	}
	log.SetDefault()
	return log
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
