package main

import (
	"fmt"

	"github.com/playreport/api/internal/app"
	"github.com/playreport/api/internal/config"
	"github.com/playreport/api/internal/infra/redis"
	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/logger"
	"github.com/playreport/api/pkg/reportquery"
)

// Services holds all application services.
type Services struct {
	Report      *app.ReportService
	ReportCache *app.ReportCacheService
	Scheduled   *app.ScheduledReportService
}

// ServiceDeps contains dependencies needed to create services.
type ServiceDeps struct {
	Config      *config.Config
	Log         *logger.Logger
	Repos       *Repositories
	RedisClient *redis.Client
}

// NewServices initializes all application services.
func NewServices(deps *ServiceDeps) (*Services, error) {
	cfg := deps.Config
	log := deps.Log

	registry, err := loadRegistry(cfg.Report.TemplatesFile)
	if err != nil {
		return nil, err
	}
	log.Info("report templates loaded", "count", registry.Len(), "file", cfg.Report.TemplatesFile)

	opts := []app.ReportServiceOption{
		app.WithComposer(reportquery.NewComposer().WithMaxPageSize(cfg.Report.MaxPageSize)),
		app.WithDefaultPageSize(cfg.Report.DefaultPageSize),
	}

	s := &Services{}
	if cfg.Report.CacheEnabled && deps.RedisClient != nil {
		s.ReportCache, err = app.NewReportCacheService(deps.RedisClient, app.ReportCacheConfig{
			TTL:         cfg.Report.CacheTTL,
			MaxAge:      cfg.Report.CacheMaxAge,
			Compression: cfg.Report.CacheCompression,
		}, log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, app.WithResultCache(s.ReportCache))
		log.Info("report cache enabled", "ttl", cfg.Report.CacheTTL, "max_age", cfg.Report.CacheMaxAge)
	}

	s.Report = app.NewReportService(registry, deps.Repos.Store, log, opts...)
	s.Scheduled = app.NewScheduledReportService(
		s.Report,
		deps.Repos.SavedReport,
		deps.Repos.Execution,
		deps.Repos.Identity,
		log,
	)
	return s, nil
}

func loadRegistry(path string) (*report.Registry, error) {
	if path == "" {
		return report.DefaultRegistry()
	}
	registry, err := report.LoadRegistryFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load report templates: %w", err)
	}
	return registry, nil
}
