package main

import (
	"context"

	"github.com/playreport/api/internal/app"
	"github.com/playreport/api/internal/config"
	"github.com/playreport/api/internal/infra/jobs"
	"github.com/playreport/api/pkg/logger"
)

// Workers holds all background worker instances.
type Workers struct {
	JobClient *jobs.Client
	JobWorker *jobs.Worker
	Scheduler *app.ReportScheduler
}

// WorkerDeps contains dependencies needed to create workers.
type WorkerDeps struct {
	Config   *config.Config
	Log      *logger.Logger
	Services *Services
}

// NewWorkers initializes the job client, worker and scheduler.
func NewWorkers(deps *WorkerDeps) (*Workers, error) {
	cfg := deps.Config
	log := deps.Log
	w := &Workers{}

	var err error
	w.JobClient, err = jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Queue:         cfg.Worker.Queue,
		MaxRetry:      cfg.Worker.MaxRetry,
	}, log)
	if err != nil {
		return nil, err
	}

	if cfg.Worker.Enabled {
		w.JobWorker, err = jobs.NewWorker(jobs.WorkerConfig{
			RedisAddr:     cfg.Redis.Addr(),
			RedisPassword: cfg.Redis.Password,
			RedisDB:       cfg.Redis.DB,
			Concurrency:   cfg.Worker.Concurrency,
			Queue:         cfg.Worker.Queue,
		}, deps.Services.Scheduled, log)
		if err != nil {
			return nil, err
		}
		log.Info("job worker initialized", "concurrency", cfg.Worker.Concurrency, "queue", cfg.Worker.Queue)
	}

	if cfg.Worker.SchedulerEnabled {
		w.Scheduler = app.NewReportScheduler(
			deps.Services.Scheduled,
			w.JobClient,
			app.ReportSchedulerConfig{
				CheckInterval: cfg.Worker.SchedulerInterval,
				BatchSize:     cfg.Worker.SchedulerBatch,
				DispatchRate:  cfg.Worker.DispatchRate,
			},
			log,
		)
	}

	return w, nil
}

// Start starts all background workers.
func (w *Workers) Start(_ context.Context, log *logger.Logger) error {
	if w.JobWorker != nil {
		if err := w.JobWorker.Start(); err != nil {
			return err
		}
		log.Info("job worker started")
	}
	if w.Scheduler != nil {
		w.Scheduler.Start()
	}
	return nil
}

// Stop stops all background workers. The scheduler stops first so nothing
// new is enqueued while the worker drains.
func (w *Workers) Stop(log *logger.Logger) {
	if w.Scheduler != nil {
		w.Scheduler.Stop()
	}
	if w.JobWorker != nil {
		w.JobWorker.Stop()
	}
	if err := w.JobClient.Close(); err != nil {
		log.Error("failed to close job client", "error", err)
	}
}
