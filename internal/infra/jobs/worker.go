package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/playreport/api/pkg/logger"
)

// WorkerConfig holds the configuration for the job worker.
type WorkerConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
	Queue         string
}

// Worker processes background jobs.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *logger.Logger
}

// NewWorker creates a new background job worker.
func NewWorker(cfg WorkerConfig, runner ReportRunner, log *logger.Logger) (*Worker, error) {
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				queue: 1,
			},
			Logger: newAsynqLogger(log),
		},
	)

	mux := asynq.NewServeMux()
	NewReportTaskHandler(runner, log).RegisterHandlers(mux)

	return &Worker{
		server: server,
		mux:    mux,
		logger: log.With("component", "job_worker"),
	}, nil
}

// Start starts the worker.
func (w *Worker) Start() error {
	w.logger.Info("starting job worker")
	return w.server.Start(w.mux)
}

// Stop stops the worker gracefully.
func (w *Worker) Stop() {
	w.logger.Info("stopping job worker")
	w.server.Shutdown()
}

// Run runs the worker until shutdown.
func (w *Worker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Start(w.mux)
	}()

	select {
	case <-ctx.Done():
		w.Stop()
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("worker error: %w", err)
		}
		return nil
	}
}

// asynqLogger routes asynq's internal logging through the service logger.
type asynqLogger struct {
	log *logger.Logger
}

func newAsynqLogger(log *logger.Logger) *asynqLogger {
	return &asynqLogger{log: log.With("component", "asynq")}
}

func (l *asynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...any) { l.log.Error(fmt.Sprint(args...)) }
