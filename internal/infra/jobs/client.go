package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/playreport/api/pkg/domain/shared"
	"github.com/playreport/api/pkg/logger"
)

// Client manages enqueueing background jobs using Asynq.
type Client struct {
	client   *asynq.Client
	queue    string
	maxRetry int
	logger   *logger.Logger
}

// ClientConfig contains configuration for the job client.
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Queue         string
	MaxRetry      int
}

// NewClient creates a new job client for enqueueing tasks.
func NewClient(cfg ClientConfig, log *logger.Logger) (*Client, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	client := asynq.NewClient(redisOpt)

	return &Client{
		client:   client,
		queue:    cfg.Queue,
		maxRetry: cfg.MaxRetry,
		logger:   log.With("component", "job_client"),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// DispatchSavedReport enqueues a run of the saved report.
func (c *Client) DispatchSavedReport(ctx context.Context, id shared.ID) error {
	task, err := NewScheduledReportTask(id, c.queue, c.maxRetry)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error("failed to enqueue saved report run",
			"saved_report_id", id.String(),
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("saved report run queued",
		"task_id", info.ID,
		"saved_report_id", id.String(),
		"queue", info.Queue,
	)
	return nil
}
