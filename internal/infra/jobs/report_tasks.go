package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/shared"
	"github.com/playreport/api/pkg/logger"
)

// =============================================================================
// Task Types
// =============================================================================

const (
	// TypeReportScheduled is the task type for running a saved report.
	TypeReportScheduled = "report:scheduled"

	// DefaultQueue is the queue saved report runs go to unless configured.
	DefaultQueue = "reports"
)

// =============================================================================
// Task Payloads
// =============================================================================

// ScheduledReportPayload identifies the saved report to run. The caller
// scope is deliberately absent; the worker resolves it at run time.
type ScheduledReportPayload struct {
	SavedReportID string `json:"saved_report_id"`
}

// =============================================================================
// Task Creators
// =============================================================================

// NewScheduledReportTask creates a task that runs one saved report.
func NewScheduledReportTask(id shared.ID, queue string, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(ScheduledReportPayload{SavedReportID: id.String()})
	if err != nil {
		return nil, fmt.Errorf("marshal scheduled report payload: %w", err)
	}
	if queue == "" {
		queue = DefaultQueue
	}

	return asynq.NewTask(
		TypeReportScheduled,
		payload,
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(queue),
	), nil
}

// =============================================================================
// Task Handlers
// =============================================================================

// ReportRunner runs a saved report and records the outcome.
type ReportRunner interface {
	Run(ctx context.Context, id shared.ID) (*report.Execution, error)
}

// ReportTaskHandler handles saved report tasks.
type ReportTaskHandler struct {
	runner ReportRunner
	logger *logger.Logger
}

// NewReportTaskHandler creates a new report task handler.
func NewReportTaskHandler(runner ReportRunner, log *logger.Logger) *ReportTaskHandler {
	return &ReportTaskHandler{
		runner: runner,
		logger: log.With("handler", "report_task"),
	}
}

// RegisterHandlers registers report task handlers with the mux.
func (h *ReportTaskHandler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeReportScheduled, h.HandleScheduledReport)
}

// HandleScheduledReport runs the saved report named by the payload.
// Only transient failures are retried; anything else is already recorded
// in the execution history and would fail the same way again.
func (h *ReportTaskHandler) HandleScheduledReport(ctx context.Context, t *asynq.Task) error {
	var p ScheduledReportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal scheduled report payload: %w: %w", err, asynq.SkipRetry)
	}

	id, err := shared.IDFromString(p.SavedReportID)
	if err != nil {
		return fmt.Errorf("invalid saved report id %q: %w", p.SavedReportID, asynq.SkipRetry)
	}

	exec, err := h.runner.Run(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrUnavailable) {
			h.logger.Warn("scheduled report failed, will retry", "saved_report_id", p.SavedReportID, "error", err)
			return err
		}
		h.logger.Error("scheduled report failed", "saved_report_id", p.SavedReportID, "error", err)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	h.logger.Info("scheduled report completed",
		"saved_report_id", p.SavedReportID,
		"execution_id", exec.ID().String(),
		"row_count", exec.RowCount(),
	)
	return nil
}
