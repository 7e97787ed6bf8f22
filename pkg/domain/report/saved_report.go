package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/playreport/api/pkg/domain/shared"
	"github.com/playreport/api/pkg/pagination"
)

// =============================================================================
// Saved Report
// =============================================================================

// SavedReport is a named, persisted report request owned by a user.
// The owner's scope is never stored; it is resolved again on every run.
type SavedReport struct {
	id         shared.ID
	userID     string
	name       string
	templateID string
	request    ReportRequest
	schedule   string
	nextRunAt  *time.Time
	createdAt  time.Time
	updatedAt  time.Time
}

// NewSavedReport creates a new saved report. schedule may be empty for
// reports that only run on demand.
func NewSavedReport(userID, name string, request ReportRequest, schedule string) (*SavedReport, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", shared.ErrValidation)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if request.TemplateID == "" {
		return nil, fmt.Errorf("%w: template id is required", shared.ErrValidation)
	}

	schedule = strings.TrimSpace(schedule)
	if schedule != "" {
		if _, err := parseSchedule(schedule); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	return &SavedReport{
		id:         shared.NewID(),
		userID:     userID,
		name:       strings.TrimSpace(name),
		templateID: request.TemplateID,
		request:    request.Clone(),
		schedule:   schedule,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstituteSavedReport rebuilds a SavedReport from persistence. The
// request arrives as the stored JSON document.
func ReconstituteSavedReport(
	id shared.ID,
	userID, name, templateID string,
	requestJSON []byte,
	schedule string,
	nextRunAt *time.Time,
	createdAt, updatedAt time.Time,
) (*SavedReport, error) {
	var req ReportRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return nil, fmt.Errorf("%w: stored report request is unreadable: %v", shared.ErrInternal, err)
	}
	req.TemplateID = templateID

	return &SavedReport{
		id:         id,
		userID:     userID,
		name:       name,
		templateID: templateID,
		request:    req,
		schedule:   schedule,
		nextRunAt:  nextRunAt,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}, nil
}

func (s *SavedReport) ID() shared.ID         { return s.id }
func (s *SavedReport) UserID() string        { return s.userID }
func (s *SavedReport) Name() string          { return s.name }
func (s *SavedReport) TemplateID() string    { return s.templateID }
func (s *SavedReport) Schedule() string      { return s.schedule }
func (s *SavedReport) NextRunAt() *time.Time { return s.nextRunAt }
func (s *SavedReport) CreatedAt() time.Time  { return s.createdAt }
func (s *SavedReport) UpdatedAt() time.Time  { return s.updatedAt }

// Request returns a copy of the saved request.
func (s *SavedReport) Request() ReportRequest { return s.request.Clone() }

// RequestJSON returns the request document for persistence.
func (s *SavedReport) RequestJSON() ([]byte, error) {
	return json.Marshal(s.request)
}

// IsScheduled reports whether the report runs on a schedule.
func (s *SavedReport) IsScheduled() bool { return s.schedule != "" }

// NextRunAfter returns the first scheduled time strictly after t, or nil
// for reports without a schedule.
func (s *SavedReport) NextRunAfter(t time.Time) (*time.Time, error) {
	if !s.IsScheduled() {
		return nil, nil
	}
	sched, err := parseSchedule(s.schedule)
	if err != nil {
		return nil, err
	}
	next := sched.Next(t).UTC()
	return &next, nil
}

// scheduleParser accepts five-field cron expressions and descriptors.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func parseSchedule(expr string) (cron.Schedule, error) {
	sched, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, expr, err)
	}
	return sched, nil
}

// SetNextRunAt records the next scheduled run.
func (s *SavedReport) SetNextRunAt(t *time.Time) {
	s.nextRunAt = t
	s.updatedAt = time.Now().UTC()
}

// =============================================================================
// Report Execution
// =============================================================================

// ExecutionStatus is the state of one saved-report run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// IsTerminal reports whether the status is final.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// Execution is one entry of a saved report's execution history.
type Execution struct {
	id            shared.ID
	savedReportID shared.ID
	status        ExecutionStatus
	errorMessage  string
	rowCount      int64
	correlationID string
	executedAt    time.Time
	completedAt   *time.Time
}

// StartExecution creates a running execution for a saved report.
func StartExecution(savedReportID shared.ID) *Execution {
	return &Execution{
		id:            shared.NewID(),
		savedReportID: savedReportID,
		status:        ExecutionStatusRunning,
		executedAt:    time.Now().UTC(),
	}
}

// ReconstituteExecution rebuilds an Execution from persistence.
func ReconstituteExecution(
	id, savedReportID shared.ID,
	status ExecutionStatus,
	errorMessage string,
	rowCount int64,
	correlationID string,
	executedAt time.Time,
	completedAt *time.Time,
) *Execution {
	return &Execution{
		id:            id,
		savedReportID: savedReportID,
		status:        status,
		errorMessage:  errorMessage,
		rowCount:      rowCount,
		correlationID: correlationID,
		executedAt:    executedAt,
		completedAt:   completedAt,
	}
}

func (e *Execution) ID() shared.ID            { return e.id }
func (e *Execution) SavedReportID() shared.ID { return e.savedReportID }
func (e *Execution) Status() ExecutionStatus  { return e.status }
func (e *Execution) ErrorMessage() string     { return e.errorMessage }
func (e *Execution) RowCount() int64          { return e.rowCount }
func (e *Execution) CorrelationID() string    { return e.correlationID }
func (e *Execution) ExecutedAt() time.Time    { return e.executedAt }
func (e *Execution) CompletedAt() *time.Time  { return e.completedAt }

// Complete marks the execution as successful.
func (e *Execution) Complete(rowCount int64) {
	now := time.Now().UTC()
	e.status = ExecutionStatusCompleted
	e.rowCount = rowCount
	e.completedAt = &now
}

// Fail marks the execution as failed. message must already be safe to
// store; callers pass error text that carries no SQL or parameter values.
func (e *Execution) Fail(message, correlationID string) {
	now := time.Now().UTC()
	e.status = ExecutionStatusFailed
	e.errorMessage = message
	e.correlationID = correlationID
	e.completedAt = &now
}

// =============================================================================
// Repositories
// =============================================================================

// SavedReportRepository persists saved reports.
type SavedReportRepository interface {
	// Create persists a new saved report.
	Create(ctx context.Context, report *SavedReport) error

	// GetByID retrieves a saved report by its ID.
	GetByID(ctx context.Context, id shared.ID) (*SavedReport, error)

	// UpdateNextRun stores the next scheduled run time.
	UpdateNextRun(ctx context.Context, id shared.ID, nextRunAt *time.Time) error

	// ListDue returns scheduled reports whose next run is at or before now.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*SavedReport, error)
}

// ExecutionRepository persists execution history.
type ExecutionRepository interface {
	// Create records a new execution.
	Create(ctx context.Context, execution *Execution) error

	// Update stores the final state of an execution.
	Update(ctx context.Context, execution *Execution) error

	// ListBySavedReport returns executions, most recent first.
	ListBySavedReport(ctx context.Context, savedReportID shared.ID, page pagination.Pagination) (pagination.Result[*Execution], error)
}
