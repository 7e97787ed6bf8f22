package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playreport/api/internal/metrics"
	"github.com/playreport/api/pkg/apierror"
	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/scope"
	"github.com/playreport/api/pkg/domain/shared"
	"github.com/playreport/api/pkg/logger"
	"github.com/playreport/api/pkg/pagination"
	"github.com/playreport/api/pkg/validator"
)

// IdentityProvider resolves a user's current data-access scope.
type IdentityProvider interface {
	CallerScope(ctx context.Context, userID string) (scope.CallerScope, error)
}

// ScheduledReportService manages saved reports and records their runs.
// A run always resolves the owner's scope again; nothing about the
// caller is taken from the saved row except the user id.
type ScheduledReportService struct {
	reports    *ReportService
	saved      report.SavedReportRepository
	executions report.ExecutionRepository
	identities IdentityProvider
	validator  *validator.Validator
	logger     *logger.Logger
	now        func() time.Time
}

// NewScheduledReportService creates a new ScheduledReportService.
func NewScheduledReportService(
	reports *ReportService,
	saved report.SavedReportRepository,
	executions report.ExecutionRepository,
	identities IdentityProvider,
	log *logger.Logger,
) *ScheduledReportService {
	return &ScheduledReportService{
		reports:    reports,
		saved:      saved,
		executions: executions,
		identities: identities,
		validator:  validator.New(),
		logger:     log.With("service", "scheduled_report"),
		now:        time.Now,
	}
}

// CreateSavedReportInput represents the input for saving a report.
type CreateSavedReportInput struct {
	Name     string               `json:"name" validate:"required,max=200"`
	Request  report.ReportRequest `json:"request" validate:"-"`
	Schedule string               `json:"schedule" validate:"omitempty,cron_schedule"`
}

// CreateSavedReport validates and stores a report for identity. The request
// is composed once up front so a report that could never run is refused
// at save time.
func (s *ScheduledReportService) CreateSavedReport(ctx context.Context, identity scope.CallerScope, input CreateSavedReportInput) (*report.SavedReport, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateRequest(input.Request); err != nil {
		return nil, err
	}
	if _, err := s.reports.Compose(identity, input.Request); err != nil {
		return nil, err
	}

	saved, err := report.NewSavedReport(identity.UserID, input.Name, input.Request, input.Schedule)
	if err != nil {
		return nil, err
	}

	next, err := saved.NextRunAfter(s.now())
	if err != nil {
		return nil, err
	}
	saved.SetNextRunAt(next)

	if err := s.saved.Create(ctx, saved); err != nil {
		return nil, err
	}

	s.logger.Info("saved report created",
		"id", saved.ID().String(),
		"template_id", saved.TemplateID(),
		"user_id", saved.UserID(),
		"schedule", saved.Schedule(),
	)
	return saved, nil
}

// GetSavedReport returns a saved report owned by identity. Other users'
// reports are reported as missing.
func (s *ScheduledReportService) GetSavedReport(ctx context.Context, identity scope.CallerScope, id shared.ID) (*report.SavedReport, error) {
	saved, err := s.saved.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() && saved.UserID() != identity.UserID {
		return nil, report.ErrSavedReportNotFound
	}
	return saved, nil
}

// ListExecutions returns the run history of a saved report, newest first.
func (s *ScheduledReportService) ListExecutions(
	ctx context.Context,
	identity scope.CallerScope,
	id shared.ID,
	page pagination.Pagination,
) (pagination.Result[*report.Execution], error) {
	if _, err := s.GetSavedReport(ctx, identity, id); err != nil {
		return pagination.Result[*report.Execution]{}, err
	}
	return s.executions.ListBySavedReport(ctx, id, page)
}

// Run executes a saved report now and records the outcome in its history.
// The returned error is the run failure, if any; the execution is still
// returned and already persisted in that case.
func (s *ScheduledReportService) Run(ctx context.Context, id shared.ID) (*report.Execution, error) {
	saved, err := s.saved.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	exec := report.StartExecution(saved.ID())
	if err := s.executions.Create(ctx, exec); err != nil {
		return nil, fmt.Errorf("failed to record execution: %w", err)
	}

	result, runErr := s.execute(ctx, saved)
	if runErr != nil {
		exec.Fail(apierror.FromError(runErr).Message, correlationID(runErr))
		metrics.ScheduledRunsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		s.logger.WithContext(ctx).Warn("saved report run failed",
			"id", saved.ID().String(),
			"template_id", saved.TemplateID(),
			"error", runErr,
		)
	} else {
		exec.Complete(result.TotalCount)
		metrics.ScheduledRunsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
		s.logger.WithContext(ctx).Info("saved report run completed",
			"id", saved.ID().String(),
			"template_id", saved.TemplateID(),
			"total_count", result.TotalCount,
		)
	}

	// Record the outcome even if the run context is already done.
	updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.executions.Update(updateCtx, exec); err != nil {
		return exec, errors.Join(runErr, fmt.Errorf("failed to record execution outcome: %w", err))
	}
	return exec, runErr
}

func (s *ScheduledReportService) execute(ctx context.Context, saved *report.SavedReport) (*report.PagedResult, error) {
	identity, err := s.identities.CallerScope(ctx, saved.UserID())
	if err != nil {
		return nil, err
	}
	return s.reports.Execute(ctx, identity, saved.Request())
}

// AdvanceSchedule moves a saved report's next run past now. Reports
// without a schedule are left untouched.
func (s *ScheduledReportService) AdvanceSchedule(ctx context.Context, saved *report.SavedReport) (*time.Time, error) {
	next, err := saved.NextRunAfter(s.now())
	if err != nil || next == nil {
		return nil, err
	}
	if err := s.saved.UpdateNextRun(ctx, saved.ID(), next); err != nil {
		return nil, err
	}
	saved.SetNextRunAt(next)
	return next, nil
}

// ListDue returns scheduled reports whose next run has passed.
func (s *ScheduledReportService) ListDue(ctx context.Context, limit int) ([]*report.SavedReport, error) {
	return s.saved.ListDue(ctx, s.now(), limit)
}

func correlationID(err error) string {
	var qe *report.QueryExecutionError
	if errors.As(err, &qe) {
		return qe.CorrelationID
	}
	return ""
}
