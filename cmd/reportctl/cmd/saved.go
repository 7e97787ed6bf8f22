package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/playreport/api/internal/app"
	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/shared"
	"github.com/playreport/api/pkg/pagination"
)

var (
	savedCreateIdentity identityFlags
	savedCreateRequest  requestFlags
	savedCreateName     string
	savedCreateSchedule string

	savedHistoryIdentity identityFlags
	savedHistoryPage     int
	savedHistoryPerPage  int
)

var savedCmd = &cobra.Command{
	Use:     "saved",
	Aliases: []string{"saved-report", "sr"},
	Short:   "Manage saved and scheduled reports",
}

var savedCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Save a report request, optionally on a cron schedule",
	RunE:  runSavedCreate,
}

var savedRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Run a saved report now with its owner's current scope",
	Args:  cobra.ExactArgs(1),
	RunE:  runSavedRun,
}

var savedHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "List past executions of a saved report",
	Args:  cobra.ExactArgs(1),
	RunE:  runSavedHistory,
}

func init() {
	savedCreateIdentity.register(savedCreateCmd)
	savedCreateRequest.register(savedCreateCmd)
	savedCreateCmd.Flags().StringVar(&savedCreateName, "name", "", "Report name")
	savedCreateCmd.Flags().StringVar(&savedCreateSchedule, "schedule", "", "Cron expression, e.g. \"0 9 * * *\" or @daily")

	savedHistoryIdentity.register(savedHistoryCmd)
	savedHistoryCmd.Flags().IntVar(&savedHistoryPage, "page", 1, "Page number")
	savedHistoryCmd.Flags().IntVar(&savedHistoryPerPage, "per-page", 20, "Items per page")

	savedCmd.AddCommand(savedCreateCmd)
	savedCmd.AddCommand(savedRunCmd)
	savedCmd.AddCommand(savedHistoryCmd)
}

type savedReportOutput struct {
	ID         string               `json:"id" yaml:"id"`
	Name       string               `json:"name" yaml:"name"`
	UserID     string               `json:"user_id" yaml:"user_id"`
	TemplateID string               `json:"template_id" yaml:"template_id"`
	Schedule   string               `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	NextRunAt  *time.Time           `json:"next_run_at,omitempty" yaml:"next_run_at,omitempty"`
	Request    report.ReportRequest `json:"request" yaml:"request"`
}

type executionOutput struct {
	ID            string     `json:"id" yaml:"id"`
	Status        string     `json:"status" yaml:"status"`
	RowCount      int64      `json:"row_count" yaml:"row_count"`
	ErrorMessage  string     `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty" yaml:"correlation_id,omitempty"`
	ExecutedAt    time.Time  `json:"executed_at" yaml:"executed_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

func toExecutionOutput(e *report.Execution) executionOutput {
	return executionOutput{
		ID:            e.ID().String(),
		Status:        string(e.Status()),
		RowCount:      e.RowCount(),
		ErrorMessage:  e.ErrorMessage(),
		CorrelationID: e.CorrelationID(),
		ExecutedAt:    e.ExecutedAt(),
		CompletedAt:   e.CompletedAt(),
	}
}

func runSavedCreate(cmd *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	identity, err := savedCreateIdentity.resolve(e.cfg)
	if err != nil {
		return err
	}
	req, err := savedCreateRequest.build()
	if err != nil {
		return err
	}
	svc, err := e.scheduledService()
	if err != nil {
		return err
	}

	saved, err := svc.CreateSavedReport(cmd.Context(), identity, app.CreateSavedReportInput{
		Name:     savedCreateName,
		Request:  req,
		Schedule: savedCreateSchedule,
	})
	if err != nil {
		return describe(err)
	}

	out := savedReportOutput{
		ID:         saved.ID().String(),
		Name:       saved.Name(),
		UserID:     saved.UserID(),
		TemplateID: saved.TemplateID(),
		Schedule:   saved.Schedule(),
		NextRunAt:  saved.NextRunAt(),
		Request:    saved.Request(),
	}
	if printStructured(out) {
		return nil
	}

	fmt.Printf("saved report %s created\n", out.ID)
	if out.NextRunAt != nil {
		fmt.Printf("  next run: %s\n", out.NextRunAt.Format(time.RFC3339))
	}
	return nil
}

func runSavedRun(cmd *cobra.Command, args []string) error {
	id, err := shared.IDFromString(args[0])
	if err != nil {
		return err
	}

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	svc, err := e.scheduledService()
	if err != nil {
		return err
	}

	exec, runErr := svc.Run(cmd.Context(), id)
	if exec == nil {
		return describe(runErr)
	}

	out := toExecutionOutput(exec)
	if !printStructured(out) {
		t := newTable("EXECUTION", "STATUS", "ROWS", "CORRELATION", "ERROR")
		t.AddRow(out.ID, out.Status, formatInt(out.RowCount), orDash(out.CorrelationID), orDash(out.ErrorMessage))
		t.Flush()
	}
	if runErr != nil {
		return describe(runErr)
	}
	return nil
}

func runSavedHistory(cmd *cobra.Command, args []string) error {
	id, err := shared.IDFromString(args[0])
	if err != nil {
		return err
	}

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	identity, err := savedHistoryIdentity.resolve(e.cfg)
	if err != nil {
		return err
	}
	svc, err := e.scheduledService()
	if err != nil {
		return err
	}

	page := pagination.New(savedHistoryPage, savedHistoryPerPage)
	history, err := svc.ListExecutions(cmd.Context(), identity, id, page)
	if err != nil {
		return describe(err)
	}

	items := make([]executionOutput, len(history.Data))
	for i, exec := range history.Data {
		items[i] = toExecutionOutput(exec)
	}
	if printStructured(items) {
		return nil
	}

	t := newTable("EXECUTION", "STATUS", "ROWS", "EXECUTED", "ERROR")
	for _, it := range items {
		t.AddRow(it.ID, it.Status, formatInt(it.RowCount), it.ExecutedAt.Format(time.RFC3339), orDash(it.ErrorMessage))
	}
	t.Flush()
	printPagination(history.Total, history.Page, history.PerPage, history.TotalPages)
	return nil
}
