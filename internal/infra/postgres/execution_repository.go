package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/shared"
	"github.com/playreport/api/pkg/pagination"
)

// ExecutionRepository implements report.ExecutionRepository using PostgreSQL.
type ExecutionRepository struct {
	db *DB
}

// NewExecutionRepository creates a new ExecutionRepository.
func NewExecutionRepository(db *DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

const executionSelectQuery = `
	SELECT id, saved_report_id, status, error_message, row_count, correlation_id, executed_at, completed_at
	FROM report_executions
`

func (r *ExecutionRepository) scanExecution(row interface{ Scan(...any) error }) (*report.Execution, error) {
	var (
		id            string
		savedReportID string
		status        string
		errorMessage  sql.NullString
		rowCount      int64
		correlationID sql.NullString
		executedAt    time.Time
		completedAt   sql.NullTime
	)

	err := row.Scan(&id, &savedReportID, &status, &errorMessage, &rowCount, &correlationID, &executedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	eid, _ := shared.IDFromString(id)
	rid, _ := shared.IDFromString(savedReportID)

	return report.ReconstituteExecution(
		eid, rid,
		report.ExecutionStatus(status),
		errorMessage.String,
		rowCount,
		correlationID.String,
		executedAt,
		nullTimeValue(completedAt),
	), nil
}

// Create records a new execution.
func (r *ExecutionRepository) Create(ctx context.Context, e *report.Execution) error {
	query := `
		INSERT INTO report_executions (
			id, saved_report_id, status, error_message, row_count, correlation_id, executed_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		e.ID().String(),
		e.SavedReportID().String(),
		string(e.Status()),
		nullString(e.ErrorMessage()),
		e.RowCount(),
		nullString(e.CorrelationID()),
		e.ExecutedAt(),
		nullTime(e.CompletedAt()),
	)
	if err != nil {
		return fmt.Errorf("failed to create report execution: %w", err)
	}
	return nil
}

// Update stores the final state of an execution.
func (r *ExecutionRepository) Update(ctx context.Context, e *report.Execution) error {
	query := `
		UPDATE report_executions
		SET status = $2, error_message = $3, row_count = $4, correlation_id = $5, completed_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		e.ID().String(),
		string(e.Status()),
		nullString(e.ErrorMessage()),
		e.RowCount(),
		nullString(e.CorrelationID()),
		nullTime(e.CompletedAt()),
	)
	if err != nil {
		return fmt.Errorf("failed to update report execution: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return report.ErrExecutionNotFound
	}
	return nil
}

// ListBySavedReport returns executions, most recent first.
func (r *ExecutionRepository) ListBySavedReport(
	ctx context.Context,
	savedReportID shared.ID,
	page pagination.Pagination,
) (pagination.Result[*report.Execution], error) {
	var total int64
	countQuery := "SELECT COUNT(*) FROM report_executions WHERE saved_report_id = $1"
	if err := r.db.QueryRowContext(ctx, countQuery, savedReportID.String()).Scan(&total); err != nil {
		return pagination.Result[*report.Execution]{}, fmt.Errorf("failed to count report executions: %w", err)
	}

	query := executionSelectQuery + " WHERE saved_report_id = $1 ORDER BY executed_at DESC LIMIT $2 OFFSET $3"
	rows, err := r.db.QueryContext(ctx, query, savedReportID.String(), page.Limit(), page.Offset())
	if err != nil {
		return pagination.Result[*report.Execution]{}, fmt.Errorf("failed to list report executions: %w", err)
	}
	defer rows.Close()

	var executions []*report.Execution
	for rows.Next() {
		e, err := r.scanExecution(rows)
		if err != nil {
			return pagination.Result[*report.Execution]{}, fmt.Errorf("failed to scan report execution: %w", err)
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return pagination.Result[*report.Execution]{}, fmt.Errorf("iterate report executions: %w", err)
	}

	return pagination.NewResult(executions, total, page), nil
}
