package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/shared"
)

// SavedReportRepository implements report.SavedReportRepository using PostgreSQL.
type SavedReportRepository struct {
	db *DB
}

// NewSavedReportRepository creates a new SavedReportRepository.
func NewSavedReportRepository(db *DB) *SavedReportRepository {
	return &SavedReportRepository{db: db}
}

const savedReportSelectQuery = `
	SELECT id, user_id, name, template_id, request, schedule, next_run_at, created_at, updated_at
	FROM saved_reports
`

func (r *SavedReportRepository) scanSavedReport(row interface{ Scan(...any) error }) (*report.SavedReport, error) {
	var (
		id         string
		userID     string
		name       string
		templateID string
		request    []byte
		schedule   sql.NullString
		nextRunAt  sql.NullTime
		createdAt  time.Time
		updatedAt  time.Time
	)

	if err := row.Scan(&id, &userID, &name, &templateID, &request, &schedule, &nextRunAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	sid, err := shared.IDFromString(id)
	if err != nil {
		return nil, fmt.Errorf("saved report id: %w", err)
	}

	return report.ReconstituteSavedReport(
		sid, userID, name, templateID, request,
		schedule.String, nullTimeValue(nextRunAt), createdAt, updatedAt,
	)
}

// Create persists a new saved report.
func (r *SavedReportRepository) Create(ctx context.Context, saved *report.SavedReport) error {
	request, err := saved.RequestJSON()
	if err != nil {
		return fmt.Errorf("failed to encode saved report request: %w", err)
	}

	query := `
		INSERT INTO saved_reports (
			id, user_id, name, template_id, request, schedule, next_run_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		saved.ID().String(),
		saved.UserID(),
		saved.Name(),
		saved.TemplateID(),
		request,
		nullString(saved.Schedule()),
		nullTime(saved.NextRunAt()),
		saved.CreatedAt(),
		saved.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: saved report %q already exists", shared.ErrValidation, saved.Name())
		}
		return fmt.Errorf("failed to create saved report: %w", err)
	}
	return nil
}

// GetByID retrieves a saved report by its ID.
func (r *SavedReportRepository) GetByID(ctx context.Context, id shared.ID) (*report.SavedReport, error) {
	row := r.db.QueryRowContext(ctx, savedReportSelectQuery+" WHERE id = $1", id.String())

	saved, err := r.scanSavedReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, report.ErrSavedReportNotFound
		}
		return nil, fmt.Errorf("failed to get saved report: %w", err)
	}
	return saved, nil
}

// UpdateNextRun stores the next scheduled run time.
func (r *SavedReportRepository) UpdateNextRun(ctx context.Context, id shared.ID, nextRunAt *time.Time) error {
	query := `UPDATE saved_reports SET next_run_at = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id.String(), nullTime(nextRunAt))
	if err != nil {
		return fmt.Errorf("failed to update saved report next run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return report.ErrSavedReportNotFound
	}
	return nil
}

// ListDue returns scheduled reports whose next run is at or before now.
func (r *SavedReportRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*report.SavedReport, error) {
	query := savedReportSelectQuery + `
		WHERE schedule IS NOT NULL
		AND next_run_at IS NOT NULL
		AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due saved reports: %w", err)
	}
	defer rows.Close()

	var due []*report.SavedReport
	for rows.Next() {
		saved, err := r.scanSavedReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan saved report: %w", err)
		}
		due = append(due, saved)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved reports: %w", err)
	}
	return due, nil
}
