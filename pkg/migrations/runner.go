// Package migrations applies the embedded schema for saved reports,
// execution history and report identities.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/playreport/api/pkg/logger"
)

//go:embed sql/*.sql
var embedded embed.FS

// Files returns the embedded migration files.
func Files() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// Runner executes database migrations.
type Runner struct {
	db     *sql.DB
	files  fs.FS
	logger *logger.Logger
}

// NewRunner creates a new migration runner over files.
func NewRunner(db *sql.DB, files fs.FS, log *logger.Logger) *Runner {
	return &Runner{
		db:     db,
		files:  files,
		logger: log.With("component", "migrations"),
	}
}

// MigrationRecord represents a migration in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// StatusEntry describes one available migration.
type StatusEntry struct {
	Version   string
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// EnsureMigrationTable creates the schema_migrations table if it doesn't exist.
func (r *Runner) EnsureMigrationTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(14) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// GetAppliedMigrations returns all applied migration versions.
func (r *Runner) GetAppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	query := `SELECT version, applied_at FROM schema_migrations ORDER BY version`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var rec MigrationRecord
		if err := rows.Scan(&rec.Version, &rec.AppliedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetPendingMigrations returns migrations that need to be applied.
func (r *Runner) GetPendingMigrations(ctx context.Context) ([]string, error) {
	available, err := scanVersions(r.files)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	applied, err := r.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	appliedSet := make(map[string]bool, len(applied))
	for _, rec := range applied {
		appliedSet[rec.Version] = true
	}

	var pending []string
	for _, v := range available {
		if !appliedSet[v.version] {
			pending = append(pending, v.version)
		}
	}
	return pending, nil
}

// Up runs all pending migrations.
func (r *Runner) Up(ctx context.Context) error {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to ensure migration table: %w", err)
	}

	pending, err := r.GetPendingMigrations(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		r.logger.Info("no pending migrations")
		return nil
	}

	for _, version := range pending {
		if err := r.runMigration(ctx, version, "up"); err != nil {
			return fmt.Errorf("migration %s failed: %w", version, err)
		}
		r.logger.Info("migration applied", "version", version)
	}
	return nil
}

// Down rolls back the last migration.
func (r *Runner) Down(ctx context.Context) error {
	applied, err := r.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		r.logger.Info("no migrations to roll back")
		return nil
	}

	last := applied[len(applied)-1]
	if err := r.runMigration(ctx, last.Version, "down"); err != nil {
		return fmt.Errorf("rollback %s failed: %w", last.Version, err)
	}

	r.logger.Info("migration rolled back", "version", last.Version)
	return nil
}

// Status returns every available migration with its applied state.
func (r *Runner) Status(ctx context.Context) ([]StatusEntry, error) {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := r.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	available, err := scanVersions(r.files)
	if err != nil {
		return nil, err
	}

	appliedAt := make(map[string]time.Time, len(applied))
	for _, rec := range applied {
		appliedAt[rec.Version] = rec.AppliedAt
	}

	entries := make([]StatusEntry, 0, len(available))
	for _, v := range available {
		at, ok := appliedAt[v.version]
		entries = append(entries, StatusEntry{Version: v.version, Name: v.name, Applied: ok, AppliedAt: at})
	}
	return entries, nil
}

// runMigration executes a single migration file and records the result in
// the same transaction.
func (r *Runner) runMigration(ctx context.Context, version, direction string) error {
	matches, err := fs.Glob(r.files, fmt.Sprintf("%s_*.%s.sql", version, direction))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("migration file not found: %s (%s)", version, direction)
	}

	content, err := fs.ReadFile(r.files, matches[0])
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return err
	}

	if direction == "up" {
		_, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
	} else {
		_, err = tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = $1", version)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

type migrationFile struct {
	version string
	name    string
}

// scanVersions lists the versions that have an up file, in order.
func scanVersions(files fs.FS) ([]migrationFile, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, err
	}

	var result []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		base := strings.TrimSuffix(path.Base(e.Name()), ".up.sql")
		version, name, ok := strings.Cut(base, "_")
		if !ok || version == "" {
			return nil, fmt.Errorf("malformed migration file name: %s", e.Name())
		}
		result = append(result, migrationFile{version: version, name: name})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].version < result[j].version })
	return result, nil
}
