package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/reportquery"
)

// ReportStore runs composed report queries against the reporting views.
type ReportStore struct {
	db         *DB
	concurrent bool
	timeout    time.Duration
}

// ReportStoreOption configures a ReportStore.
type ReportStoreOption func(*ReportStore)

// WithConcurrentCount runs the count statement on its own connection in
// parallel with the data statement. Without it both statements share one
// read-only snapshot.
func WithConcurrentCount(enabled bool) ReportStoreOption {
	return func(s *ReportStore) { s.concurrent = enabled }
}

// WithQueryTimeout bounds each Run.
func WithQueryTimeout(d time.Duration) ReportStoreOption {
	return func(s *ReportStore) { s.timeout = d }
}

// NewReportStore creates a new ReportStore.
func NewReportStore(db *DB, opts ...ReportStoreOption) *ReportStore {
	s := &ReportStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes the data and count statements of q with identical
// arguments.
func (s *ReportStore) Run(ctx context.Context, q *reportquery.ComposedQuery) (*reportquery.Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	args := q.Args()
	if s.concurrent {
		return s.runConcurrent(ctx, q, args)
	}
	return s.runSnapshot(ctx, q, args)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *ReportStore) runConcurrent(ctx context.Context, q *reportquery.ComposedQuery, args []any) (*reportquery.Result, error) {
	var (
		schema []report.ResultColumn
		rows   [][]any
		total  int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		schema, rows, err = fetchPage(gctx, s.db, q.DataStatement, args)
		return err
	})
	g.Go(func() error {
		return fetchCount(gctx, s.db, q.CountStatement, args, &total)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &reportquery.Result{Schema: schema, Rows: rows, TotalCount: total}, nil
}

func (s *ReportStore) runSnapshot(ctx context.Context, q *reportquery.ComposedQuery, args []any) (*reportquery.Result, error) {
	res := &reportquery.Result{}
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

	err := s.db.Transaction(ctx, opts, func(tx *sql.Tx) error {
		var err error
		res.Schema, res.Rows, err = fetchPage(ctx, tx, q.DataStatement, args)
		if err != nil {
			return err
		}
		return fetchCount(ctx, tx, q.CountStatement, args, &res.TotalCount)
	})
	if err != nil {
		return nil, classify(err, "report snapshot")
	}
	return res, nil
}

func fetchCount(ctx context.Context, db queryer, stmt string, args []any, total *int64) error {
	if err := db.QueryRowContext(ctx, stmt, args...).Scan(total); err != nil {
		return classify(err, "report count query")
	}
	return nil
}

func fetchPage(ctx context.Context, db queryer, stmt string, args []any) ([]report.ResultColumn, [][]any, error) {
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, nil, classify(err, "report data query")
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, classify(err, "report column types")
	}
	schema := make([]report.ResultColumn, len(types))
	for i, ct := range types {
		schema[i] = report.ResultColumn{Name: ct.Name(), Type: strings.ToLower(ct.DatabaseTypeName())}
	}

	out := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, classify(err, "scan report row")
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, classify(err, "iterate report rows")
	}

	return schema, out, nil
}

// normalizeValue converts driver byte slices (numeric, text) to strings so
// rows serialize as readable JSON.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}

// Explain returns the planner output for the data statement of q. It is
// used by operators to inspect a report without fetching rows.
func (s *ReportStore) Explain(ctx context.Context, q *reportquery.ComposedQuery) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "EXPLAIN "+q.DataStatement, q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("explain report %q: %w", q.TemplateID, err)
	}
	defer rows.Close()

	var plan []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan plan line: %w", err)
		}
		plan = append(plan, line)
	}
	return plan, rows.Err()
}
