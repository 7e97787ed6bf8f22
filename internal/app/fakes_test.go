package app

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/scope"
	"github.com/playreport/api/pkg/domain/shared"
	"github.com/playreport/api/pkg/logger"
	"github.com/playreport/api/pkg/pagination"
	"github.com/playreport/api/pkg/reportquery"
)

// =============================================================================
// Report Store
// =============================================================================

// fakeStore serves a fixed number of matching rows and records every call.
type fakeStore struct {
	mu      sync.Mutex
	total   int64
	errs    []error
	gate    chan struct{}
	overrun int
	queries []*reportquery.ComposedQuery
}

func newFakeStore(total int64) *fakeStore {
	return &fakeStore{total: total}
}

// failWith queues errors returned by the next calls, in order.
func (f *fakeStore) failWith(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, errs...)
}

func (f *fakeStore) Run(ctx context.Context, q *reportquery.ComposedQuery) (*reportquery.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	n := q.Page.RowsOnPage(f.total) + f.overrun
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{int64(q.Page.Offset() + i + 1), "UK"}
	}
	return &reportquery.Result{
		Schema: []report.ResultColumn{
			{Name: "playerId", Type: "int8"},
			{Name: "country", Type: "varchar"},
		},
		Rows:       rows,
		TotalCount: f.total,
	}, nil
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeStore) lastQuery() *reportquery.ComposedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return nil
	}
	return f.queries[len(f.queries)-1]
}

// =============================================================================
// Saved Report Repositories
// =============================================================================

type fakeSavedReports struct {
	mu      sync.Mutex
	reports map[shared.ID]*report.SavedReport
	nextRun map[shared.ID]*time.Time
}

func newFakeSavedReports() *fakeSavedReports {
	return &fakeSavedReports{
		reports: make(map[shared.ID]*report.SavedReport),
		nextRun: make(map[shared.ID]*time.Time),
	}
}

func (f *fakeSavedReports) Create(_ context.Context, r *report.SavedReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[r.ID()] = r
	f.nextRun[r.ID()] = r.NextRunAt()
	return nil
}

func (f *fakeSavedReports) GetByID(_ context.Context, id shared.ID) (*report.SavedReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return nil, report.ErrSavedReportNotFound
	}
	return r, nil
}

func (f *fakeSavedReports) UpdateNextRun(_ context.Context, id shared.ID, next *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reports[id]; !ok {
		return report.ErrSavedReportNotFound
	}
	f.nextRun[id] = next
	return nil
}

func (f *fakeSavedReports) ListDue(_ context.Context, now time.Time, limit int) ([]*report.SavedReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*report.SavedReport
	for id, r := range f.reports {
		if next := f.nextRun[id]; next != nil && !next.After(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Name() < due[j].Name() })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

type fakeExecutions struct {
	mu    sync.Mutex
	items []*report.Execution
}

func (f *fakeExecutions) Create(_ context.Context, e *report.Execution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, e)
	return nil
}

func (f *fakeExecutions) Update(_ context.Context, e *report.Execution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, it := range f.items {
		if it.ID() == e.ID() {
			f.items[i] = e
			return nil
		}
	}
	return report.ErrExecutionNotFound
}

func (f *fakeExecutions) ListBySavedReport(_ context.Context, id shared.ID, page pagination.Pagination) (pagination.Result[*report.Execution], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*report.Execution
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].SavedReportID() == id {
			out = append(out, f.items[i])
		}
	}
	total := int64(len(out))
	start := min(page.Offset(), len(out))
	end := min(start+page.Limit(), len(out))
	return pagination.NewResult(out[start:end], total, page), nil
}

// =============================================================================
// Identity Provider
// =============================================================================

type fakeIdentities struct {
	mu         sync.Mutex
	identities map[string]scope.CallerScope
}

func (f *fakeIdentities) set(identity scope.CallerScope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.identities == nil {
		f.identities = make(map[string]scope.CallerScope)
	}
	f.identities[identity.UserID] = identity
}

func (f *fakeIdentities) CallerScope(_ context.Context, userID string) (scope.CallerScope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[userID]
	if !ok {
		return scope.CallerScope{}, shared.ErrForbidden
	}
	return identity, nil
}

// =============================================================================
// Helpers
// =============================================================================

func newTestReportService(t *testing.T, store reportquery.Store, opts ...ReportServiceOption) *ReportService {
	t.Helper()
	reg, err := report.DefaultRegistry()
	require.NoError(t, err)

	svc := NewReportService(reg, store, logger.NewNop(), opts...)
	svc.newCorrelationID = func() string { return "corr-1" }
	return svc
}

func summaryRequest(filters ...report.ReportFilter) report.ReportRequest {
	return report.ReportRequest{
		TemplateID: "player-summary",
		Filters:    filters,
		PageNumber: 1,
		PageSize:   2,
	}
}
