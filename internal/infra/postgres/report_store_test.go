package postgres

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/scope"
	"github.com/playreport/api/pkg/domain/shared"
	"github.com/playreport/api/pkg/reportquery"
)

func newMockStore(t *testing.T, opts ...ReportStoreOption) (*ReportStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewReportStore(&DB{DB: sqlDB}, opts...), mock
}

func composeSummary(t *testing.T) *reportquery.ComposedQuery {
	t.Helper()
	reg, err := report.DefaultRegistry()
	require.NoError(t, err)
	tmpl, err := reg.Get("player-summary")
	require.NoError(t, err)

	scopePreds, err := scope.NewResolver().Resolve(scope.Subpartner("u1", 7, "trk-55"))
	require.NoError(t, err)

	q, err := reportquery.NewComposer().Compose(report.ReportRequest{
		TemplateID: "player-summary",
		Columns:    []string{"playerId", "country"},
		Filters:    []report.ReportFilter{{Field: "country", Operator: report.OperatorEquals, Value: "UK"}},
		PageNumber: 1,
		PageSize:   2,
	}, scopePreds, tmpl)
	require.NoError(t, err)
	return q
}

func argsOf(q *reportquery.ComposedQuery) []driver.Value {
	out := make([]driver.Value, 0, len(q.Params))
	for _, a := range q.Args() {
		out = append(out, a)
	}
	return out
}

func TestReportStore_Snapshot(t *testing.T) {
	store, mock := newMockStore(t)
	q := composeSummary(t)
	args := argsOf(q)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(q.DataStatement)).
		WithArgs(args...).
		WillReturnRows(sqlmock.NewRows([]string{"playerId", "country"}).
			AddRow(int64(1), []byte("UK")).
			AddRow(int64(2), []byte("UK")))
	mock.ExpectQuery(regexp.QuoteMeta(q.CountStatement)).
		WithArgs(args...).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5)))
	mock.ExpectCommit()

	res, err := store.Run(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, int64(5), res.TotalCount)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, []any{int64(1), "UK"}, res.Rows[0])
	require.Len(t, res.Schema, 2)
	assert.Equal(t, "playerId", res.Schema[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportStore_Concurrent(t *testing.T) {
	store, mock := newMockStore(t, WithConcurrentCount(true))
	mock.MatchExpectationsInOrder(false)
	q := composeSummary(t)
	args := argsOf(q)

	mock.ExpectQuery(regexp.QuoteMeta(q.CountStatement)).
		WithArgs(args...).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta(q.DataStatement)).
		WithArgs(args...).
		WillReturnRows(sqlmock.NewRows([]string{"playerId", "country"}))

	res, err := store.Run(context.Background(), q)
	require.NoError(t, err)

	assert.Zero(t, res.TotalCount)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportStore_TransientFailureIsUnavailable(t *testing.T) {
	store, mock := newMockStore(t, WithConcurrentCount(true))
	mock.MatchExpectationsInOrder(false)
	q := composeSummary(t)

	mock.ExpectQuery(regexp.QuoteMeta(q.CountStatement)).WillReturnError(&pq.Error{Code: "08006"})
	mock.ExpectQuery(regexp.QuoteMeta(q.DataStatement)).
		WillReturnRows(sqlmock.NewRows([]string{"playerId", "country"}))

	_, err := store.Run(context.Background(), q)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUnavailable)
}
