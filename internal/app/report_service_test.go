package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/scope"
	"github.com/playreport/api/pkg/domain/shared"
	"github.com/playreport/api/pkg/reportquery"
)

func TestReportService_Execute_SubpartnerScenario(t *testing.T) {
	store := newFakeStore(5)
	svc := newTestReportService(t, store)
	identity := scope.Subpartner("sub-1", 7, "aff42")

	req := summaryRequest(report.ReportFilter{Field: "country", Operator: report.OperatorEquals, Value: "UK"})
	res, err := svc.Execute(context.Background(), identity, req)
	require.NoError(t, err)

	assert.Equal(t, int64(5), res.TotalCount)
	assert.Len(t, res.Rows, 2)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, "player-summary", res.TemplateID)
	assert.Equal(t, []string{"playerId", "country"}, res.ColumnNames())
	require.Equal(t, 1, store.calls())

	preds := store.lastQuery().Predicates
	require.Len(t, preds, 3)

	tenant, ok := preds[0].(reportquery.MandatoryPredicate)
	require.True(t, ok)
	assert.Equal(t, scope.TargetTenant, tenant.Target)
	assert.EqualValues(t, 7, tenant.Value.Value)

	tracker, ok := preds[1].(reportquery.MandatoryPredicate)
	require.True(t, ok)
	assert.Equal(t, scope.TargetTracker, tracker.Target)
	assert.Equal(t, "aff42", tracker.Value.Value)

	country, ok := preds[2].(reportquery.EqualsPredicate)
	require.True(t, ok)
	assert.Equal(t, "country", country.FieldName)
	assert.Equal(t, "UK", country.Value.Value)
}

func TestReportService_Execute_LastPage(t *testing.T) {
	store := newFakeStore(5)
	svc := newTestReportService(t, store)

	req := summaryRequest()
	req.PageNumber = 3
	res, err := svc.Execute(context.Background(), scope.Partner("p-1", 7), req)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)

	req.PageNumber = 4
	res, err = svc.Execute(context.Background(), scope.Partner("p-1", 7), req)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.NotNil(t, res.Rows)
	assert.Equal(t, int64(5), res.TotalCount)
}

func TestReportService_Execute_RejectsBeforeStore(t *testing.T) {
	identity := scope.Subpartner("sub-1", 7, "aff42")

	tests := []struct {
		name     string
		identity scope.CallerScope
		req      report.ReportRequest
		is       func(error) bool
	}{
		{
			name:     "filter field outside allow-list",
			identity: identity,
			req:      summaryRequest(report.ReportFilter{Field: "internalAuditFlag", Operator: report.OperatorEquals, Value: "1"}),
			is:       report.IsInvalidField,
		},
		{
			name:     "malformed between",
			identity: identity,
			req:      summaryRequest(report.ReportFilter{Field: "totalDeposits", Operator: report.OperatorBetween, Value: "10"}),
			is:       report.IsInvalidFilter,
		},
		{
			name:     "unknown operator",
			identity: identity,
			req:      summaryRequest(report.ReportFilter{Field: "country", Operator: report.Operator("regex"), Value: "x"}),
			is:       report.IsUnsupportedOperator,
		},
		{
			name:     "unknown template",
			identity: identity,
			req:      report.ReportRequest{TemplateID: "casino-secrets"},
			is:       report.IsUnknownTemplate,
		},
		{
			name:     "admin-only template for partner",
			identity: scope.Partner("p-1", 7),
			req:      report.ReportRequest{TemplateID: "white-label-revenue"},
			is:       report.IsUnknownTemplate,
		},
		{
			name:     "partner without tenants",
			identity: scope.CallerScope{UserID: "p-2", Role: scope.RolePartner},
			req:      summaryRequest(),
			is:       func(err error) bool { return errors.Is(err, shared.ErrForbidden) },
		},
		{
			name:     "subpartner without tenant",
			identity: scope.CallerScope{UserID: "s-2", Role: scope.RoleSubpartner},
			req:      summaryRequest(),
			is:       func(err error) bool { return errors.Is(err, shared.ErrForbidden) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(5)
			svc := newTestReportService(t, store)

			res, err := svc.Execute(context.Background(), tt.identity, tt.req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, tt.is(err), "unexpected error %v", err)
			assert.Zero(t, store.calls(), "no store call on a rejected request")
		})
	}
}

func TestReportService_Execute_RetriesTransientOnce(t *testing.T) {
	store := newFakeStore(5)
	store.failWith(fmt.Errorf("connection reset: %w", shared.ErrUnavailable))
	svc := newTestReportService(t, store)

	res, err := svc.Execute(context.Background(), scope.Admin("admin"), summaryRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.TotalCount)
	assert.Equal(t, 2, store.calls())
	assert.Same(t, store.queries[0], store.queries[1], "retry reuses the composed query")
}

func TestReportService_Execute_GivesUpAfterSecondTransient(t *testing.T) {
	store := newFakeStore(5)
	transient := fmt.Errorf("connection reset: %w", shared.ErrUnavailable)
	store.failWith(transient, transient)
	svc := newTestReportService(t, store)

	_, err := svc.Execute(context.Background(), scope.Admin("admin"), summaryRequest())
	require.Error(t, err)

	var qe *report.QueryExecutionError
	require.ErrorAs(t, err, &qe)
	assert.True(t, qe.Transient)
	assert.Equal(t, "corr-1", qe.CorrelationID)
	assert.Equal(t, 2, store.calls())
}

func TestReportService_Execute_NoRetryForPermanentFailure(t *testing.T) {
	store := newFakeStore(5)
	store.failWith(errors.New(`pq: column "white_label_name" does not exist`))
	svc := newTestReportService(t, store)

	_, err := svc.Execute(context.Background(), scope.Partner("p-1", 7), summaryRequest())
	require.Error(t, err)

	var qe *report.QueryExecutionError
	require.ErrorAs(t, err, &qe)
	assert.False(t, qe.Transient)
	assert.Equal(t, "player-summary", qe.TemplateID)
	assert.NotContains(t, qe.Error(), "white_label_name")
	assert.Equal(t, 1, store.calls())
}

func TestReportService_Execute_CancelledContextNotRetried(t *testing.T) {
	store := newFakeStore(5)
	store.gate = make(chan struct{})
	svc := newTestReportService(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Execute(ctx, scope.Admin("admin"), summaryRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.calls())
}

func TestReportService_ListTemplates(t *testing.T) {
	svc := newTestReportService(t, newFakeStore(0))

	ids := func(list []TemplateSummary) []string {
		out := make([]string, len(list))
		for i, s := range list {
			out[i] = s.ID
		}
		return out
	}

	partner := ids(svc.ListTemplates(scope.Partner("p-1", 7)))
	admin := ids(svc.ListTemplates(scope.Admin("admin")))

	assert.Contains(t, partner, "player-summary")
	assert.NotContains(t, partner, "white-label-revenue")
	assert.Contains(t, admin, "white-label-revenue")
	assert.Greater(t, len(admin), len(partner))
}

func TestReportService_Compose(t *testing.T) {
	svc := newTestReportService(t, newFakeStore(0))

	q, err := svc.Compose(scope.Partner("p-1", 9, 7), summaryRequest())
	require.NoError(t, err)
	require.NotEmpty(t, q.MandatoryPredicates())
	assert.Equal(t, []int64{7, 9}, q.MandatoryPredicates()[0].Value.Value)
	assert.Equal(t, q.Args(), q.Args())
}

func TestReportService_DefaultPageSize(t *testing.T) {
	store := newFakeStore(30)
	svc := newTestReportService(t, store, WithDefaultPageSize(10))

	req := summaryRequest()
	req.PageSize = 0
	res, err := svc.Execute(context.Background(), scope.Admin("admin"), req)
	require.NoError(t, err)
	assert.Equal(t, 10, res.PageSize)
	assert.Len(t, res.Rows, 10)
	assert.Equal(t, 3, res.TotalPages)

	// An explicit size wins over the default.
	res, err = svc.Execute(context.Background(), scope.Admin("admin"), summaryRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, res.PageSize)
}

func TestReportService_Execute_CapsRowsAtPageSize(t *testing.T) {
	store := newFakeStore(5)
	store.overrun = 3
	svc := newTestReportService(t, store)

	res, err := svc.Execute(context.Background(), scope.Admin("admin"), summaryRequest())
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
	assert.Equal(t, int64(1), res.Rows[0][0])
}
