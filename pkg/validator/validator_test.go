package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/shared"
)

func TestNew(t *testing.T) {
	v := New()
	require.NotNil(t, v)
	require.NotNil(t, v.validate)
}

func TestValidateRequest(t *testing.T) {
	v := New()

	valid := report.ReportRequest{
		TemplateID: "player-summary",
		Filters: []report.ReportFilter{
			{Field: "country", Operator: report.OperatorEquals, Value: "UK"},
			{Field: "registeredDate", Operator: report.OperatorBetween, Value: "2024-01-01,2024-12-31"},
		},
		OrderBy: []report.OrderBy{{Field: "playerId", Ascending: true}},
	}

	tests := []struct {
		name      string
		mutate    func(r *report.ReportRequest)
		wantField string
	}{
		{name: "valid with default paging", mutate: func(*report.ReportRequest) {}},
		{name: "missing template", mutate: func(r *report.ReportRequest) { r.TemplateID = "" }, wantField: "template_id"},
		{name: "malformed template id", mutate: func(r *report.ReportRequest) { r.TemplateID = "Player Summary" }, wantField: "template_id"},
		{name: "unknown operator", mutate: func(r *report.ReportRequest) { r.Filters[0].Operator = "like" }, wantField: "filters[0].operator"},
		{name: "missing operator", mutate: func(r *report.ReportRequest) { r.Filters[1].Operator = "" }, wantField: "filters[1].operator"},
		{name: "field with punctuation", mutate: func(r *report.ReportRequest) { r.Filters[0].Field = "country;--" }, wantField: "filters[0].field"},
		{name: "negative page", mutate: func(r *report.ReportRequest) { r.PageNumber = -1 }, wantField: "page_number"},
		{name: "blank order field", mutate: func(r *report.ReportRequest) { r.OrderBy[0].Field = "" }, wantField: "order_by[0].field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid.Clone()
			tt.mutate(&req)

			err := v.ValidateRequest(req)
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrValidation)

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.NotEmpty(t, verrs)
			assert.Equal(t, tt.wantField, verrs[0].Field)
		})
	}
}

func TestValidateRequest_OperatorMessageListsOperators(t *testing.T) {
	err := New().ValidateRequest(report.ReportRequest{
		TemplateID: "bonuses",
		Filters:    []report.ReportFilter{{Field: "amount", Operator: "regex", Value: "x"}},
	})

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs[0].Message, "startswith")
	assert.Contains(t, verrs[0].Message, "between")
}

func TestValidateCronSchedule(t *testing.T) {
	v := New()

	type input struct {
		Schedule string `validate:"cron_schedule"`
	}

	tests := []struct {
		schedule string
		wantErr  bool
	}{
		{"", false},
		{"0 6 * * *", false},
		{"@daily", false},
		{"*/15 * * * 1-5", false},
		{"every morning", true},
		{"0 6 * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			err := v.Validate(input{Schedule: tt.schedule})
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "template_id", Message: "is required"},
		{Field: "page_size", Message: "must be at least 1"},
	}
	assert.Equal(t, "template_id: is required; page_size: must be at least 1", errs.Error())
	assert.Empty(t, ValidationErrors{}.Error())
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "template_id", toSnakeCase("TemplateId"))
	assert.Equal(t, "page_number", toSnakeCase("PageNumber"))
	assert.Equal(t, "name", toSnakeCase("Name"))
}
