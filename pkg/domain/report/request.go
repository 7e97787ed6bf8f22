package report

import "slices"

// ReportFilter is one user-supplied condition. Value is raw text; In and
// Between values are ValueDelimiter-separated.
type ReportFilter struct {
	Field    string   `json:"field" yaml:"field" validate:"required,max=100,report_field"`
	Operator Operator `json:"operator" yaml:"operator" validate:"required,report_operator"`
	Value    string   `json:"value" yaml:"value" validate:"max=4096"`
}

// OrderBy is one sort key.
type OrderBy struct {
	Field     string `json:"field" yaml:"field" validate:"required,max=100,report_field"`
	Ascending bool   `json:"ascending" yaml:"ascending"`
}

// ReportRequest is the caller's abstract report specification. The engine
// treats it as immutable once received and works on a Clone.
type ReportRequest struct {
	TemplateID string         `json:"template_id" yaml:"template_id" validate:"required,max=100,template_id"`
	Columns    []string       `json:"columns,omitempty" yaml:"columns,omitempty" validate:"omitempty,max=100,dive,required,max=100,report_field"`
	Filters    []ReportFilter `json:"filters,omitempty" yaml:"filters,omitempty" validate:"omitempty,max=50,dive"`
	GroupBy    []string       `json:"group_by,omitempty" yaml:"group_by,omitempty" validate:"omitempty,max=10,dive,required,max=100,report_field"`
	OrderBy    []OrderBy      `json:"order_by,omitempty" yaml:"order_by,omitempty" validate:"omitempty,max=10,dive"`
	PageNumber int            `json:"page_number" yaml:"page_number" validate:"min=1"`
	PageSize   int            `json:"page_size" yaml:"page_size" validate:"min=1"`
}

// Default page values applied by WithDefaults.
const (
	DefaultPageNumber = 1
	DefaultPageSize   = 50
)

// Clone returns a deep copy of the request.
func (r ReportRequest) Clone() ReportRequest {
	r.Columns = slices.Clone(r.Columns)
	r.Filters = slices.Clone(r.Filters)
	r.GroupBy = slices.Clone(r.GroupBy)
	r.OrderBy = slices.Clone(r.OrderBy)
	return r
}

// WithDefaults returns a copy with unset paging filled in.
func (r ReportRequest) WithDefaults() ReportRequest {
	out := r.Clone()
	if out.PageNumber == 0 {
		out.PageNumber = DefaultPageNumber
	}
	if out.PageSize == 0 {
		out.PageSize = DefaultPageSize
	}
	return out
}

// IsGrouped reports whether the request aggregates rows.
func (r ReportRequest) IsGrouped() bool {
	return len(r.GroupBy) > 0
}
