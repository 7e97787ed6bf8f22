package report

import (
	"errors"
	"fmt"

	"github.com/playreport/api/pkg/domain/shared"
)

// Domain errors for report templates and saved reports.
var (
	ErrInvalidTemplate      = fmt.Errorf("%w: invalid report template", shared.ErrValidation)
	ErrDuplicateTemplate    = fmt.Errorf("%w: duplicate report template id", shared.ErrValidation)
	ErrSavedReportNotFound  = fmt.Errorf("%w: saved report not found", shared.ErrNotFound)
	ErrExecutionNotFound    = fmt.Errorf("%w: report execution not found", shared.ErrNotFound)
	ErrInvalidSchedule      = fmt.Errorf("%w: invalid report schedule", shared.ErrValidation)
	ErrInvalidPage          = fmt.Errorf("%w: invalid page specification", shared.ErrValidation)
	ErrScheduleNotSupported = fmt.Errorf("%w: saved report has no schedule", shared.ErrValidation)
)

// FieldKind names the part of a request a field was used in.
type FieldKind string

const (
	FieldKindFilter FieldKind = "filter"
	FieldKindGroup  FieldKind = "group"
	FieldKindOrder  FieldKind = "order"
	FieldKindColumn FieldKind = "column"
)

// InvalidFieldError is returned when a request references a field outside
// the template's allow-list for that usage.
type InvalidFieldError struct {
	TemplateID string
	Field      string
	Kind       FieldKind
	Reason     string
}

func (e *InvalidFieldError) Error() string {
	msg := fmt.Sprintf("field %q is not allowed as a %s field for template %q", e.Field, e.Kind, e.TemplateID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidFieldError) Unwrap() error { return shared.ErrValidation }

// UnsupportedOperatorError is returned for operators outside the fixed set.
type UnsupportedOperatorError struct {
	Operator string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported filter operator %q", e.Operator)
}

func (e *UnsupportedOperatorError) Unwrap() error { return shared.ErrValidation }

// InvalidFilterError is returned when an In or Between value is malformed.
type InvalidFilterError struct {
	Field    string
	Operator Operator
	Reason   string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid %s filter on %q: %s", e.Operator, e.Field, e.Reason)
}

func (e *InvalidFilterError) Unwrap() error { return shared.ErrValidation }

// UnknownTemplateError is returned for template ids that are not registered
// or not visible to the caller.
type UnknownTemplateError struct {
	TemplateID string
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("unknown report template %q", e.TemplateID)
}

func (e *UnknownTemplateError) Unwrap() error { return shared.ErrNotFound }

// QueryExecutionError wraps a store failure. It deliberately carries no SQL
// text and no parameter values.
type QueryExecutionError struct {
	TemplateID    string
	CorrelationID string
	Transient     bool
	Err           error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("report %q query failed (correlation id %s)", e.TemplateID, e.CorrelationID)
}

// Unwrap exposes both the internal sentinel and the cause.
func (e *QueryExecutionError) Unwrap() []error {
	return []error{shared.ErrInternal, e.Err}
}

// IsInvalidField checks if the error is an InvalidFieldError.
func IsInvalidField(err error) bool {
	var target *InvalidFieldError
	return errors.As(err, &target)
}

// IsInvalidFilter checks if the error is an InvalidFilterError.
func IsInvalidFilter(err error) bool {
	var target *InvalidFilterError
	return errors.As(err, &target)
}

// IsUnsupportedOperator checks if the error is an UnsupportedOperatorError.
func IsUnsupportedOperator(err error) bool {
	var target *UnsupportedOperatorError
	return errors.As(err, &target)
}

// IsUnknownTemplate checks if the error is an UnknownTemplateError.
func IsUnknownTemplate(err error) bool {
	var target *UnknownTemplateError
	return errors.As(err, &target)
}

// IsQueryExecution checks if the error is a QueryExecutionError.
func IsQueryExecution(err error) bool {
	var target *QueryExecutionError
	return errors.As(err, &target)
}
