// Package apierror maps report engine errors onto transport-level error
// responses. It never exposes internal causes to clients.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/shared"
)

// Code represents an error code.
type Code string

// Standard error codes.
const (
	CodeBadRequest          Code = "BAD_REQUEST"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInternalError       Code = "INTERNAL_ERROR"
	CodeServiceUnavailable  Code = "SERVICE_UNAVAILABLE"
	CodeTimeout             Code = "TIMEOUT"
	CodeValidationFailed    Code = "VALIDATION_FAILED"
	CodeInvalidField        Code = "INVALID_FIELD"
	CodeInvalidFilter       Code = "INVALID_FILTER"
	CodeUnsupportedOperator Code = "UNSUPPORTED_OPERATOR"
	CodeUnknownTemplate     Code = "UNKNOWN_TEMPLATE"
	CodeQueryFailed         Code = "QUERY_FAILED"
)

// Error represents a standardized API error.
type Error struct {
	// HTTP status code
	Status int `json:"-"`

	// Machine-readable error code
	Code Code `json:"code"`

	// Human-readable error message
	Message string `json:"message"`

	// Additional error details (optional)
	Details any `json:"details,omitempty"`

	// Internal error (not exposed to client)
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Response represents the error response structure.
type Response struct {
	Error     string `json:"error"`
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ToResponse converts the error to a response structure.
func (e *Error) ToResponse() Response {
	return Response{
		Error:   string(e.Code),
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// WriteJSON writes the error as JSON to the response writer.
func (e *Error) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e.ToResponse())
}

// New creates a new API error.
func New(status int, code Code, message string) *Error {
	return &Error{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// WithDetails adds details to the error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// InternalError creates a 500 Internal Server Error.
func InternalError(err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternalError,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// FieldDetail identifies the rejected request field.
type FieldDetail struct {
	Field string `json:"field"`
	Kind  string `json:"kind,omitempty"`
}

// FromError converts an engine error into an API error. Validation-class
// errors keep their message; access and store failures get generic text.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var (
		fieldErr    *report.InvalidFieldError
		filterErr   *report.InvalidFilterError
		operatorErr *report.UnsupportedOperatorError
		templateErr *report.UnknownTemplateError
		queryErr    *report.QueryExecutionError
	)

	switch {
	case errors.As(err, &fieldErr):
		return &Error{
			Status:  http.StatusBadRequest,
			Code:    CodeInvalidField,
			Message: fieldErr.Error(),
			Details: FieldDetail{Field: fieldErr.Field, Kind: string(fieldErr.Kind)},
			Err:     err,
		}
	case errors.As(err, &filterErr):
		return &Error{
			Status:  http.StatusBadRequest,
			Code:    CodeInvalidFilter,
			Message: filterErr.Error(),
			Details: FieldDetail{Field: filterErr.Field},
			Err:     err,
		}
	case errors.As(err, &operatorErr):
		return &Error{Status: http.StatusBadRequest, Code: CodeUnsupportedOperator, Message: operatorErr.Error(), Err: err}
	case errors.As(err, &templateErr):
		return &Error{Status: http.StatusNotFound, Code: CodeUnknownTemplate, Message: templateErr.Error(), Err: err}
	case errors.As(err, &queryErr):
		return &Error{
			Status:  http.StatusInternalServerError,
			Code:    CodeQueryFailed,
			Message: "The report could not be generated",
			Details: map[string]string{"correlation_id": queryErr.CorrelationID},
			Err:     err,
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Status: http.StatusGatewayTimeout, Code: CodeTimeout, Message: "The report timed out", Err: err}
	case errors.Is(err, shared.ErrForbidden):
		return &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: "Access denied", Err: err}
	case errors.Is(err, shared.ErrNotFound):
		return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: "Resource not found", Err: err}
	case errors.Is(err, shared.ErrValidation):
		return &Error{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: err.Error(), Err: err}
	case errors.Is(err, shared.ErrUnavailable):
		return &Error{Status: http.StatusServiceUnavailable, Code: CodeServiceUnavailable, Message: "Service temporarily unavailable", Err: err}
	}

	return InternalError(err)
}
