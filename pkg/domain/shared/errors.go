// Package shared holds the error sentinels and identifiers common to every
// reporting domain package.
package shared

import (
	"errors"
	"fmt"
)

// Domain errors. Every domain-specific error wraps exactly one of these so
// callers can classify failures with errors.Is.
var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	ErrForbidden   = errors.New("forbidden")
	ErrInternal    = errors.New("internal error")
	ErrUnavailable = errors.New("service unavailable")
)

// DomainError represents a domain-specific error with a stable code.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError.
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsForbidden checks if the error is an access error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
