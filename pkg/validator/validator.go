// Package validator provides struct validation utilities with custom validators.
package validator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/shared"
)

// fieldNameRegex matches template field names: camelCase identifiers.
var fieldNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*$`)

// templateIDRegex matches template ids: lowercase words joined by hyphens.
var templateIDRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s: %s", e.Field, e.Message)
	}
	return sb.String()
}

// Unwrap classifies every ValidationErrors as a validation failure.
func (v ValidationErrors) Unwrap() error { return shared.ErrValidation }

// New creates a new Validator with custom validators registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	_ = v.RegisterValidation("report_operator", validateReportOperator)
	_ = v.RegisterValidation("report_field", validateReportField)
	_ = v.RegisterValidation("template_id", validateTemplateID)
	_ = v.RegisterValidation("cron_schedule", validateCronSchedule)

	return &Validator{validate: v}
}

// Validate validates a struct and returns ValidationErrors if validation fails.
func (v *Validator) Validate(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return err
	}

	result := make(ValidationErrors, 0, len(validationErrors))
	for _, e := range validationErrors {
		result = append(result, ValidationError{
			Field:   fieldPath(e),
			Message: formatErrorMessage(e),
		})
	}

	return result
}

// ValidateRequest checks the shape of a report request before it reaches
// the composer. Paging defaults are applied first so an omitted page is
// not reported as an error.
func (v *Validator) ValidateRequest(req report.ReportRequest) error {
	return v.Validate(req.WithDefaults())
}

func validateReportOperator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return report.Operator(value).IsValid()
}

func validateReportField(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return fieldNameRegex.MatchString(value)
}

func validateTemplateID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return templateIDRegex.MatchString(value)
}

// validateCronSchedule accepts standard five-field cron expressions and
// descriptors such as @daily.
func validateCronSchedule(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if value == "" {
		return true
	}
	_, err := cron.ParseStandard(value)
	return err == nil
}

// jsonFieldName reports fields under their wire name.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// formatErrorMessage creates a human-readable error message.
func formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "report_operator":
		return fmt.Sprintf("must be one of: %s", formatOperators())
	case "report_field":
		return "must be a field name (letters and digits, starting with a letter)"
	case "template_id":
		return "must be a template id (lowercase letters, numbers, hyphens only)"
	case "cron_schedule":
		return "must be a valid cron expression (e.g., 0 6 * * *)"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", e.Tag())
	}
}

// fieldPath renders the namespace without the root struct name, so
// "ReportRequest.Filters[1].Operator" becomes "filters[1].operator".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		parts[i] = toSnakeCase(p)
	}
	return strings.Join(parts, ".")
}

// toSnakeCase converts PascalCase/camelCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

// formatOperators returns a comma-separated list of filter operators.
func formatOperators() string {
	ops := report.AllOperators()
	strs := make([]string, len(ops))
	for i, op := range ops {
		strs[i] = string(op)
	}
	return strings.Join(strs, ", ")
}
