package reportquery

import (
	"fmt"
	"strings"

	"github.com/playreport/api/pkg/domain/report"
)

// Encode translates one filter into a bound predicate. The field is used
// as the column verbatim; callers must validate it against the template
// allow-list first. rawValue only ever becomes a parameter value.
//
// Parameter names derive from occurrenceIndex: pN for single values and
// pN_1, pN_2 for Between bounds.
func Encode(field string, op report.Operator, rawValue string, occurrenceIndex int) (Predicate, error) {
	return encode(field, field, op, rawValue, occurrenceIndex)
}

func encode(field, column string, op report.Operator, rawValue string, occurrenceIndex int) (Predicate, error) {
	name := fmt.Sprintf("p%d", occurrenceIndex)

	switch op {
	case report.OperatorEquals:
		return EqualsPredicate{
			FieldName: field,
			Column:    column,
			Value:     Param{Name: name, Value: rawValue},
		}, nil

	case report.OperatorContains:
		return pattern(field, column, op, name, "%"+rawValue+"%"), nil

	case report.OperatorStartsWith:
		return pattern(field, column, op, name, rawValue+"%"), nil

	case report.OperatorEndsWith:
		return pattern(field, column, op, name, "%"+rawValue), nil

	case report.OperatorIn:
		values := splitValues(rawValue)
		if len(values) == 0 {
			return nil, &report.InvalidFilterError{Field: field, Operator: op, Reason: "value list is empty"}
		}
		return SetMembershipPredicate{
			FieldName: field,
			Column:    column,
			Values:    Param{Name: name, Value: values},
		}, nil

	case report.OperatorBetween:
		parts := strings.Split(rawValue, report.ValueDelimiter)
		if len(parts) != 2 {
			return nil, &report.InvalidFilterError{
				Field:    field,
				Operator: op,
				Reason:   fmt.Sprintf("expected exactly 2 bounds, got %d", len(parts)),
			}
		}
		low, high := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if low == "" || high == "" {
			return nil, &report.InvalidFilterError{Field: field, Operator: op, Reason: "range bound is empty"}
		}
		return RangePredicate{
			FieldName: field,
			Column:    column,
			Low:       Param{Name: name + "_1", Value: low},
			High:      Param{Name: name + "_2", Value: high},
		}, nil
	}

	return nil, &report.UnsupportedOperatorError{Operator: string(op)}
}

func pattern(field, column string, op report.Operator, name, value string) PatternPredicate {
	return PatternPredicate{
		FieldName: field,
		Column:    column,
		Operator:  op,
		Value:     Param{Name: name, Value: value},
	}
}

// splitValues splits an In payload, trimming parts and dropping empty ones.
func splitValues(raw string) []string {
	parts := strings.Split(raw, report.ValueDelimiter)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
