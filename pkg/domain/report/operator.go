package report

import "strings"

// =============================================================================
// Filter Operator
// =============================================================================

// Operator is a filter comparison supported by report templates.
type Operator string

const (
	OperatorEquals     Operator = "equals"
	OperatorContains   Operator = "contains"
	OperatorStartsWith Operator = "startswith"
	OperatorEndsWith   Operator = "endswith"
	OperatorIn         Operator = "in"
	OperatorBetween    Operator = "between"
)

// ValueDelimiter separates the parts of In and Between filter values.
const ValueDelimiter = ","

// String returns the string representation of the operator.
func (o Operator) String() string {
	return string(o)
}

// IsValid returns true if the operator is supported.
func (o Operator) IsValid() bool {
	switch o {
	case OperatorEquals, OperatorContains, OperatorStartsWith,
		OperatorEndsWith, OperatorIn, OperatorBetween:
		return true
	}
	return false
}

// ParseOperator parses an operator name case-insensitively.
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.ToLower(strings.TrimSpace(s)))
	if !op.IsValid() {
		return "", &UnsupportedOperatorError{Operator: s}
	}
	return op, nil
}

// UnmarshalText normalises operator names decoded from JSON or YAML.
// Unknown names are kept as-is so the query layer can reject them.
func (o *Operator) UnmarshalText(text []byte) error {
	*o = Operator(strings.ToLower(strings.TrimSpace(string(text))))
	return nil
}

// AllOperators returns all supported operators.
func AllOperators() []Operator {
	return []Operator{
		OperatorEquals, OperatorContains, OperatorStartsWith,
		OperatorEndsWith, OperatorIn, OperatorBetween,
	}
}
