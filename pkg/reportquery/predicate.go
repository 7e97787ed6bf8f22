package reportquery

import (
	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/scope"
)

// Param is one named bound value. Values are never written into SQL text.
type Param struct {
	Name  string
	Value any
}

// Predicate is a single bound condition. The set of implementations is
// closed; the renderer switches over all of them.
type Predicate interface {
	// Field returns the logical field or scope target the predicate restricts.
	Field() string

	// Mandatory reports whether the predicate came from the caller's scope.
	Mandatory() bool

	// Params returns the bound values in placeholder order.
	Params() []Param

	predicateNode()
}

// EqualsPredicate renders column = $n.
type EqualsPredicate struct {
	FieldName string
	Column    string
	Value     Param
}

// PatternPredicate renders column LIKE $n. Value carries the wildcards.
type PatternPredicate struct {
	FieldName string
	Column    string
	Operator  report.Operator
	Value     Param
}

// SetMembershipPredicate renders column = ANY($n) with an array parameter.
type SetMembershipPredicate struct {
	FieldName string
	Column    string
	Values    Param
}

// RangePredicate renders column BETWEEN $a AND $b.
type RangePredicate struct {
	FieldName string
	Column    string
	Low       Param
	High      Param
}

// MandatoryPredicate is a scope restriction. It wraps an equality or set
// membership condition and can never be dropped from a composed query.
type MandatoryPredicate struct {
	Target     scope.Target
	Column     string
	Comparison scope.Comparison
	Value      Param
}

func (p EqualsPredicate) Field() string        { return p.FieldName }
func (p PatternPredicate) Field() string       { return p.FieldName }
func (p SetMembershipPredicate) Field() string { return p.FieldName }
func (p RangePredicate) Field() string         { return p.FieldName }
func (p MandatoryPredicate) Field() string     { return string(p.Target) }

func (EqualsPredicate) Mandatory() bool        { return false }
func (PatternPredicate) Mandatory() bool       { return false }
func (SetMembershipPredicate) Mandatory() bool { return false }
func (RangePredicate) Mandatory() bool         { return false }
func (MandatoryPredicate) Mandatory() bool     { return true }

func (p EqualsPredicate) Params() []Param        { return []Param{p.Value} }
func (p PatternPredicate) Params() []Param       { return []Param{p.Value} }
func (p SetMembershipPredicate) Params() []Param { return []Param{p.Values} }
func (p RangePredicate) Params() []Param         { return []Param{p.Low, p.High} }
func (p MandatoryPredicate) Params() []Param     { return []Param{p.Value} }

func (EqualsPredicate) predicateNode()        {}
func (PatternPredicate) predicateNode()       {}
func (SetMembershipPredicate) predicateNode() {}
func (RangePredicate) predicateNode()         {}
func (MandatoryPredicate) predicateNode()     {}
