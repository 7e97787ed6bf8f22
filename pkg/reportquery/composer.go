// Package reportquery turns report requests into parameterized Postgres
// statements. User text only ever reaches the database as bound values.
package reportquery

import (
	"fmt"
	"slices"

	"github.com/lib/pq"

	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/scope"
	"github.com/playreport/api/pkg/pagination"
)

// DefaultMaxPageSize bounds page sizes when no limit is configured.
const DefaultMaxPageSize = 500

// ComposedQuery is the output of Compose. DataStatement and CountStatement
// share Predicates and Params; only the data statement orders and pages.
type ComposedQuery struct {
	TemplateID     string
	DataStatement  string
	CountStatement string
	Params         []Param
	Predicates     []Predicate
	Columns        []string
	Page           pagination.Pagination
}

// Args returns the positional driver arguments for both statements.
// Slice values are wrapped as Postgres arrays.
func (q *ComposedQuery) Args() []any {
	args := make([]any, len(q.Params))
	for i, p := range q.Params {
		switch v := p.Value.(type) {
		case []string:
			args[i] = pq.Array(v)
		case []int64:
			args[i] = pq.Array(v)
		default:
			args[i] = v
		}
	}
	return args
}

// Param returns the value bound under name.
func (q *ComposedQuery) Param(name string) (any, bool) {
	for _, p := range q.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// MandatoryPredicates returns the scope predicates carried by the query.
func (q *ComposedQuery) MandatoryPredicates() []MandatoryPredicate {
	out := make([]MandatoryPredicate, 0, len(q.Predicates))
	for _, p := range q.Predicates {
		if m, ok := p.(MandatoryPredicate); ok {
			out = append(out, m)
		}
	}
	return out
}

// Composer builds ComposedQuery values. It is an immutable value and safe
// for concurrent use; With* methods return modified copies.
type Composer struct {
	maxPageSize int
}

// NewComposer creates a Composer with the default page size limit.
func NewComposer() Composer {
	return Composer{maxPageSize: DefaultMaxPageSize}
}

// WithMaxPageSize returns a copy that accepts page sizes up to n.
func (c Composer) WithMaxPageSize(n int) Composer {
	if n > 0 {
		c.maxPageSize = n
	}
	return c
}

// MaxPageSize returns the largest accepted page size.
func (c Composer) MaxPageSize() int {
	return c.maxPageSize
}

// Compose validates req against tmpl and assembles the data and count
// statements. Scope predicates come first and are always present.
func (c Composer) Compose(req report.ReportRequest, scopePreds []scope.MandatoryPredicate, tmpl *report.Template) (*ComposedQuery, error) {
	if tmpl == nil || tmpl.ID() != req.TemplateID {
		return nil, &report.UnknownTemplateError{TemplateID: req.TemplateID}
	}

	page, err := pagination.Validate(req.PageNumber, req.PageSize, c.maxPageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", report.ErrInvalidPage, err)
	}

	if err := validateFields(req, tmpl); err != nil {
		return nil, err
	}

	projection, columns, err := project(req, tmpl)
	if err != nil {
		return nil, err
	}

	ordering, err := order(req, tmpl)
	if err != nil {
		return nil, err
	}

	preds, err := predicates(req, scopePreds, tmpl)
	if err != nil {
		return nil, err
	}

	b := newSelect(tmpl.Source()).
		Columns(projection...).
		Where(preds...).
		OrderBy(ordering...).
		Page(page.Offset(), page.Limit())
	for _, g := range req.GroupBy {
		col, _ := tmpl.Column(g)
		b = b.GroupBy(col.Expr)
	}

	stmts, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("render report %q: %w", tmpl.ID(), err)
	}

	return &ComposedQuery{
		TemplateID:     tmpl.ID(),
		DataStatement:  stmts.data,
		CountStatement: stmts.count,
		Params:         stmts.params,
		Predicates:     preds,
		Columns:        columns,
		Page:           page,
	}, nil
}

// validateFields checks every referenced field against the template
// allow-lists. The first violation is returned.
func validateFields(req report.ReportRequest, tmpl *report.Template) error {
	invalid := func(field string, kind report.FieldKind) error {
		return &report.InvalidFieldError{TemplateID: tmpl.ID(), Field: field, Kind: kind}
	}

	for _, f := range req.Filters {
		if !tmpl.AllowsFilter(f.Field) {
			return invalid(f.Field, report.FieldKindFilter)
		}
	}
	for _, g := range req.GroupBy {
		if !tmpl.AllowsGroup(g) {
			return invalid(g, report.FieldKindGroup)
		}
	}
	for _, o := range req.OrderBy {
		if !tmpl.HasColumn(o.Field) {
			return invalid(o.Field, report.FieldKindOrder)
		}
	}
	for _, col := range req.Columns {
		if !tmpl.HasColumn(col) {
			return invalid(col, report.FieldKindColumn)
		}
	}
	return nil
}

// project returns the SELECT list and the output column names. Grouped
// requests may only project group fields and aggregated columns.
func project(req report.ReportRequest, tmpl *report.Template) ([]string, []string, error) {
	names := slices.Clone(req.Columns)
	if len(names) == 0 {
		names = defaultColumns(req, tmpl)
	}

	exprs := make([]string, 0, len(names))
	for _, name := range names {
		col, _ := tmpl.Column(name)
		expr := col.Expr
		if req.IsGrouped() && !slices.Contains(req.GroupBy, name) {
			if col.Aggregate == "" {
				return nil, nil, &report.InvalidFieldError{
					TemplateID: tmpl.ID(),
					Field:      name,
					Kind:       report.FieldKindColumn,
					Reason:     "column is neither grouped nor aggregated",
				}
			}
			expr = col.Aggregate
		}
		exprs = append(exprs, expr+" AS "+pq.QuoteIdentifier(name))
	}
	return exprs, names, nil
}

func defaultColumns(req report.ReportRequest, tmpl *report.Template) []string {
	if !req.IsGrouped() {
		cols := tmpl.Columns()
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
		return names
	}

	names := slices.Clone(req.GroupBy)
	for _, c := range tmpl.Columns() {
		if c.Aggregate != "" && !slices.Contains(names, c.Name) {
			names = append(names, c.Name)
		}
	}
	return names
}

// order returns the ORDER BY terms. Requested keys come first; the
// template default (or the group fields) follow as tie-breakers so paging
// is deterministic.
func order(req report.ReportRequest, tmpl *report.Template) ([]string, error) {
	keys := slices.Clone(req.OrderBy)
	if req.IsGrouped() {
		for _, g := range req.GroupBy {
			keys = appendKey(keys, report.OrderBy{Field: g, Ascending: true})
		}
	} else {
		for _, o := range tmpl.DefaultOrder() {
			keys = appendKey(keys, o)
		}
	}

	terms := make([]string, 0, len(keys))
	for _, k := range keys {
		col, _ := tmpl.Column(k.Field)
		expr := col.Expr
		if req.IsGrouped() && !slices.Contains(req.GroupBy, k.Field) {
			if col.Aggregate == "" {
				return nil, &report.InvalidFieldError{
					TemplateID: tmpl.ID(),
					Field:      k.Field,
					Kind:       report.FieldKindOrder,
					Reason:     "column is neither grouped nor aggregated",
				}
			}
			expr = col.Aggregate
		}
		dir := " DESC"
		if k.Ascending {
			dir = " ASC"
		}
		terms = append(terms, expr+dir)
	}
	return terms, nil
}

func appendKey(keys []report.OrderBy, k report.OrderBy) []report.OrderBy {
	for _, existing := range keys {
		if existing.Field == k.Field {
			return keys
		}
	}
	return append(keys, k)
}

// predicates builds the WHERE list: every scope predicate, then every user
// filter in request order with strictly increasing occurrence indexes.
func predicates(req report.ReportRequest, scopePreds []scope.MandatoryPredicate, tmpl *report.Template) ([]Predicate, error) {
	preds := make([]Predicate, 0, len(scopePreds)+len(req.Filters))

	for i, sp := range scopePreds {
		column, ok := tmpl.ScopeColumn(sp.Target)
		if !ok {
			return nil, fmt.Errorf("%w: template %q has no %s column", scope.ErrScopeNotSupported, tmpl.ID(), sp.Target)
		}
		preds = append(preds, MandatoryPredicate{
			Target:     sp.Target,
			Column:     column,
			Comparison: sp.Comparison,
			Value:      Param{Name: fmt.Sprintf("s%d", i+1), Value: sp.Value},
		})
	}

	for i, f := range req.Filters {
		col, _ := tmpl.Column(f.Field)
		p, err := encode(f.Field, col.Expr, f.Operator, f.Value, i+1)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}
