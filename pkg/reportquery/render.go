package reportquery

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/playreport/api/pkg/domain/scope"
)

// selectBuilder is an immutable description of a report statement. Every
// method returns a modified copy; the receiver is never changed.
type selectBuilder struct {
	projection []string
	from       string
	where      []Predicate
	groupBy    []string
	orderBy    []string
	offset     int
	limit      int
}

func newSelect(from string) selectBuilder {
	return selectBuilder{from: from}
}

func (b selectBuilder) Columns(exprs ...string) selectBuilder {
	b.projection = append(slices.Clone(b.projection), exprs...)
	return b
}

func (b selectBuilder) Where(preds ...Predicate) selectBuilder {
	b.where = append(slices.Clone(b.where), preds...)
	return b
}

func (b selectBuilder) GroupBy(exprs ...string) selectBuilder {
	b.groupBy = append(slices.Clone(b.groupBy), exprs...)
	return b
}

func (b selectBuilder) OrderBy(exprs ...string) selectBuilder {
	b.orderBy = append(slices.Clone(b.orderBy), exprs...)
	return b
}

func (b selectBuilder) Page(offset, limit int) selectBuilder {
	b.offset, b.limit = offset, limit
	return b
}

// statements is the rendered pair of data and count SQL. Both share one
// WHERE clause and therefore one parameter list.
type statements struct {
	data   string
	count  string
	params []Param
}

// Build renders the data and count statements. The WHERE clause is
// rendered exactly once and embedded in both.
func (b selectBuilder) Build() (statements, error) {
	if len(b.projection) == 0 {
		return statements{}, fmt.Errorf("statement has no columns")
	}
	if len(b.orderBy) == 0 {
		return statements{}, fmt.Errorf("statement has no ordering")
	}

	where, params, err := renderWhere(b.where)
	if err != nil {
		return statements{}, err
	}

	var body strings.Builder
	body.WriteString(" FROM ")
	body.WriteString(b.from)
	body.WriteString(where)
	if len(b.groupBy) > 0 {
		body.WriteString(" GROUP BY ")
		body.WriteString(strings.Join(b.groupBy, ", "))
	}

	var data strings.Builder
	data.WriteString("SELECT ")
	data.WriteString(strings.Join(b.projection, ", "))
	data.WriteString(body.String())
	data.WriteString(" ORDER BY ")
	data.WriteString(strings.Join(b.orderBy, ", "))
	data.WriteString(" OFFSET ")
	data.WriteString(strconv.Itoa(b.offset))
	data.WriteString(" ROWS FETCH NEXT ")
	data.WriteString(strconv.Itoa(b.limit))
	data.WriteString(" ROWS ONLY")

	var count string
	if len(b.groupBy) > 0 {
		count = "SELECT COUNT(*) FROM (SELECT 1" + body.String() + ") AS grouped"
	} else {
		count = "SELECT COUNT(*)" + body.String()
	}

	return statements{data: data.String(), count: count, params: params}, nil
}

// renderWhere renders the conjunction of preds with positional
// placeholders. It returns an empty clause when there are no predicates.
func renderWhere(preds []Predicate) (string, []Param, error) {
	if len(preds) == 0 {
		return "", []Param{}, nil
	}

	params := make([]Param, 0, len(preds))
	bind := func(p Param) string {
		params = append(params, p)
		return "$" + strconv.Itoa(len(params))
	}

	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		frag, err := renderPredicate(p, bind)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, frag)
	}
	return " WHERE " + strings.Join(parts, " AND "), params, nil
}

func renderPredicate(p Predicate, bind func(Param) string) (string, error) {
	switch p := p.(type) {
	case EqualsPredicate:
		return p.Column + " = " + bind(p.Value), nil
	case PatternPredicate:
		return p.Column + " LIKE " + bind(p.Value), nil
	case SetMembershipPredicate:
		return p.Column + " = ANY(" + bind(p.Values) + ")", nil
	case RangePredicate:
		low := bind(p.Low)
		return p.Column + " BETWEEN " + low + " AND " + bind(p.High), nil
	case MandatoryPredicate:
		switch p.Comparison {
		case scope.ComparisonIn:
			return p.Column + " = ANY(" + bind(p.Value) + ")", nil
		case scope.ComparisonEquals:
			return p.Column + " = " + bind(p.Value), nil
		}
		return "", fmt.Errorf("unsupported scope comparison %q", p.Comparison)
	}
	return "", fmt.Errorf("unsupported predicate %T", p)
}
