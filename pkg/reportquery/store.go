package reportquery

import (
	"context"

	"github.com/playreport/api/pkg/domain/report"
)

// Result is one page of rows plus the unpaged total for a ComposedQuery.
type Result struct {
	Schema     []report.ResultColumn
	Rows       [][]any
	TotalCount int64
}

// Store executes composed queries. Implementations run DataStatement and
// CountStatement with the same Args and never build SQL of their own.
// Transient failures wrap shared.ErrUnavailable.
type Store interface {
	Run(ctx context.Context, q *ComposedQuery) (*Result, error)
}
