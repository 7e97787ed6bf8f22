// Package pagination provides page arithmetic shared by report queries and
// history listings.
package pagination

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidPage is returned by Validate for out-of-range page specs.
var ErrInvalidPage = errors.New("invalid page")

// Pagination holds pagination parameters.
type Pagination struct {
	Page    int
	PerPage int
}

// New creates a new Pagination with defaults applied. Out-of-range values
// are clamped; use Validate where they must be rejected instead.
func New(page, perPage int) Pagination {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return Pagination{
		Page:    page,
		PerPage: perPage,
	}
}

// Validate checks a page spec without adjusting it. page must be at least 1,
// perPage must lie in [1, maxPerPage] and the resulting offset must fit in an
// int.
func Validate(page, perPage, maxPerPage int) (Pagination, error) {
	if page < 1 {
		return Pagination{}, fmt.Errorf("%w: page number must be at least 1, got %d", ErrInvalidPage, page)
	}
	if perPage < 1 || perPage > maxPerPage {
		return Pagination{}, fmt.Errorf("%w: page size must be between 1 and %d, got %d", ErrInvalidPage, maxPerPage, perPage)
	}
	if page-1 > math.MaxInt/perPage {
		return Pagination{}, fmt.Errorf("%w: page number %d is out of range", ErrInvalidPage, page)
	}
	return Pagination{Page: page, PerPage: perPage}, nil
}

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	return p.PerPage
}

// TotalPages returns the number of pages needed for total rows.
func (p Pagination) TotalPages(total int64) int {
	if p.PerPage < 1 || total <= 0 {
		return 0
	}
	pages := total / int64(p.PerPage)
	if total%int64(p.PerPage) > 0 {
		pages++
	}
	return int(pages)
}

// RowsOnPage returns how many of total rows fall on this page.
func (p Pagination) RowsOnPage(total int64) int {
	remaining := total - int64(p.Offset())
	if remaining <= 0 {
		return 0
	}
	if remaining > int64(p.PerPage) {
		return p.PerPage
	}
	return int(remaining)
}

// Result represents a paginated result set.
type Result[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// NewResult creates a new paginated Result.
func NewResult[T any](data []T, total int64, p Pagination) Result[T] {
	if data == nil {
		data = make([]T, 0)
	}
	return Result[T]{
		Data:       data,
		Total:      total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: p.TotalPages(total),
	}
}
