package pagination

import (
	"net/url"
	"strconv"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Page holds the offset-based listing parameters shared by the document
// and chunk listing endpoints.
type Page struct {
	Page    int
	PerPage int
}

// ParsePage reads page/per_page from query values, falling back to
// defaults and clamping out-of-range values rather than erroring.
func ParsePage(values url.Values) Page {
	p := Page{Page: DefaultPage, PerPage: DefaultPerPage}

	if raw := values.Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			p.Page = n
		}
	}
	if raw := values.Get("per_page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			p.PerPage = n
		}
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Offset returns the row offset for SQL queries.
func (p Page) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// PageResult is the envelope returned by listing endpoints.
type PageResult[T any] struct {
	Items   []T   `json:"items"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
}

// NewPageResult wraps items with their paging metadata, normalizing a
// nil slice to an empty one so the JSON field is always an array.
func NewPageResult[T any](items []T, p Page, total int64) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{
		Items:   items,
		Page:    p.Page,
		PerPage: p.PerPage,
		Total:   total,
	}
}
