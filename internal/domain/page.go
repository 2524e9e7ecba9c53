package domain

import (
	"math"
	"strings"
)

// ListParams are the raw list inputs; Filter "" or "all" means no filter
type ListParams struct {
	Page     int
	PageSize int
	Filter   string
}

// Normalize validates the params and caps PageSize at maxPageSize
func (p ListParams) Normalize(maxPageSize int) (ListParams, error) {
	if p.Page < 1 {
		return p, &ValidationError{Field: "page", Message: "must be at least 1"}
	}
	if p.PageSize < 1 {
		return p, &ValidationError{Field: "page_size", Message: "must be at least 1"}
	}
	if maxPageSize > 0 && p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	p.Filter = strings.TrimSpace(p.Filter)
	if strings.EqualFold(p.Filter, "all") {
		p.Filter = ""
	}
	return p, nil
}

// Offset is the number of rows skipped before this page. It saturates at
// math.MaxInt so an absurd page number still reads as past the end.
func (p ListParams) Offset() int {
	if p.Page <= 1 || p.PageSize < 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PageSize
}

// Page is one page of a list result.
// TotalCount counts the whole collection regardless of filter;
// MatchingCount counts the rows that satisfy the filter.
type Page[T any] struct {
	Items         []T `json:"items"`
	Page          int `json:"page"`
	PageSize      int `json:"page_size"`
	TotalCount    int `json:"total_count"`
	TotalPages    int `json:"total_pages"`
	MatchingCount int `json:"matching_count"`
	MatchingPages int `json:"matching_pages"`
}

// NewPage assembles a page from its items and the two counts
func NewPage[T any](items []T, params ListParams, total, matching int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:         items,
		Page:          params.Page,
		PageSize:      params.PageSize,
		TotalCount:    total,
		TotalPages:    PageCount(total, params.PageSize),
		MatchingCount: matching,
		MatchingPages: PageCount(matching, params.PageSize),
	}
}

// PageCount is ceil(count / size)
func PageCount(count, size int) int {
	if size < 1 || count < 1 {
		return 0
	}
	return (count + size - 1) / size
}
