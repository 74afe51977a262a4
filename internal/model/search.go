package model

import "time"

// SearchFilter constrains a quote search. Nil or empty fields do not constrain.
type SearchFilter struct {
	Text        string     `json:"q,omitempty"`
	MinTotal    *int64     `json:"minTotal,omitempty"`
	MaxTotal    *int64     `json:"maxTotal,omitempty"`
	CreatedFrom *time.Time `json:"from,omitempty"`
	CreatedTo   *time.Time `json:"to,omitempty"`
	HasOptions  bool       `json:"hasOptions,omitempty"`
}

// PageResult is one page of results together with totals computed from the
// same read.
type PageResult[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Last          bool  `json:"last"`
}

// NewPageResult derives page counts from the total element count.
func NewPageResult[T any](content []T, page, size int, total int64) PageResult[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return PageResult[T]{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    totalPages,
		Last:          page >= totalPages-1,
	}
}

// PageOffset returns the index of the first row on page. It reports false
// when the page starts at or past the end of total rows, so callers never
// multiply an out-of-range page into an overflowing offset.
func PageOffset(page, size int, total int64) (int64, bool) {
	if page < 0 || size <= 0 || total <= 0 {
		return 0, false
	}
	pages := (total + int64(size) - 1) / int64(size)
	if int64(page) >= pages {
		return 0, false
	}
	return int64(page) * int64(size), true
}
