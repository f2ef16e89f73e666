package pagination

import (
	"net/url"
	"strconv"
)

// PageRequest selects one 1-indexed page of an ordered result.
type PageRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Normalize moves Page to at least 1 and PageSize into [1, cfg.MaxPageSize],
// using cfg.DefaultPageSize when no size was asked for.
func (r *PageRequest) Normalize(cfg Config) {
	r.Page = max(r.Page, 1)
	if r.PageSize < 1 {
		r.PageSize = cfg.DefaultPageSize
	}
	r.PageSize = min(r.PageSize, cfg.MaxPageSize)
}

// Offset is the index of the first item on the page.
func (r *PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PageRequestFromQuery reads page and page_size from a query string. Missing
// or non-numeric values are treated as absent rather than rejected.
func PageRequestFromQuery(values url.Values, cfg Config) PageRequest {
	var req PageRequest
	for key, dst := range map[string]*int{"page": &req.Page, "page_size": &req.PageSize} {
		if n, err := strconv.Atoi(values.Get(key)); err == nil {
			*dst = n
		}
	}
	req.Normalize(cfg)
	return req
}

// PageResult is one page plus what a client needs to request the next.
type PageResult[T any] struct {
	Data       []T  `json:"data"`
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewPageResult wraps data as page of a total-item result. An empty result
// still reports one page, and Data is never null on the wire.
func NewPageResult[T any](data []T, total, page, pageSize int) PageResult[T] {
	pages := max((total+pageSize-1)/pageSize, 1)
	if data == nil {
		data = []T{}
	}
	return PageResult[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}

// Slice cuts the page req selects out of items, which must already be in
// result order. A page past the end is empty.
func Slice[T any](items []T, req PageRequest) PageResult[T] {
	n := len(items)
	lo := min(req.Offset(), n)
	hi := min(lo+req.PageSize, n)
	return NewPageResult(items[lo:hi], n, req.Page, req.PageSize)
}
