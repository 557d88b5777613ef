package handler

import (
	"net/http"
	"strconv"
)

// Page window for list endpoints. Out-of-range values fall back to the
// default rather than erroring; the service layer enforces the same
// bounds for callers that bypass the HTTP surface.
const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit/offset from the query string and clamps
// both into the page window.
func ParsePagination(r *http.Request) PaginationParams {
	q := r.URL.Query()
	p := PaginationParams{
		Limit:  queryInt(q.Get("limit"), defaultPageSize),
		Offset: queryInt(q.Get("offset"), 0),
	}
	if p.Limit <= 0 || p.Limit > maxPageSize {
		p.Limit = defaultPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
