package common

import (
	"net/http"
	"strconv"
)

const maxPerPage = 200

// Pagination is the list-response metadata block. Session and delivery
// listings can grow unbounded, so every list endpoint pages.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
}

// ParsePagination reads `page` and `limit` query parameters, clamping the
// page size so a single request cannot drag the whole table.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		perPage = l
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return
}
