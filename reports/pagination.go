package reports

import (
	"strconv"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// Pagination describes one page of a report response. TotalItems is the
// full matching count (distinct dates for detail views, rows for list
// views), never the page length.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func buildPagination(page, pageSize int, totalItems int64) Pagination {
	totalPages := int((totalItems + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

// parseDimensionId reads an optional dimension-id filter. present reports
// whether a value was supplied at all; ok reports whether it parsed. A
// present-but-malformed id short-circuits the report to an empty page.
func parseDimensionId(raw string) (id int, present bool, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, true, false
	}
	return n, true, true
}
