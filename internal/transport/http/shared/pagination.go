package shared

import (
	"net/http"
	"strconv"
	"strings"
)

type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit/offset query parameters. Malformed values are
// reported on v; limit is clamped to maxLimit.
func ParsePagination(r *http.Request, v *Validator, defaultLimit, maxLimit int) Pagination {
	page := Pagination{Limit: defaultLimit}
	q := r.URL.Query()
	if n := v.PositiveInt("limit", q.Get("limit")); n > 0 {
		page.Limit = n
	}
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			v.Add("offset", "must be zero or a positive integer")
		} else {
			page.Offset = n
		}
	}
	if maxLimit > 0 && page.Limit > maxLimit {
		page.Limit = maxLimit
	}
	return page
}

// ParsePage reads 1-based page/pageSize query parameters. Invalid values are
// reported on v and come back as zero so the caller's defaults apply.
func ParsePage(r *http.Request, v *Validator) (page, pageSize int) {
	return v.PositiveInt("page", r.URL.Query().Get("page")), v.PositiveInt("pageSize", r.URL.Query().Get("pageSize"))
}
