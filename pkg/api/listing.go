package api

import (
	"net/http"
	"strings"

	"github.com/parleyhq/parley/pkg/httputil"
)

const (
	defaultPerPage = 25
	maxPerPage     = 100
)

// listParams carries the common list query parameters: ?search=, ?page=
// (1-based) and ?per_page=. Unparseable values fall back to defaults.
type listParams struct {
	search  string
	page    int
	perPage int
}

func parseListParams(r *http.Request) listParams {
	page, err := httputil.ParseQueryInt(r, "page", 1)
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := httputil.ParseQueryInt(r, "per_page", defaultPerPage)
	if err != nil || perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return listParams{
		search:  strings.TrimSpace(httputil.ParseQueryString(r, "search", "")),
		page:    page,
		perPage: perPage,
	}
}

// matches reports whether any field contains the search term,
// case-insensitively. An empty term matches everything.
func (p listParams) matches(fields ...string) bool {
	if p.search == "" {
		return true
	}
	needle := strings.ToLower(p.search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// pageOf slices items down to the requested page. Pages past the end are
// empty, not an error.
func pageOf[T any](items []T, p listParams) []T {
	start := (p.page - 1) * p.perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + p.perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
