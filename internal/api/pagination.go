package api

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// ListResponse is the envelope of every list endpoint.
type ListResponse struct {
	Success bool        `json:"success"`
	Count   int         `json:"count"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	Pages   int         `json:"pages"`
	Data    interface{} `json:"data"`
}

// listParams are the paging, search and sort options shared by list
// endpoints.
type listParams struct {
	Page   int
	Limit  int
	Search string
	SortBy string
	Desc   bool
}

// parseListParams reads page, limit, search, sort/sortBy and
// direction/sortOrder. Page defaults to 1 and limit to 100, capped at 1000.
// Results are sorted by createdAt, newest first, unless told otherwise.
func parseListParams(c echo.Context) listParams {
	p := listParams{Page: 1, Limit: defaultLimit, SortBy: "createdAt", Desc: true}

	if v, err := strconv.Atoi(c.QueryParam("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		p.Limit = v
		if p.Limit > maxLimit {
			p.Limit = maxLimit
		}
	}
	p.Search = strings.ToLower(strings.TrimSpace(c.QueryParam("search")))

	sortBy := firstParam(c, "sortBy", "sort")
	if strings.HasPrefix(sortBy, "-") {
		sortBy = strings.TrimPrefix(sortBy, "-")
		p.Desc = true
	} else if sortBy != "" {
		p.Desc = false
	}
	if sortBy != "" {
		p.SortBy = sortBy
	}
	switch strings.ToLower(firstParam(c, "direction", "sortOrder")) {
	case "asc", "1", "ascending":
		p.Desc = false
	case "desc", "-1", "descending":
		p.Desc = true
	}
	return p
}

func firstParam(c echo.Context, names ...string) string {
	for _, n := range names {
		if v := c.QueryParam(n); v != "" {
			return v
		}
	}
	return ""
}

// listKeys are the searchable and sortable fields of a list row.
type listKeys struct {
	Code      string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// paginate filters rows by search, sorts them and returns one page.
func paginate[T any](p listParams, rows []T, keys func(T) listKeys) ([]T, int) {
	filtered := make([]T, 0, len(rows))
	cached := make(map[int]listKeys, len(rows))
	for _, r := range rows {
		k := keys(r)
		if p.Search != "" &&
			!strings.Contains(strings.ToLower(k.Code), p.Search) &&
			!strings.Contains(strings.ToLower(k.Name), p.Search) {
			continue
		}
		cached[len(filtered)] = k
		filtered = append(filtered, r)
	}

	idx := make([]int, len(filtered))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := cached[idx[a]], cached[idx[b]]
		var less, equal bool
		switch p.SortBy {
		case "code":
			less, equal = ka.Code < kb.Code, ka.Code == kb.Code
		case "name":
			less, equal = ka.Name < kb.Name, ka.Name == kb.Name
		case "updatedAt":
			less, equal = ka.UpdatedAt.Before(kb.UpdatedAt), ka.UpdatedAt.Equal(kb.UpdatedAt)
		default:
			less, equal = ka.CreatedAt.Before(kb.CreatedAt), ka.CreatedAt.Equal(kb.CreatedAt)
		}
		if equal {
			return false
		}
		if p.Desc {
			return !less
		}
		return less
	})

	total := len(filtered)
	offset := (p.Page - 1) * p.Limit
	if offset >= total {
		return []T{}, total
	}
	end := offset + p.Limit
	if end > total {
		end = total
	}
	page := make([]T, 0, end-offset)
	for _, i := range idx[offset:end] {
		page = append(page, filtered[i])
	}
	return page, total
}

// respondList writes a paginated list envelope.
func respondList[T any](c echo.Context, rows []T, keys func(T) listKeys) error {
	p := parseListParams(c)
	page, total := paginate(p, rows, keys)
	return c.JSON(http.StatusOK, envelope(p, page, len(page), total))
}

func envelope(p listParams, data interface{}, count, total int) ListResponse {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return ListResponse{Success: true, Count: count, Total: total, Page: p.Page, Pages: pages, Data: data}
}
