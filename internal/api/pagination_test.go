package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func contextWithQuery(params map[string]string) echo.Context {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodGet, "/?"+q.Encode(), nil)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestParseListParams(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		want   listParams
	}{
		{
			name:   "no parameters - use defaults",
			params: map[string]string{},
			want:   listParams{Page: 1, Limit: 100, SortBy: "createdAt", Desc: true},
		},
		{
			name:   "limit exceeds max - cap at 1000",
			params: map[string]string{"limit": "5000", "page": "3"},
			want:   listParams{Page: 3, Limit: 1000, SortBy: "createdAt", Desc: true},
		},
		{
			name:   "invalid values fall back",
			params: map[string]string{"limit": "-4", "page": "zero"},
			want:   listParams{Page: 1, Limit: 100, SortBy: "createdAt", Desc: true},
		},
		{
			name:   "plain sort field is ascending",
			params: map[string]string{"sortBy": "code"},
			want:   listParams{Page: 1, Limit: 100, SortBy: "code"},
		},
		{
			name:   "dash prefix is descending",
			params: map[string]string{"sort": "-name"},
			want:   listParams{Page: 1, Limit: 100, SortBy: "name", Desc: true},
		},
		{
			name:   "explicit direction wins",
			params: map[string]string{"sortBy": "-code", "sortOrder": "1"},
			want:   listParams{Page: 1, Limit: 100, SortBy: "code"},
		},
		{
			name:   "search is lowercased",
			params: map[string]string{"search": "  Renk "},
			want:   listParams{Page: 1, Limit: 100, Search: "renk", SortBy: "createdAt", Desc: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseListParams(contextWithQuery(tt.params)))
		})
	}
}

type row struct {
	code, name string
	created    time.Time
}

func rowKeys(r row) listKeys {
	return listKeys{Code: r.code, Name: r.name, CreatedAt: r.created}
}

func TestPaginate(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []row{
		{"color", "Renk", base},
		{"size", "Beden", base.Add(time.Hour)},
		{"weight", "Ağırlık", base.Add(2 * time.Hour)},
		{"material", "Malzeme", base.Add(3 * time.Hour)},
	}
	codes := func(rs []row) []string {
		out := make([]string, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.code)
		}
		return out
	}

	page, total := paginate(listParams{Page: 1, Limit: 2, SortBy: "createdAt", Desc: true}, rows, rowKeys)
	assert.Equal(t, 4, total)
	assert.Equal(t, []string{"material", "weight"}, codes(page))

	page, _ = paginate(listParams{Page: 2, Limit: 2, SortBy: "code"}, rows, rowKeys)
	assert.Equal(t, []string{"size", "weight"}, codes(page))

	page, total = paginate(listParams{Page: 1, Limit: 10, Search: "ren", SortBy: "code"}, rows, rowKeys)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"color"}, codes(page))

	page, total = paginate(listParams{Page: 5, Limit: 2}, rows, rowKeys)
	assert.Equal(t, 4, total)
	assert.Empty(t, page)
	assert.NotNil(t, page)
}

func TestEnvelope(t *testing.T) {
	env := envelope(listParams{Page: 2, Limit: 10}, []string{"a"}, 1, 21)
	assert.True(t, env.Success)
	assert.Equal(t, 3, env.Pages)
	assert.Equal(t, 1, env.Count)
	assert.Equal(t, 21, env.Total)
	assert.Equal(t, 2, env.Page)
}
