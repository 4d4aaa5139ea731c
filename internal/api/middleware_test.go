package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"evalgo.org/mdm/internal/apperror"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
	}{
		{
			name:        "POST with application/json - valid",
			method:      http.MethodPost,
			contentType: "application/json",
			body:        `{"code":"color"}`,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "POST with text/plain - invalid",
			method:      http.MethodPost,
			contentType: "text/plain",
			body:        "code=color",
			wantStatus:  http.StatusUnsupportedMediaType,
		},
		{
			name:        "GET request - skip validation",
			method:      http.MethodGet,
			contentType: "text/html",
			wantStatus:  http.StatusOK,
		},
		{
			name:       "POST with empty body - valid",
			method:     http.MethodPost,
			wantStatus: http.StatusOK,
		},
		{
			name:        "PATCH with charset - valid",
			method:      http.MethodPatch,
			contentType: "application/json; charset=utf-8",
			body:        `{"status":"inactive"}`,
			wantStatus:  http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set(echo.HeaderContentType, tt.contentType)
			}
			rec := httptest.NewRecorder()

			err := ValidateContentType(okHandler)(e.NewContext(req, rec))
			if tt.wantStatus == http.StatusOK {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantStatus, apperror.Status(err))
		})
	}
}

func TestValidateAcceptHeader(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		accept   string
		rejected bool
	}{
		{name: "no header", path: "/api/items"},
		{name: "json", path: "/api/items", accept: "application/json"},
		{name: "wildcard", path: "/api/items", accept: "text/html, */*;q=0.8"},
		{name: "html only", path: "/api/items", accept: "text/html", rejected: true},
		{name: "metrics exempt", path: "/metrics", accept: "text/plain"},
		{name: "docs exempt", path: "/docs/index.html", accept: "text/html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set(echo.HeaderAccept, tt.accept)
			}
			err := ValidateAcceptHeader(okHandler)(e.NewContext(req, httptest.NewRecorder()))
			if tt.rejected {
				assert.Equal(t, http.StatusNotAcceptable, apperror.Status(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateIDFormat(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		field string
	}{
		{name: "valid", id: "category:1c7e"},
		{name: "no id", id: ""},
		{name: "space", id: "category 1", field: "id"},
		{name: "too short", id: "ab", field: "id"},
		{name: "too long", id: strings.Repeat("x", 257), field: "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
			if tt.id != "" {
				c.SetParamNames("id")
				c.SetParamValues(tt.id)
			}
			err := ValidateIDFormat(okHandler)(c)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			appErr := apperror.From(err)
			assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	assert.NoError(t, SecurityHeaders(okHandler)(c))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
