package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/storage"
)

func runErrorHandler(t *testing.T, method string, debug bool, err error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	e := echo.New()
	e.Debug = debug
	req := httptest.NewRequest(method, "/", nil)
	rec := httptest.NewRecorder()
	HTTPErrorHandler(err, e.NewContext(req, rec))

	var body ErrorResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "application not found",
			err:        apperror.NotFound("Kategori", "category:1"),
			wantStatus: http.StatusNotFound,
			wantCode:   apperror.ErrNotFound.Code,
		},
		{
			name:       "wrapped storage not found",
			err:        fmt.Errorf("load family: %w", storage.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   apperror.ErrNotFound.Code,
		},
		{
			name:       "storage conflict",
			err:        storage.ErrConflict,
			wantStatus: http.StatusConflict,
			wantCode:   apperror.ErrConflict.Code,
		},
		{
			name:       "validation",
			err:        apperror.Validation("code zorunlu"),
			wantStatus: http.StatusBadRequest,
			wantCode:   apperror.ErrValidation.Code,
		},
		{
			name:       "echo method not allowed",
			err:        echo.ErrMethodNotAllowed,
			wantStatus: http.StatusMethodNotAllowed,
			wantCode:   "http_error",
		},
		{
			name:       "echo too many requests",
			err:        echo.ErrTooManyRequests,
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "rate_limited",
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   apperror.ErrInternal.Code,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := runErrorHandler(t, http.MethodGet, false, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestHTTPErrorHandlerFields(t *testing.T) {
	err := apperror.MissingFields("Zorunlu alanlar eksik", []string{"name", "code"})

	rec, body := runErrorHandler(t, http.MethodPost, false, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Zorunlu alanlar eksik: code, name", body.Message)
	assert.Equal(t, map[string]string{"code": "zorunlu", "name": "zorunlu"}, body.Fields)
}

func TestHTTPErrorHandlerHidesInternalDetails(t *testing.T) {
	_, body := runErrorHandler(t, http.MethodGet, false, errors.New("couchdb: connection refused"))
	assert.Equal(t, apperror.ErrInternal.Code, body.Error)
	assert.NotContains(t, body.Message, "couchdb")

	_, body = runErrorHandler(t, http.MethodGet, true, errors.New("couchdb: connection refused"))
	assert.Contains(t, body.Error, "connection refused")
}

func TestHTTPErrorHandlerHead(t *testing.T) {
	rec, _ := runErrorHandler(t, http.MethodHead, false, apperror.NotFound("Öğe", "x"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestGetHTTPMessage(t *testing.T) {
	assert.Equal(t, "Kaynak bulunamadı", getHTTPMessage(http.StatusNotFound))
	assert.Equal(t, http.StatusText(http.StatusTeapot), getHTTPMessage(http.StatusTeapot))
}
