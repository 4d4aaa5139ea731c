package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mdm/internal/config"
	"evalgo.org/mdm/internal/history"
	"evalgo.org/mdm/internal/metrics"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

type testServer struct {
	*Server
	t *testing.T
}

func newTestServer(t *testing.T, authEnabled bool) *testServer {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage.Backend = config.BackendMemory
	cfg.Security.AuthEnabled = authEnabled
	cfg.Security.RateLimit = 0

	store := storage.NewWithBackend(storage.NewMemoryBackend(), 0, nil)
	svcs := BuildServices(cfg, store, metrics.New())
	return &testServer{Server: New(cfg, svcs), t: t}
}

// do sends a JSON request and decodes the JSON response into a map.
func (s *testServer) do(method, path string, body interface{}, token string) (int, map[string]interface{}) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func dataOf(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", body)
	return data
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)

	status, body := s.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, config.BackendMemory, body["backend"])
}

func TestCreateSelectAttributeKeepsNumericValidations(t *testing.T) {
	s := newTestServer(t, false)

	status, body := s.do(http.MethodPost, "/api/attributes", map[string]interface{}{
		"name":        "Color",
		"code":        "color",
		"type":        "select",
		"options":     []string{"Red", "Blue"},
		"validations": map[string]interface{}{"minSelections": 1, "maxSelections": 1},
	}, "")
	require.Equal(t, http.StatusCreated, status, body)

	data := dataOf(t, body)
	validations, ok := data["validations"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), validations["minSelections"])
	assert.Equal(t, float64(1), validations["maxSelections"])
	assert.Equal(t, "color", data["code"])
}

func TestCreatedAttributeCanBeReadBack(t *testing.T) {
	s := newTestServer(t, false)
	attr := map[string]interface{}{"name": "Color", "code": "color", "type": "select", "options": []string{"Red"}}

	status, body := s.do(http.MethodPost, "/api/attributes", attr, "")
	require.Equal(t, http.StatusCreated, status, body)
	created := dataOf(t, body)
	assert.Equal(t, "select", created["type"])
	assert.Equal(t, models.TypeAttribute, created["@type"])
	id, _ := created["_id"].(string)
	require.NotEmpty(t, id)

	status, body = s.do(http.MethodGet, "/api/attributes/"+id, nil, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "select", dataOf(t, body)["type"])

	status, body = s.do(http.MethodGet, "/api/attributes", nil, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(1), body["total"])

	status, _ = s.do(http.MethodPost, "/api/attributes", attr, "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestEmptyFamilyOverHTTPRemovesLink(t *testing.T) {
	s := newTestServer(t, false)
	ctx := context.Background()

	status, body := s.do(http.MethodPost, "/api/families", map[string]interface{}{"name": "Gömlek", "code": "shirts"}, "")
	require.Equal(t, http.StatusCreated, status, body)
	famID := dataOf(t, body)["_id"].(string)

	status, body = s.do(http.MethodPost, "/api/categories", map[string]interface{}{
		"name": "Giyim", "code": "apparel", "family": famID,
	}, "")
	require.Equal(t, http.StatusCreated, status, body)
	catID := dataOf(t, body)["_id"].(string)

	status, body = s.do(http.MethodPut, "/api/categories/"+catID, map[string]interface{}{"family": ""}, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.NotContains(t, dataOf(t, body), "family")
	assert.NotContains(t, body, "warnings")

	status, body = s.do(http.MethodGet, "/api/categories/"+catID, nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, dataOf(t, body), "family")

	fam, err := s.services.Storage.GetFamily(ctx, famID)
	require.NoError(t, err)
	assert.Empty(t, fam.Category)

	page, err := s.services.History.Query(ctx, history.Filter{
		EntityType: models.EntityFamily,
		EntityID:   famID,
		Action:     models.ActionUpdate,
	}, 0, 0)
	require.NoError(t, err)
	assert.NotZero(t, page.Total)
}

func TestListEnvelope(t *testing.T) {
	s := newTestServer(t, false)
	for _, code := range []string{"color", "size", "weight"} {
		status, body := s.do(http.MethodPost, "/api/attributes", map[string]interface{}{
			"name": code, "code": code, "type": "text",
		}, "")
		require.Equal(t, http.StatusCreated, status, body)
	}

	status, body := s.do(http.MethodGet, "/api/attributes?limit=2&page=2&sortBy=code", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(2), body["pages"])
	rows := body["data"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "weight", rows[0].(map[string]interface{})["code"])

	status, body = s.do(http.MethodGet, "/api/attributes?search=SIZ", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])
}

func TestValidationErrorsCarryFields(t *testing.T) {
	s := newTestServer(t, false)

	status, body := s.do(http.MethodPost, "/api/attributes", map[string]interface{}{"code": "color", "type": "colour"}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["fields"], "type")

	status, body = s.do(http.MethodGet, "/api/attributes?isActive=maybe", nil, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["fields"], "isActive")

	status, _ = s.do(http.MethodGet, "/api/attributes/attribute:missing", nil, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAuthAndPermissions(t *testing.T) {
	s := newTestServer(t, true)

	status, body := s.do(http.MethodGet, "/api/attributes", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])

	status, body = s.do(http.MethodPost, "/api/auth/register", map[string]interface{}{
		"name": "Admin", "email": "admin@example.com", "password": "secret1",
	}, "")
	require.Equal(t, http.StatusCreated, status, body)
	admin := dataOf(t, body)
	assert.Equal(t, models.RoleAdmin, admin["user"].(map[string]interface{})["role"])
	adminToken := admin["accessToken"].(string)

	status, body = s.do(http.MethodPost, "/api/auth/register", map[string]interface{}{
		"name": "Editor", "email": "editor@example.com", "password": "secret2",
	}, "")
	require.Equal(t, http.StatusCreated, status, body)
	userToken := dataOf(t, body)["accessToken"].(string)

	status, _ = s.do(http.MethodGet, "/api/attributes", nil, userToken)
	assert.Equal(t, http.StatusOK, status)

	attr := map[string]interface{}{"name": "Renk", "code": "color", "type": "text"}
	status, _ = s.do(http.MethodPost, "/api/attributes", attr, userToken)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(http.MethodPost, "/api/attributes", attr, adminToken)
	assert.Equal(t, http.StatusCreated, status)

	status, _ = s.do(http.MethodGet, "/api/integrity/scan", nil, userToken)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = s.do(http.MethodGet, "/api/auth/me", nil, adminToken)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin@example.com", dataOf(t, body)["email"])
}

func TestPermissionChangeRejectsOldToken(t *testing.T) {
	s := newTestServer(t, true)

	_, body := s.do(http.MethodPost, "/api/auth/register", map[string]interface{}{
		"name": "Admin", "email": "admin@example.com", "password": "secret1",
	}, "")
	adminToken := dataOf(t, body)["accessToken"].(string)

	_, body = s.do(http.MethodPost, "/api/auth/register", map[string]interface{}{
		"name": "Editor", "email": "editor@example.com", "password": "secret2",
	}, "")
	session := dataOf(t, body)
	userToken := session["accessToken"].(string)
	userID := session["user"].(map[string]interface{})["_id"].(string)

	status, body := s.do(http.MethodPut, "/api/auth/users/"+userID+"/access", map[string]interface{}{
		"permissions": []string{PermCatalogWrite},
	}, adminToken)
	require.Equal(t, http.StatusOK, status, body)

	status, _ = s.do(http.MethodGet, "/api/attributes", nil, userToken)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = s.do(http.MethodPost, "/api/auth/login", map[string]interface{}{
		"email": "editor@example.com", "password": "secret2",
	}, "")
	require.Equal(t, http.StatusOK, status, body)
	fresh := dataOf(t, body)["accessToken"].(string)

	status, _ = s.do(http.MethodPost, "/api/attributes", map[string]interface{}{"name": "Renk", "code": "color", "type": "text"}, fresh)
	assert.Equal(t, http.StatusCreated, status)
}

func TestIntegrityRepairOverHTTP(t *testing.T) {
	s := newTestServer(t, false)

	status, body := s.do(http.MethodGet, "/api/integrity/scan", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(100), dataOf(t, body)["summary"].(map[string]interface{})["healthScore"])

	status, body = s.do(http.MethodPost, "/api/integrity/repair?dryRun=true", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["result"].(map[string]interface{})["dryRun"])
}
