package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/config"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

func testSecurity() config.SecurityConfig {
	return config.SecurityConfig{
		AuthEnabled:            true,
		JWTSecret:              "access-secret",
		JWTRefreshSecret:       "refresh-secret",
		JWTExpiration:          time.Hour,
		RefreshTokenExpiration: 24 * time.Hour,
	}
}

type authFixture struct {
	store *storage.Storage
	svc   *Service
	mw    *Middleware
}

func newAuthFixture(cfg config.SecurityConfig) *authFixture {
	store := storage.NewWithBackend(storage.NewMemoryBackend(), 0, nil)
	jwtService := NewJWTService(cfg)
	versions := NewPermissionVersionService(store)
	return &authFixture{
		store: store,
		svc:   NewService(store, jwtService, versions),
		mw:    NewMiddleware(cfg, jwtService, versions),
	}
}

func (f *authFixture) serve(token string, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, f.mw.Protect(handler)(c)
}

func ok(c echo.Context) error {
	return c.String(http.StatusOK, UserID(c))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)
	assert.NoError(t, ComparePassword("s3cret!", hash))
	assert.ErrorIs(t, ComparePassword("wrong", hash), ErrInvalidCredentials)
}

func TestTokensAreKindSpecific(t *testing.T) {
	s := NewJWTService(testSecurity())
	u := &models.User{Document: models.Document{ID: "user:1"}, Role: models.RoleEditor, IsActive: true, PermissionVersion: 3}

	pair, err := s.GenerateTokenPair(u)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)

	claims, err := s.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user:1", claims.ID)
	assert.Equal(t, models.RoleEditor, claims.Role)
	assert.Equal(t, 3, claims.PermissionVersion)
	assert.Equal(t, []string{}, claims.Permissions)

	_, err = s.ValidateToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = s.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.ValidateRefreshToken(pair.RefreshToken)
	assert.NoError(t, err)

	u.IsActive = false
	_, err = s.GenerateToken(u)
	assert.ErrorIs(t, err, ErrUserDisabled)
}

func TestExpiredToken(t *testing.T) {
	s := NewJWTService(testSecurity())
	issued := time.Now().Add(-2 * time.Hour)
	s.now = func() time.Time { return issued }
	token, err := s.GenerateToken(&models.User{Document: models.Document{ID: "user:1"}, IsActive: true})
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestClaimsHasPermission(t *testing.T) {
	assert.True(t, (&Claims{Role: models.RoleAdmin}).HasPermission("items.delete"))
	assert.True(t, (&Claims{Permissions: []string{"items.delete"}}).HasPermission("items.delete"))
	assert.True(t, (&Claims{Permissions: []string{models.PermissionAll}}).HasPermission("x"))
	assert.False(t, (&Claims{Role: models.RoleUser, Permissions: []string{"items.read"}}).HasPermission("items.delete"))
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testSecurity())

	first, err := f.svc.Register(ctx, RegisterInput{Name: "Ayşe", Email: "Ayse@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, first.User.Role)
	assert.Equal(t, "ayse@example.com", first.User.Email)

	second, err := f.svc.Register(ctx, RegisterInput{Name: "Deniz", Email: "deniz@example.com", Password: "secret2"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, second.User.Role)

	_, err = f.svc.Register(ctx, RegisterInput{Name: "Kopya", Email: "AYSE@example.com", Password: "secret3"})
	assert.Equal(t, 400, apperror.Status(err))

	session, err := f.svc.Login(ctx, "ayse@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)

	_, err = f.svc.Login(ctx, "ayse@example.com", "nope")
	assert.Equal(t, 401, apperror.Status(err))
	_, err = f.svc.Login(ctx, "nobody@example.com", "secret1")
	assert.Equal(t, 401, apperror.Status(err))

	me, err := f.svc.Me(ctx, session.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, me.LastLogin)
}

func TestProtectRejectsMissingAndBadTokens(t *testing.T) {
	f := newAuthFixture(testSecurity())

	_, err := f.serve("", ok)
	assert.Equal(t, 401, apperror.Status(err))

	_, err = f.serve("garbage", ok)
	assert.Equal(t, 401, apperror.Status(err))
}

func TestStalePermissionVersionIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testSecurity())
	session, err := f.svc.Register(ctx, RegisterInput{Name: "Ayşe", Email: "ayse@example.com", Password: "secret1"})
	require.NoError(t, err)

	rec, err := f.serve(session.AccessToken, ok)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, rec.Body.String())

	version, err := f.svc.Versions().InvalidateUserPermissions(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	_, err = f.serve(session.AccessToken, ok)
	require.Error(t, err)
	assert.Equal(t, 401, apperror.Status(err))
	assert.Contains(t, apperror.From(err).Fields, "permissionVersion")

	refreshed, err := f.svc.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	_, err = f.serve(refreshed.AccessToken, ok)
	assert.NoError(t, err)

	_, err = f.svc.Versions().InvalidateUserPermissions(ctx, "user:missing")
	assert.Equal(t, 404, apperror.Status(err))
}

func TestUpdateAccessInvalidatesTokens(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testSecurity())
	_, err := f.svc.Register(ctx, RegisterInput{Name: "Admin", Email: "admin@example.com", Password: "secret1"})
	require.NoError(t, err)
	user, err := f.svc.Register(ctx, RegisterInput{Name: "Deniz", Email: "deniz@example.com", Password: "secret2"})
	require.NoError(t, err)

	perms := []string{"items.delete"}
	updated, err := f.svc.UpdateAccess(ctx, user.User.ID, AccessInput{Permissions: &perms}, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, updated.PermissionVersion)

	_, err = f.serve(user.AccessToken, ok)
	assert.Equal(t, 401, apperror.Status(err))

	fresh, err := f.svc.RefreshPermissions(ctx, user.User.ID)
	require.NoError(t, err)
	claims, err := f.svc.JWT().ValidateToken(fresh.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, perms, claims.Permissions)
}

func TestRequirePermission(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testSecurity())
	_, err := f.svc.Register(ctx, RegisterInput{Name: "Admin", Email: "admin@example.com", Password: "secret1"})
	require.NoError(t, err)
	user, err := f.svc.Register(ctx, RegisterInput{Name: "Deniz", Email: "deniz@example.com", Password: "secret2"})
	require.NoError(t, err)

	guarded := f.mw.RequirePermission("items.delete")(ok)
	_, err = f.serve(user.AccessToken, guarded)
	assert.Equal(t, 403, apperror.Status(err))

	_, err = f.serve(user.AccessToken, f.mw.RequireAdmin(ok))
	assert.Equal(t, 403, apperror.Status(err))
}

func TestProtectDisabledRunsAsSystem(t *testing.T) {
	cfg := testSecurity()
	cfg.AuthEnabled = false
	f := newAuthFixture(cfg)

	rec, err := f.serve("", f.mw.RequirePermission("anything")(ok))
	require.NoError(t, err)
	assert.Equal(t, SystemUserID, rec.Body.String())
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testSecurity())
	session, err := f.svc.Register(ctx, RegisterInput{Name: "Ayşe", Email: "ayse@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, RegisterInput{Name: "Deniz", Email: "deniz@example.com", Password: "secret2"})
	require.NoError(t, err)

	name := "Ayşe Y."
	u, err := f.svc.UpdateProfile(ctx, session.User.ID, ProfileInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, u.Name)

	taken := "deniz@example.com"
	_, err = f.svc.UpdateProfile(ctx, session.User.ID, ProfileInput{Email: &taken})
	assert.Equal(t, 400, apperror.Status(err))

	newPassword := "changed1"
	_, err = f.svc.UpdateProfile(ctx, session.User.ID, ProfileInput{CurrentPassword: "wrong", NewPassword: &newPassword})
	assert.Equal(t, 400, apperror.Status(err))

	_, err = f.svc.UpdateProfile(ctx, session.User.ID, ProfileInput{CurrentPassword: "secret1", NewPassword: &newPassword})
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "ayse@example.com", newPassword)
	assert.NoError(t, err)
}
