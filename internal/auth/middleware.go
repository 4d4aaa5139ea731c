package auth

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/config"
	"evalgo.org/mdm/internal/logging"
	"evalgo.org/mdm/models"
)

const (
	// ContextKeyClaims is the key for storing JWT claims in context
	ContextKeyClaims = "claims"

	// SystemUserID identifies requests served while authentication is disabled
	SystemUserID = "system"

	// TokenCookie is the cookie that may carry the access token
	TokenCookie = "token"
)

// Middleware is the authentication middleware
type Middleware struct {
	jwtService *JWTService
	versions   *PermissionVersionService
	config     config.SecurityConfig
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(cfg config.SecurityConfig, jwtService *JWTService, versions *PermissionVersionService) *Middleware {
	return &Middleware{
		jwtService: jwtService,
		versions:   versions,
		config:     cfg,
	}
}

// Protect requires a valid access token issued at the user's current
// permission version. With authentication disabled every request runs as
// the system user with full permissions.
func (m *Middleware) Protect(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !m.config.AuthEnabled {
			c.Set(ContextKeyClaims, &Claims{ID: SystemUserID, Role: models.RoleAdmin, Permissions: []string{models.PermissionAll}})
			return next(c)
		}

		tokenString := bearerToken(c)
		if tokenString == "" {
			return apperror.Authentication("Bu kaynağa erişmek için oturum açmanız gerekiyor")
		}

		claims, err := m.jwtService.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				return apperror.Authentication("Oturum süresi doldu")
			}
			return apperror.Authentication("Geçersiz erişim anahtarı")
		}
		if err := m.versions.Verify(c.Request().Context(), claims); err != nil {
			return err
		}

		c.Set(ContextKeyClaims, claims)
		req := c.Request()
		c.SetRequest(req.WithContext(logging.ContextWithIdentity(req.Context(), claims.ID)))
		return next(c)
	}
}

// RequirePermission rejects callers whose token lacks perm. It must run
// after Protect.
func (m *Middleware) RequirePermission(perm string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := GetClaims(c)
			if !ok {
				return apperror.Authentication("Bu kaynağa erişmek için oturum açmanız gerekiyor")
			}
			if !claims.HasPermission(perm) {
				return apperror.Authorization("Bu işlem için yetkiniz yok: " + perm)
			}
			return next(c)
		}
	}
}

// RequireAdmin is middleware that requires admin role
func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := GetClaims(c)
		if !ok || claims.Role != models.RoleAdmin {
			return apperror.Authorization("Bu işlem yönetici yetkisi gerektirir")
		}
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// GetClaims extracts JWT claims from Echo context
func GetClaims(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(ContextKeyClaims).(*Claims)
	return claims, ok
}

// UserID returns the caller's id, or the system user when the request
// carries no claims.
func UserID(c echo.Context) string {
	if claims, ok := GetClaims(c); ok && claims.ID != "" {
		return claims.ID
	}
	return SystemUserID
}
