package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"evalgo.org/mdm/internal/auth"
	"evalgo.org/mdm/models"
)

// setTokenCookie stores the access token in an HTTP-only cookie so browser
// clients need not handle it.
func (s *Server) setTokenCookie(c echo.Context, token string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.config.Server.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) issueSession(c echo.Context, status int, session *auth.Session) error {
	days := s.config.Security.CookieExpireDays
	if days <= 0 {
		days = 1
	}
	s.setTokenCookie(c, session.AccessToken, time.Now().AddDate(0, 0, days))
	return respondData(c, status, session)
}

// login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate with email and password, returns JWT tokens
// @Tags Authentication
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Login credentials"
// @Success 200 {object} DataResponse "Successfully logged in"
// @Failure 400 {object} ErrorResponse "Invalid credentials format"
// @Failure 401 {object} ErrorResponse "Invalid email or password"
// @Router /auth/login [post]
func (s *Server) login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := s.services.Auth.Login(reqCtx(c), req.Email, req.Password)
	if err != nil {
		return err
	}
	return s.issueSession(c, http.StatusOK, session)
}

// register handles POST /api/auth/register
// @Summary Register new user
// @Description The first registered account becomes an administrator.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param user body auth.RegisterInput true "User registration data"
// @Success 201 {object} DataResponse "Successfully created user"
// @Failure 400 {object} ErrorResponse "Invalid data"
// @Failure 409 {object} ErrorResponse "Email already registered"
// @Router /auth/register [post]
func (s *Server) register(c echo.Context) error {
	var in auth.RegisterInput
	if err := bind(c, &in); err != nil {
		return err
	}
	session, err := s.services.Auth.Register(reqCtx(c), in)
	if err != nil {
		return err
	}
	return s.issueSession(c, http.StatusCreated, session)
}

// refreshToken handles POST /api/auth/refresh-token
// @Summary Refresh access token
// @Description Exchange a refresh token for a new token pair carrying the current permissions
// @Tags Authentication
// @Accept json
// @Produce json
// @Param refresh body RefreshRequest true "Refresh token"
// @Success 200 {object} DataResponse
// @Failure 401 {object} ErrorResponse "Invalid or expired refresh token"
// @Router /auth/refresh-token [post]
func (s *Server) refreshToken(c echo.Context) error {
	var req RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := s.services.Auth.Refresh(reqCtx(c), req.RefreshToken)
	if err != nil {
		return err
	}
	return s.issueSession(c, http.StatusOK, session)
}

// logout handles POST /api/auth/logout
func (s *Server) logout(c echo.Context) error {
	s.setTokenCookie(c, "", time.Unix(0, 0))
	return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Çıkış yapıldı"})
}

// me handles GET /api/auth/me
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} DataResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (s *Server) me(c echo.Context) error {
	user, err := s.services.Auth.Me(reqCtx(c), actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, user.ToResponse())
}

// refreshPermissions handles POST /api/auth/refresh-permissions
// @Summary Reissue tokens with the current permissions
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} DataResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/refresh-permissions [post]
func (s *Server) refreshPermissions(c echo.Context) error {
	session, err := s.services.Auth.RefreshPermissions(reqCtx(c), actor(c))
	if err != nil {
		return err
	}
	return s.issueSession(c, http.StatusOK, session)
}

// updateProfile handles PUT /api/auth/profile
func (s *Server) updateProfile(c echo.Context) error {
	var in auth.ProfileInput
	if err := bind(c, &in); err != nil {
		return err
	}
	user, err := s.services.Auth.UpdateProfile(reqCtx(c), actor(c), in)
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, user.ToResponse())
}

// listUsers handles GET /api/auth/users
// @Summary List users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ListResponse
// @Failure 403 {object} ErrorResponse
// @Router /auth/users [get]
func (s *Server) listUsers(c echo.Context) error {
	users, err := s.services.Auth.ListUsers(reqCtx(c))
	if err != nil {
		return err
	}
	rows := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		rows = append(rows, u.ToResponse())
	}
	return respondList(c, rows, func(u models.UserResponse) listKeys {
		return listKeys{Code: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}
	})
}

// updateUserAccess handles PUT /api/auth/users/:id/access
// @Summary Change a user's role and permissions
// @Description Bumps the user's permission version so tokens issued earlier are rejected.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param access body auth.AccessInput true "Role and permissions"
// @Success 200 {object} DataResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /auth/users/{id}/access [put]
func (s *Server) updateUserAccess(c echo.Context) error {
	var in auth.AccessInput
	if err := bind(c, &in); err != nil {
		return err
	}
	user, err := s.services.Auth.UpdateAccess(reqCtx(c), c.Param("id"), in, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, user.ToResponse())
}
