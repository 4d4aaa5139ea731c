package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"evalgo.org/mdm/internal/apperror"
)

// ValidateContentType middleware ensures that requests with a body have the correct Content-Type
func ValidateContentType(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		method := c.Request().Method

		// Only check POST, PUT, PATCH requests
		if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
			// Allow empty body for some requests
			if c.Request().ContentLength == 0 {
				return next(c)
			}

			contentType := c.Request().Header.Get(echo.HeaderContentType)
			if !strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
				return apperror.New(http.StatusUnsupportedMediaType, "unsupported_media_type",
					"Content-Type 'application/json' olmalı. Gelen: "+contentType)
			}
		}

		return next(c)
	}
}

// ValidateAcceptHeader middleware ensures that clients can accept JSON responses
func ValidateAcceptHeader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		accept := c.Request().Header.Get(echo.HeaderAccept)

		// If no Accept header, assume */*
		if accept == "" {
			return next(c)
		}

		// /metrics and /docs serve their own formats
		path := c.Request().URL.Path
		if strings.HasPrefix(path, "/metrics") || strings.HasPrefix(path, "/docs") {
			return next(c)
		}

		if !strings.Contains(accept, echo.MIMEApplicationJSON) &&
			!strings.Contains(accept, "*/*") &&
			!strings.Contains(accept, "application/*") {
			return apperror.New(http.StatusNotAcceptable, "not_acceptable",
				"API yalnızca JSON döner. Accept başlığı 'application/json' veya '*/*' içermeli. Gelen: "+accept)
		}

		return next(c)
	}
}

// ValidateIDFormat middleware validates that resource IDs follow expected patterns
func ValidateIDFormat(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")

		// If no ID param, skip validation
		if id == "" {
			return next(c)
		}

		if strings.Contains(id, " ") {
			return apperror.Validation("Geçersiz kimlik: boşluk içeremez").
				WithFields(map[string]string{"id": "boşluk içeremez"})
		}
		if len(id) < 3 {
			return apperror.Validation("Geçersiz kimlik: en az 3 karakter olmalı").
				WithFields(map[string]string{"id": "en az 3 karakter olmalı"})
		}
		if len(id) > 256 {
			return apperror.Validation("Geçersiz kimlik: en fazla 256 karakter olmalı").
				WithFields(map[string]string{"id": "en fazla 256 karakter olmalı"})
		}

		return next(c)
	}
}

// SecurityHeaders middleware adds security headers to responses
func SecurityHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("X-Content-Type-Options", "nosniff")
		c.Response().Header().Set("X-Frame-Options", "DENY")
		c.Response().Header().Set("X-XSS-Protection", "1; mode=block")
		c.Response().Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		return next(c)
	}
}
