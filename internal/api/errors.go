package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/logging"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// HTTPErrorHandler is a custom error handler for Echo. Every error ends up
// as {success:false, message}; internal details are shown only in debug
// mode.
func HTTPErrorHandler(err error, c echo.Context) {
	// Don't send response if already sent
	if c.Response().Committed {
		return
	}

	appErr := toAppError(err)
	resp := ErrorResponse{
		Success: false,
		Message: appErr.Message,
		Error:   appErr.Code,
		Fields:  appErr.Fields,
	}

	log := logging.FromContext(c.Request().Context())
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		if c.Echo().Debug {
			resp.Error = err.Error()
		}
	} else {
		log.WithError(err).Debug("request rejected")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(appErr.HTTPStatus)
	} else {
		err = c.JSON(appErr.HTTPStatus, resp)
	}
	if err != nil {
		log.WithError(err).Error("failed to write error response")
	}
}

func toAppError(err error) *apperror.Error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := getHTTPMessage(he.Code)
		if s, ok := he.Message.(string); ok && he.Code != http.StatusInternalServerError {
			msg = msg + ": " + s
		}
		return apperror.New(he.Code, codeFor(he.Code), msg).WithInternal(he.Internal)
	}
	return apperror.From(err)
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperror.ErrValidation.Code
	case http.StatusUnauthorized:
		return apperror.ErrAuthentication.Code
	case http.StatusForbidden:
		return apperror.ErrAuthorization.Code
	case http.StatusNotFound:
		return apperror.ErrNotFound.Code
	case http.StatusConflict:
		return apperror.ErrConflict.Code
	case http.StatusTooManyRequests:
		return "rate_limited"
	}
	if status >= http.StatusInternalServerError {
		return apperror.ErrInternal.Code
	}
	return "http_error"
}

// getHTTPMessage returns a user-friendly message for HTTP status codes.
func getHTTPMessage(code int) string {
	messages := map[int]string{
		http.StatusBadRequest:            "Geçersiz istek",
		http.StatusUnauthorized:          "Oturum açmanız gerekiyor",
		http.StatusForbidden:             "Bu işlem için yetkiniz yok",
		http.StatusNotFound:              "Kaynak bulunamadı",
		http.StatusMethodNotAllowed:      "Yönteme izin verilmiyor",
		http.StatusConflict:              "Çakışma",
		http.StatusRequestEntityTooLarge: "İstek gövdesi çok büyük",
		http.StatusUnsupportedMediaType:  "Desteklenmeyen içerik tipi",
		http.StatusTooManyRequests:       "Çok fazla istek",
		http.StatusInternalServerError:   "Sunucu hatası",
		http.StatusServiceUnavailable:    "Hizmet kullanılamıyor",
	}

	if msg, ok := messages[code]; ok {
		return msg
	}
	return http.StatusText(code)
}
