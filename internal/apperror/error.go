// Package apperror defines the error taxonomy shared by the services and
// the HTTP layer. Each Error carries the HTTP status it maps to, a stable
// machine code and a user facing (Turkish) message.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"evalgo.org/mdm/internal/storage"
)

// Error represents an application error with HTTP status and error code
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error

	// Fields maps request fields to their validation messages
	Fields map[string]string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error
func (e *Error) Unwrap() error {
	return e.Internal
}

// WithInternal returns a copy of the error with an internal error attached
func (e *Error) WithInternal(err error) *Error {
	cp := *e
	cp.Internal = err
	return &cp
}

// WithMessage returns a copy of the error with a custom message
func (e *Error) WithMessage(message string) *Error {
	cp := *e
	cp.Message = message
	return &cp
}

// WithFields returns a copy of the error with field messages attached
func (e *Error) WithFields(fields map[string]string) *Error {
	cp := *e
	cp.Fields = fields
	return &cp
}

// New creates a new application error
func New(status int, code, message string) *Error {
	return &Error{HTTPStatus: status, Code: code, Message: message}
}

// Common error definitions
var (
	ErrValidation     = New(http.StatusBadRequest, "validation_error", "Geçersiz istek")
	ErrAuthentication = New(http.StatusUnauthorized, "authentication_error", "Oturum açmanız gerekiyor")
	ErrAuthorization  = New(http.StatusForbidden, "authorization_error", "Bu işlem için yetkiniz yok")
	ErrNotFound       = New(http.StatusNotFound, "not_found", "Kayıt bulunamadı")
	ErrConflict       = New(http.StatusConflict, "conflict", "Kayıt başka bir istek tarafından değiştirildi")
	ErrInternal       = New(http.StatusInternalServerError, "server_error", "Sunucu hatası")
)

// Validation creates a validation error with a custom message.
func Validation(message string) *Error {
	return ErrValidation.WithMessage(message)
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...interface{}) *Error {
	return ErrValidation.WithMessage(fmt.Sprintf(format, args...))
}

// NotFound creates a not found error for a resource label and id.
func NotFound(resource, id string) *Error {
	msg := fmt.Sprintf("%s bulunamadı", resource)
	if id != "" {
		msg = fmt.Sprintf("%s bulunamadı: %s", resource, id)
	}
	return ErrNotFound.WithMessage(msg)
}

// Duplicate reports a unique field collision as a validation error.
func Duplicate(resource, field, value string) *Error {
	return Validationf("Bu %s ile kayıtlı bir %s zaten var: %s", field, strings.ToLower(resource), value).
		WithFields(map[string]string{field: "zaten kullanılıyor"})
}

// Authentication creates an authentication error with a custom message.
func Authentication(message string) *Error {
	return ErrAuthentication.WithMessage(message)
}

// Authorization creates an authorization error with a custom message.
func Authorization(message string) *Error {
	return ErrAuthorization.WithMessage(message)
}

// Conflict creates a conflict error with a custom message.
func Conflict(message string) *Error {
	return ErrConflict.WithMessage(message)
}

// Internal wraps an unexpected error.
func Internal(err error) *Error {
	return ErrInternal.WithInternal(err)
}

// MissingFields builds a validation error naming each missing field.
func MissingFields(message string, names []string) *Error {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	fields := make(map[string]string, len(sorted))
	for _, n := range sorted {
		fields[n] = "zorunlu"
	}
	return Validationf("%s: %s", message, strings.Join(sorted, ", ")).WithFields(fields)
}

// From converts any error into an *Error. Storage sentinels map to
// NotFound and Conflict; unknown errors become internal errors.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound.WithInternal(err)
	case errors.Is(err, storage.ErrConflict):
		return ErrConflict.WithInternal(err)
	}
	return Internal(err)
}

// Status returns the HTTP status an error maps to.
func Status(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).HTTPStatus
}

// Is reports whether err maps to the same code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	return From(err).Code == target.Code
}
