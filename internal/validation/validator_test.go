package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mdm/internal/apperror"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type attributeRequest struct {
	Code *string `json:"code" validate:"omitempty,min=1,max=5"`
	Type *string `json:"type" validate:"omitempty,oneof=text number"`
}

func str(s string) *string { return &s }

func TestNew(t *testing.T) {
	v := New()
	assert.NotNil(t, v)
	assert.NotNil(t, v.structValidator)
}

func TestValidate_Valid(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(&loginRequest{Email: "a@b.co", Password: "secret1"}))
	assert.NoError(t, v.Validate(&attributeRequest{}))
}

func TestValidate_FieldMessagesUseJSONNames(t *testing.T) {
	v := New()

	err := v.Validate(&loginRequest{Email: "not-an-email", Password: "123"})
	require.Error(t, err)
	appErr := apperror.From(err)
	assert.Equal(t, 400, appErr.HTTPStatus)
	assert.Equal(t, "geçerli bir e-posta adresi olmalı", appErr.Fields["email"])
	assert.Equal(t, "en az 6 karakter olmalı", appErr.Fields["password"])
	assert.Contains(t, appErr.Message, "email, password")

	err = v.Validate(&loginRequest{})
	require.Error(t, err)
	assert.Equal(t, "zorunlu", apperror.From(err).Fields["email"])
}

func TestValidate_PointerFields(t *testing.T) {
	v := New()

	err := v.Validate(&attributeRequest{Type: str("color")})
	require.Error(t, err)
	assert.Equal(t, "şunlardan biri olmalı: text number", apperror.From(err).Fields["type"])

	err = v.Validate(&attributeRequest{Code: str("toolong")})
	require.Error(t, err)
	assert.Contains(t, apperror.From(err).Fields, "code")
}

func TestValidate_NonStruct(t *testing.T) {
	v := New()
	err := v.Validate("plain string")
	require.Error(t, err)
	assert.Equal(t, 500, apperror.Status(err))
}
