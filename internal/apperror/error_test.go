package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"evalgo.org/mdm/internal/storage"
)

func TestFromMapsStorageErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("wrap: %w", storage.ErrNotFound), http.StatusNotFound, "not_found"},
		{"conflict", fmt.Errorf("wrap: %w", storage.ErrConflict), http.StatusConflict, "conflict"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "server_error"},
		{"app error", Validation("kötü"), http.StatusBadRequest, "validation_error"},
		{"wrapped app error", fmt.Errorf("ctx: %w", NotFound("Kategori", "c1")), http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := From(tt.err)
			assert.Equal(t, tt.status, got.HTTPStatus)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.status, Status(tt.err))
		})
	}
}

func TestFromNil(t *testing.T) {
	assert.Nil(t, From(nil))
	assert.Equal(t, http.StatusOK, Status(nil))
}

func TestCopiesDoNotMutateSentinels(t *testing.T) {
	custom := ErrValidation.WithMessage("özel")
	assert.Equal(t, "özel", custom.Message)
	assert.Equal(t, "Geçersiz istek", ErrValidation.Message)

	withInternal := ErrInternal.WithInternal(errors.New("x"))
	assert.Nil(t, ErrInternal.Internal)
	assert.ErrorContains(t, withInternal, "x")
}

func TestMissingFields(t *testing.T) {
	err := MissingFields("Zorunlu öznitelikler eksik", []string{"Size", "Color"})
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.Equal(t, "Zorunlu öznitelikler eksik: Color, Size", err.Message)
	assert.Len(t, err.Fields, 2)
}

func TestIs(t *testing.T) {
	assert.True(t, Is(NotFound("Öğe", "1"), ErrNotFound))
	assert.True(t, Is(storage.ErrConflict, ErrConflict))
	assert.False(t, Is(Validation("x"), ErrNotFound))
	assert.False(t, Is(nil, ErrNotFound))
}

func TestNotFoundMessage(t *testing.T) {
	assert.Equal(t, "Kategori bulunamadı: c1", NotFound("Kategori", "c1").Message)
	assert.Equal(t, "Kategori bulunamadı", NotFound("Kategori", "").Message)
}
