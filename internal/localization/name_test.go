package localization

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"evalgo.org/mdm/models"
)

func TestResolvePrecedence(t *testing.T) {
	tests := []struct {
		name   string
		src    NameSource
		want   string
		wantOK bool
	}{
		{"plain text", Text("Renk"), "Renk", true},
		{"blank text", Text("  "), "", false},
		{"turkish first", Ref{Key: "color", Translations: map[string]string{"en": "Color", "tr": "Renk"}}, "Renk", true},
		{"english second", Ref{Key: "color", Translations: map[string]string{"de": "Farbe", "en": "Color"}}, "Color", true},
		{"first available in lexical order", Ref{Key: "color", Translations: map[string]string{"fr": "Couleur", "de": "Farbe"}}, "Farbe", true},
		{"empty translations skipped", Ref{Key: "color", Translations: map[string]string{"tr": "", "en": " "}}, "color", true},
		{"key last", Ref{Key: "color"}, "color", true},
		{"nothing", Ref{}, "", false},
		{"missing", Missing{}, "", false},
		{"nil source", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.src)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveOr(t *testing.T) {
	assert.Equal(t, FallbackName, ResolveOr(Missing{}, FallbackName))
	assert.Equal(t, "x", ResolveOr(Text("x"), FallbackName))
}

func TestFromValue(t *testing.T) {
	assert.Equal(t, Text("Renk"), FromValue("Renk"))
	assert.Equal(t, Missing{}, FromValue(""))
	assert.Equal(t, Missing{}, FromValue(nil))
	assert.Equal(t, Missing{}, FromValue(42.0))
	assert.Equal(t, Missing{}, FromValue(map[string]interface{}{}))

	ref := FromValue(map[string]interface{}{
		"key":          "color",
		"translations": map[string]interface{}{"tr": "Renk"},
	})
	assert.Equal(t, Ref{Key: "color", Translations: map[string]string{"tr": "Renk"}}, ref)

	loc := &models.Localization{Key: "size", Translations: map[string]string{"en": "Size"}}
	assert.Equal(t, Ref{Key: "size", Translations: map[string]string{"en": "Size"}}, FromValue(loc))
}

func TestFromData(t *testing.T) {
	type view struct {
		Name *models.Localization `json:"name"`
	}
	v := view{Name: &models.Localization{Key: "color", Translations: map[string]string{"tr": "Renk"}}}
	assert.Equal(t, "Renk", ResolveOr(FromData(v), FallbackName))

	assert.Equal(t, "Plain", ResolveOr(FromData(map[string]interface{}{"name": "Plain"}), FallbackName))
	assert.Equal(t, "Raw", ResolveOr(FromData(json.RawMessage(`{"name":"Raw"}`)), FallbackName))
	assert.Equal(t, FallbackName, ResolveOr(FromData(map[string]interface{}{"code": "x"}), FallbackName))
	assert.Equal(t, FallbackName, ResolveOr(FromData(nil), FallbackName))
}
