// Package localization stores translated strings and resolves the display
// name of catalog entities.
package localization

import (
	"encoding/json"
	"sort"
	"strings"

	"evalgo.org/mdm/models"
)

// FallbackName is returned when no name can be resolved.
const FallbackName = "Unknown"

// PreferredLanguages is the lookup order before falling back to the first
// available language.
var PreferredLanguages = []string{"tr", "en"}

// NameSource is a display name candidate. It is one of Text, Ref or Missing.
type NameSource interface {
	isNameSource()
}

// Text is a name that is already a plain string.
type Text string

// Ref is a reference to a Localization, possibly with its translations loaded.
type Ref struct {
	Key          string
	Translations map[string]string
}

// Missing means no name is available.
type Missing struct{}

func (Text) isNameSource()    {}
func (Ref) isNameSource()     {}
func (Missing) isNameSource() {}

// Resolve picks a display string from src: the text itself, or a
// translation in tr, then en, then the first language in lexical order,
// then the key. ok is false when nothing usable exists.
func Resolve(src NameSource) (name string, ok bool) {
	switch v := src.(type) {
	case Text:
		s := strings.TrimSpace(string(v))
		return s, s != ""
	case Ref:
		for _, lang := range PreferredLanguages {
			if t := strings.TrimSpace(v.Translations[lang]); t != "" {
				return t, true
			}
		}
		langs := make([]string, 0, len(v.Translations))
		for lang := range v.Translations {
			langs = append(langs, lang)
		}
		sort.Strings(langs)
		for _, lang := range langs {
			if t := strings.TrimSpace(v.Translations[lang]); t != "" {
				return t, true
			}
		}
		if k := strings.TrimSpace(v.Key); k != "" {
			return k, true
		}
	}
	return "", false
}

// ResolveOr resolves src, returning fallback when nothing is available.
func ResolveOr(src NameSource, fallback string) string {
	if name, ok := Resolve(src); ok {
		return name
	}
	return fallback
}

// FromLocalization wraps a loaded Localization.
func FromLocalization(l *models.Localization) NameSource {
	if l == nil {
		return Missing{}
	}
	return Ref{Key: l.Key, Translations: l.Translations}
}

// FromValue classifies a decoded JSON value.
func FromValue(v interface{}) NameSource {
	switch t := v.(type) {
	case nil:
		return Missing{}
	case string:
		if strings.TrimSpace(t) == "" {
			return Missing{}
		}
		return Text(t)
	case *models.Localization:
		return FromLocalization(t)
	case models.Localization:
		return FromLocalization(&t)
	case map[string]interface{}:
		ref := Ref{}
		ref.Key, _ = t["key"].(string)
		if tr, ok := t["translations"].(map[string]interface{}); ok {
			ref.Translations = make(map[string]string, len(tr))
			for lang, s := range tr {
				if str, ok := s.(string); ok {
					ref.Translations[lang] = str
				}
			}
		}
		if ref.Key == "" && len(ref.Translations) == 0 {
			return Missing{}
		}
		return ref
	}
	return Missing{}
}

// FromData extracts the "name" field of an arbitrary document snapshot
// (struct, map or raw JSON) and classifies it.
func FromData(data interface{}) NameSource {
	if data == nil {
		return Missing{}
	}
	m, ok := data.(map[string]interface{})
	if !ok {
		raw, isRaw := data.(json.RawMessage)
		if !isRaw {
			var err error
			raw, err = json.Marshal(data)
			if err != nil {
				return Missing{}
			}
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			return Missing{}
		}
	}
	return FromValue(m["name"])
}
