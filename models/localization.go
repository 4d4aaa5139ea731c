package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const localizationPrefix = "localization:"

// Localization maps a (namespace, key) pair to per-language strings.
type Localization struct {
	Document

	Key          string            `json:"key"`
	Namespace    string            `json:"namespace"`
	Translations map[string]string `json:"translations"`

	Audit
}

// LocalizationID returns the document id for a (namespace, key) pair. The
// id doubles as the uniqueness constraint on the pair.
func LocalizationID(namespace, key string) string {
	return localizationPrefix + namespace + ":" + key
}

// IsLocalizationID reports whether s looks like a Localization document id.
func IsLocalizationID(s string) bool {
	return strings.HasPrefix(s, localizationPrefix)
}

// LocalizedInput is the write shape of a localized field. Clients send
// either a plain string (text in the default language), the id of an
// existing Localization, or an object with key, namespace and translations.
type LocalizedInput struct {
	Ref          string
	Text         string
	Key          string
	Namespace    string
	Translations map[string]string
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *LocalizedInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if IsLocalizationID(s) {
			l.Ref = s
		} else {
			l.Text = s
		}
		return nil
	}

	var obj struct {
		ID           string            `json:"_id"`
		Key          string            `json:"key"`
		Namespace    string            `json:"namespace"`
		Translations map[string]string `json:"translations"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("localized field must be a string or an object: %w", err)
	}
	l.Key = obj.Key
	l.Namespace = obj.Namespace
	l.Translations = obj.Translations
	if obj.ID != "" && len(obj.Translations) == 0 {
		l.Ref = obj.ID
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l LocalizedInput) MarshalJSON() ([]byte, error) {
	if l.Ref != "" {
		return json.Marshal(l.Ref)
	}
	if l.Text != "" && len(l.Translations) == 0 {
		return json.Marshal(l.Text)
	}
	return json.Marshal(map[string]interface{}{
		"key":          l.Key,
		"namespace":    l.Namespace,
		"translations": l.Translations,
	})
}

// IsEmpty reports whether the input carries no content.
func (l *LocalizedInput) IsEmpty() bool {
	return l == nil || (l.Ref == "" && strings.TrimSpace(l.Text) == "" && len(l.Translations) == 0)
}
