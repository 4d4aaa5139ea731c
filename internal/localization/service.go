package localization

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

const maxWriteAttempts = 3

// Service manages Localization documents.
type Service struct {
	store       *storage.Storage
	defaultLang string
}

// NewService creates a localization service writing plain strings in defaultLang.
func NewService(store *storage.Storage, defaultLang string) *Service {
	if defaultLang == "" {
		defaultLang = "tr"
	}
	return &Service{store: store, defaultLang: defaultLang}
}

// DefaultLanguage returns the language plain strings are stored under.
func (s *Service) DefaultLanguage() string {
	return s.defaultLang
}

// UpsertTranslation sets one translation of (namespace, key), creating the
// Localization when needed.
func (s *Service) UpsertTranslation(ctx context.Context, key, namespace, lang, text, userID string) (*models.Localization, error) {
	return s.Upsert(ctx, key, namespace, map[string]string{lang: text}, userID)
}

// Upsert merges translations into (namespace, key). Empty strings remove a
// language.
func (s *Service) Upsert(ctx context.Context, key, namespace string, translations map[string]string, userID string) (*models.Localization, error) {
	key = strings.TrimSpace(key)
	namespace = strings.TrimSpace(namespace)
	if key == "" || namespace == "" {
		return nil, apperror.Validation("Çeviri anahtarı ve ad alanı zorunludur")
	}

	id := models.LocalizationID(namespace, key)
	var lastErr error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		loc, err := s.store.GetLocalization(ctx, id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			loc = &models.Localization{
				Document:     models.Document{ID: id},
				Key:          key,
				Namespace:    namespace,
				Translations: map[string]string{},
			}
		case err != nil:
			return nil, err
		}
		if loc.Translations == nil {
			loc.Translations = map[string]string{}
		}
		for lang, text := range translations {
			lang = strings.TrimSpace(lang)
			if lang == "" {
				continue
			}
			if strings.TrimSpace(text) == "" {
				delete(loc.Translations, lang)
				continue
			}
			loc.Translations[lang] = text
		}
		loc.Touch(userID, time.Now().UTC())

		lastErr = s.store.SaveLocalization(ctx, loc)
		if lastErr == nil {
			return loc, nil
		}
		if !errors.Is(lastErr, storage.ErrConflict) {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("localization %s: %w", id, lastErr)
}

// Assign stores a localized field value and returns the Localization id to
// reference. namespace and key are used when the input does not name them.
// A nil or empty input yields "".
func (s *Service) Assign(ctx context.Context, in *models.LocalizedInput, namespace, key, userID string) (string, error) {
	if in.IsEmpty() {
		return "", nil
	}
	if in.Ref != "" {
		if _, err := s.store.GetLocalization(ctx, in.Ref); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return "", apperror.Validationf("Çeviri kaydı bulunamadı: %s", in.Ref)
			}
			return "", err
		}
		return in.Ref, nil
	}

	if in.Key != "" {
		key = in.Key
	}
	if in.Namespace != "" {
		namespace = in.Namespace
	}
	translations := in.Translations
	if len(translations) == 0 {
		translations = map[string]string{s.defaultLang: in.Text}
	}
	loc, err := s.Upsert(ctx, key, namespace, translations, userID)
	if err != nil {
		return "", err
	}
	return loc.ID, nil
}

// Get returns a Localization by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Localization, error) {
	return s.store.GetLocalization(ctx, id)
}

// GetMany loads the Localizations with the given ids keyed by id.
func (s *Service) GetMany(ctx context.Context, ids []string) (map[string]*models.Localization, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	locs, err := s.store.GetLocalizations(ctx, unique)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.Localization, len(locs))
	for _, l := range locs {
		out[l.ID] = l
	}
	return out, nil
}

// Name resolves the display name stored under Localization id.
func (s *Service) Name(ctx context.Context, id string) string {
	if id == "" {
		return FallbackName
	}
	loc, err := s.store.GetLocalization(ctx, id)
	if err != nil {
		return FallbackName
	}
	return ResolveOr(FromLocalization(loc), FallbackName)
}

// Languages returns every language code with at least one translation.
func (s *Service) Languages(ctx context.Context) ([]string, error) {
	locs, err := s.store.ListLocalizations(ctx, nil)
	if err != nil {
		return nil, err
	}
	set := map[string]bool{s.defaultLang: true}
	for _, l := range locs {
		for lang := range l.Translations {
			set[lang] = true
		}
	}
	langs := make([]string, 0, len(set))
	for lang := range set {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs, nil
}

// Bundle returns the flat "namespace.key" to text map for lang.
func (s *Service) Bundle(ctx context.Context, lang string) (map[string]string, error) {
	locs, err := s.store.ListLocalizations(ctx, nil)
	if err != nil {
		return nil, err
	}
	bundle := make(map[string]string, len(locs))
	for _, l := range locs {
		if text, ok := l.Translations[lang]; ok {
			bundle[l.Namespace+"."+l.Key] = text
		}
	}
	return bundle, nil
}
