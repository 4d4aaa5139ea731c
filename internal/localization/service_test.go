package localization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

func newTestService() *Service {
	return NewService(storage.NewWithBackend(storage.NewMemoryBackend(), 0, nil), "tr")
}

func TestUpsertTranslationMerges(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	loc, err := svc.UpsertTranslation(ctx, "color", "attribute.name", "tr", "Renk", "user:1")
	require.NoError(t, err)
	assert.Equal(t, models.LocalizationID("attribute.name", "color"), loc.ID)

	loc, err = svc.UpsertTranslation(ctx, "color", "attribute.name", "en", "Color", "user:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tr": "Renk", "en": "Color"}, loc.Translations)

	loc, err = svc.Upsert(ctx, "color", "attribute.name", map[string]string{"en": ""}, "user:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tr": "Renk"}, loc.Translations)
}

func TestUpsertRequiresKeyAndNamespace(t *testing.T) {
	_, err := newTestService().Upsert(context.Background(), "", "ns", nil, "")
	assert.True(t, apperror.Is(err, apperror.ErrValidation))
}

func TestAssign(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	id, err := svc.Assign(ctx, &models.LocalizedInput{Text: "Renk"}, "attribute.name", "color", "")
	require.NoError(t, err)
	assert.Equal(t, "Renk", svc.Name(ctx, id))

	again, err := svc.Assign(ctx, &models.LocalizedInput{Ref: id}, "attribute.name", "other", "")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	_, err = svc.Assign(ctx, &models.LocalizedInput{Ref: "localization:x:missing"}, "attribute.name", "color", "")
	assert.True(t, apperror.Is(err, apperror.ErrValidation))

	custom, err := svc.Assign(ctx, &models.LocalizedInput{
		Key:          "shade",
		Translations: map[string]string{"en": "Shade"},
	}, "attribute.name", "color", "")
	require.NoError(t, err)
	assert.Equal(t, models.LocalizationID("attribute.name", "shade"), custom)

	empty, err := svc.Assign(ctx, nil, "attribute.name", "color", "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLanguagesAndBundle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.Upsert(ctx, "color", "attribute.name", map[string]string{"tr": "Renk", "en": "Color"}, "")
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, "size", "attribute.name", map[string]string{"de": "Größe"}, "")
	require.NoError(t, err)

	langs, err := svc.Languages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"de", "en", "tr"}, langs)

	bundle, err := svc.Bundle(ctx, "en")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"attribute.name.color": "Color"}, bundle)
}

func TestNameFallback(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	assert.Equal(t, FallbackName, svc.Name(ctx, ""))
	assert.Equal(t, FallbackName, svc.Name(ctx, "localization:none:none"))
}
