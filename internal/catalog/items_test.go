package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/models"
)

type itemSetup struct {
	itemType *ItemTypeView
	category *CategoryView
	sku      *AttributeView
	color    *AttributeView
	note     *AttributeView
}

func newItemSetup(t *testing.T, f *fixture) *itemSetup {
	t.Helper()
	sku := f.attribute(t, "sku", true)
	color := f.attribute(t, "color", true)
	note := f.attribute(t, "note", false)
	typeGroup := f.group(t, "type-group", sku.ID, note.ID)
	catGroup := f.group(t, "cat-group", color.ID, sku.ID)
	return &itemSetup{
		itemType: f.itemType(t, "product", ItemTypeInput{AttributeGroups: strs(typeGroup.ID)}),
		category: f.category(t, "shoes", CategoryInput{AttributeGroups: strs(catGroup.ID)}),
		sku:      sku,
		color:    color,
		note:     note,
	}
}

func TestRequiredAttributesUnion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := newItemSetup(t, f)

	reqs, err := f.svc.RequiredAttributes(ctx, s.itemType.ID, "")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, s.sku.ID, reqs[0].ID)

	reqs, err = f.svc.RequiredAttributes(ctx, s.itemType.ID, s.category.ID)
	require.NoError(t, err)
	ids := []string{}
	for _, a := range reqs {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{s.sku.ID, s.color.ID}, ids)

	_, err = f.svc.RequiredAttributes(ctx, "itemType:missing", "")
	assert.Equal(t, 404, apperror.Status(err))
}

func TestCreateItemRequiresAttributes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := newItemSetup(t, f)

	_, err := f.svc.CreateItem(ctx, ItemInput{
		ItemType: str(s.itemType.ID),
		Category: str(s.category.ID),
		Attributes: map[string]interface{}{
			s.sku.ID:   "SKU-1",
			s.color.ID: "",
		},
	}, "user-1")
	require.Error(t, err)
	appErr := apperror.From(err)
	assert.Equal(t, 400, appErr.HTTPStatus)
	assert.Contains(t, appErr.Message, "color")
	assert.Contains(t, appErr.Fields, "color")
	assert.NotContains(t, appErr.Fields, "sku")

	_, err = f.svc.CreateItem(ctx, ItemInput{
		ItemType:   str(s.itemType.ID),
		Attributes: map[string]interface{}{s.sku.ID: nil},
	}, "user-1")
	require.Error(t, err)
	assert.Contains(t, apperror.From(err).Fields, "sku")

	items, err := f.svc.ListItems(ctx, ItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)

	item, err := f.svc.CreateItem(ctx, ItemInput{
		ItemType: str(s.itemType.ID),
		Category: str(s.category.ID),
		Attributes: map[string]interface{}{
			s.sku.ID:   "SKU-1",
			s.color.ID: false,
		},
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, s.itemType.ID, item.ItemType.ID)
	assert.Equal(t, "product", DisplayName(item.ItemType.Name))
	assert.Equal(t, s.category.ID, item.Category.ID)
	assert.True(t, item.IsActive)
}

func TestCreateItemRejectsUnknownReferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := newItemSetup(t, f)

	_, err := f.svc.CreateItem(ctx, ItemInput{ItemType: str("itemType:missing")}, "user-1")
	assert.Equal(t, 400, apperror.Status(err))

	_, err = f.svc.CreateItem(ctx, ItemInput{
		ItemType:   str(s.itemType.ID),
		Attributes: map[string]interface{}{s.sku.ID: "x", "attribute:missing": 1},
	}, "user-1")
	assert.Equal(t, 400, apperror.Status(err))

	_, err = f.svc.CreateItem(ctx, ItemInput{}, "user-1")
	assert.Equal(t, 400, apperror.Status(err))
}

func TestUpdateItemValidatesMergedDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := newItemSetup(t, f)

	item, err := f.svc.CreateItem(ctx, ItemInput{
		ItemType: str(s.itemType.ID),
		Category: str(s.category.ID),
		Attributes: map[string]interface{}{
			s.sku.ID:   "SKU-1",
			s.color.ID: "red",
		},
	}, "user-1")
	require.NoError(t, err)

	// Category is left out of the payload but still imposes its requirements.
	_, err = f.svc.UpdateItem(ctx, item.ID, ItemInput{
		Attributes: map[string]interface{}{s.sku.ID: "SKU-2"},
	}, "user-2")
	require.Error(t, err)
	assert.Contains(t, apperror.From(err).Fields, "color")

	updated, err := f.svc.UpdateItem(ctx, item.ID, ItemInput{
		Attributes: map[string]interface{}{s.sku.ID: "SKU-2", s.color.ID: "blue", s.note.ID: "n"},
		IsActive:   flag(false),
	}, "user-2")
	require.NoError(t, err)
	assert.Equal(t, "SKU-2", updated.Attributes[s.sku.ID])
	assert.False(t, updated.IsActive)
	assert.Equal(t, "user-2", updated.UpdatedBy)

	// Dropping the category removes its requirements.
	updated, err = f.svc.UpdateItem(ctx, item.ID, ItemInput{
		Category:   str(""),
		Attributes: map[string]interface{}{s.sku.ID: "SKU-3"},
	}, "user-2")
	require.NoError(t, err)
	assert.Nil(t, updated.Category)

	page, err := f.history.GetEntityHistory(ctx, item.ID, models.EntityItem, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, "product", page.Rows[0].EntityName)
}

func TestDeleteItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := newItemSetup(t, f)

	item, err := f.svc.CreateItem(ctx, ItemInput{
		ItemType:   str(s.itemType.ID),
		Attributes: map[string]interface{}{s.sku.ID: "SKU-1"},
	}, "user-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteItem(ctx, item.ID, "user-1"))
	_, err = f.svc.GetItem(ctx, item.ID)
	assert.Equal(t, 404, apperror.Status(err))
	assert.Equal(t, 404, apperror.Status(f.svc.DeleteItem(ctx, item.ID, "user-1")))

	page, err := f.history.GetEntityHistory(ctx, item.ID, "", 0, 0)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}
