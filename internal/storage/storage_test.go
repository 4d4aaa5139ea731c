package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mdm/models"
)

func newTestStorage() (*Storage, *MemoryBackend) {
	backend := NewMemoryBackend()
	return NewWithBackend(backend, 0, nil), backend
}

func TestSaveAssignsRevisionAndDetectsConflicts(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage()

	attr := &models.Attribute{Document: models.Document{ID: "attribute:1"}, Code: "color", ValueType: models.AttributeSelect}
	require.NoError(t, s.SaveAttribute(ctx, attr))
	assert.NotEmpty(t, attr.Rev)
	assert.Equal(t, models.TypeAttribute, attr.Type)

	first, err := s.GetAttribute(ctx, "attribute:1")
	require.NoError(t, err)
	second, err := s.GetAttribute(ctx, "attribute:1")
	require.NoError(t, err)

	first.Code = "colour"
	require.NoError(t, s.SaveAttribute(ctx, first))

	second.Code = "farbe"
	err = s.SaveAttribute(ctx, second)
	assert.ErrorIs(t, err, ErrConflict)

	stored, err := s.GetAttribute(ctx, "attribute:1")
	require.NoError(t, err)
	assert.Equal(t, "colour", stored.Code)
}

func TestAttributeKeepsDocumentTypeAndValueType(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStorage()

	attr := &models.Attribute{Document: models.Document{ID: "attribute:1"}, Code: "color", ValueType: models.AttributeSelect}
	require.NoError(t, s.SaveAttribute(ctx, attr))

	var raw map[string]interface{}
	require.NoError(t, backend.Get(ctx, "attribute:1", &raw))
	assert.Equal(t, models.TypeAttribute, raw["@type"])
	assert.Equal(t, string(models.AttributeSelect), raw["type"])

	stored, err := s.GetAttribute(ctx, "attribute:1")
	require.NoError(t, err)
	assert.Equal(t, models.TypeAttribute, stored.DocType())
	assert.Equal(t, models.AttributeSelect, stored.ValueType)

	list, err := s.ListAttributes(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)

	byCode, err := s.FindAttributeByCode(ctx, "color")
	require.NoError(t, err)
	assert.Equal(t, "attribute:1", byCode.ID)
}

func TestCreateOverExistingIDConflicts(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage()

	require.NoError(t, s.SaveCategory(ctx, &models.Category{Document: models.Document{ID: "category:1"}}))
	err := s.SaveCategory(ctx, &models.Category{Document: models.Document{ID: "category:1"}})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGetTypedRejectsOtherTypes(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage()

	require.NoError(t, s.SaveCategory(ctx, &models.Category{Document: models.Document{ID: "x:1"}}))

	_, err := s.GetFamily(ctx, "x:1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetCategory(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertAdoptsStoredRevision(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage()

	require.NoError(t, s.UpsertRegistryEntry(ctx, &models.EntityRegistryEntry{EntityID: "attribute:1", Name: "Color"}))
	require.NoError(t, s.UpsertRegistryEntry(ctx, &models.EntityRegistryEntry{EntityID: "attribute:1", Name: "Colour"}))

	entry, err := s.GetRegistryEntry(ctx, "attribute:1")
	require.NoError(t, err)
	assert.Equal(t, "Colour", entry.Name)
}

func TestGetManyKeepsRequestedOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage()

	for _, id := range []string{"attribute:a", "attribute:b", "attribute:c"} {
		require.NoError(t, s.SaveAttribute(ctx, &models.Attribute{Document: models.Document{ID: id}}))
	}

	attrs, err := s.GetAttributes(ctx, []string{"attribute:c", "attribute:missing", "attribute:a", "attribute:c"})
	require.NoError(t, err)
	require.Len(t, attrs, 2)
	assert.Equal(t, "attribute:c", attrs[0].ID)
	assert.Equal(t, "attribute:a", attrs[1].ID)
}

func TestMembershipQueries(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage()

	require.NoError(t, s.SaveAttributeGroup(ctx, &models.AttributeGroup{
		Document:   models.Document{ID: "group:1"},
		Attributes: []string{"attribute:1", "attribute:2"},
	}))
	require.NoError(t, s.SaveAttributeGroup(ctx, &models.AttributeGroup{
		Document:   models.Document{ID: "group:2"},
		Attributes: []string{"attribute:3"},
	}))
	require.NoError(t, s.SaveFamily(ctx, &models.Family{
		Document:        models.Document{ID: "family:1"},
		AttributeGroups: []string{"group:2"},
	}))

	groups, err := s.GroupsContainingAttribute(ctx, "attribute:2")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "group:1", groups[0].ID)

	families, err := s.FamiliesReferencingGroup(ctx, "group:2")
	require.NoError(t, err)
	require.Len(t, families, 1)
}

func TestHistoryForEntityMatchesPrimaryAndAffected(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage()

	rows := []*models.History{
		{Document: models.Document{ID: "history:1"}, EntityID: "attribute:1", EntityType: models.EntityAttribute, Action: models.ActionCreate},
		{
			Document:   models.Document{ID: "history:2"},
			EntityID:   "group:1",
			EntityType: models.EntityAttributeGroup,
			Action:     models.ActionRelationshipAdd,
			AffectedEntities: []models.AffectedEntity{
				{EntityID: "group:1", EntityType: models.EntityAttributeGroup, Role: models.RolePrimary},
				{EntityID: "attribute:1", EntityType: models.EntityAttribute, Role: models.RoleSecondary},
			},
		},
		{Document: models.Document{ID: "history:3"}, EntityID: "attribute:2", EntityType: models.EntityAttribute, Action: models.ActionCreate},
	}
	for _, r := range rows {
		r.CreatedAt = time.Now()
		require.NoError(t, s.SaveHistory(ctx, r))
	}

	found, err := s.HistoryForEntity(ctx, "attribute:1", "")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = s.HistoryForEntity(ctx, "attribute:1", models.EntityCategory)
	require.NoError(t, err)
	assert.Empty(t, found)

	n, err := s.DeleteHistoryForEntity(ctx, "attribute:1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	remaining, err := s.ListHistory(ctx, nil)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "history:3", remaining[0].ID)
}

func TestRelationshipsByEntity(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage()

	save := func(id, src, dst string, status models.RelationshipStatus) {
		require.NoError(t, s.SaveRelationship(ctx, &models.Relationship{
			Document:         models.Document{ID: id},
			SourceEntityID:   src,
			SourceEntityType: "item",
			TargetEntityID:   dst,
			TargetEntityType: "item",
			Status:           status,
		}))
	}
	save("rel:1", "item:a", "item:b", models.RelationshipActive)
	save("rel:2", "item:b", "item:c", models.RelationshipActive)
	save("rel:3", "item:b", "item:d", models.RelationshipArchived)

	src, err := s.RelationshipsByEntity(ctx, "item:b", "item", EntityRoleSource)
	require.NoError(t, err)
	assert.Len(t, src, 1)

	dst, err := s.RelationshipsByEntity(ctx, "item:b", "item", EntityRoleTarget)
	require.NoError(t, err)
	assert.Len(t, dst, 1)

	both, err := s.RelationshipsByEntity(ctx, "item:b", "item", EntityRoleAny)
	require.NoError(t, err)
	assert.Len(t, both, 2)

	none, err := s.RelationshipsByEntity(ctx, "item:b", "category", EntityRoleAny)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFaultInjection(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStorage()

	boom := errors.New("boom")
	backend.InjectFault(func(op Op, id string) error {
		if op == OpPut && id == "family:1" {
			return boom
		}
		return nil
	})

	err := s.SaveFamily(ctx, &models.Family{Document: models.Document{ID: "family:1"}})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, s.SaveFamily(ctx, &models.Family{Document: models.Document{ID: "family:2"}}))

	backend.InjectFault(nil)
	require.NoError(t, s.SaveFamily(ctx, &models.Family{Document: models.Document{ID: "family:1"}}))
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage()

	require.NoError(t, s.SaveItem(ctx, &models.Item{Document: models.Document{ID: "item:1"}, IsActive: true}))
	require.NoError(t, s.SaveItem(ctx, &models.Item{Document: models.Document{ID: "item:2"}}))
	require.NoError(t, s.SaveAttribute(ctx, &models.Attribute{Document: models.Document{ID: "attribute:1"}}))

	stats, err := s.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Items)
	assert.Equal(t, 1, stats.ActiveItems)
	assert.Equal(t, 1, stats.Attributes)

	info, err := s.GetDatabaseInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.DocCount)
}

func TestDeleteNeedsCurrentRevision(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage()

	it := &models.Item{Document: models.Document{ID: "item:1"}}
	require.NoError(t, s.SaveItem(ctx, it))
	assert.ErrorIs(t, s.Delete(ctx, it.ID, "1-stale"), ErrConflict)
	require.NoError(t, s.Delete(ctx, it.ID, it.Rev))
	assert.ErrorIs(t, s.Delete(ctx, it.ID, it.Rev), ErrNotFound)
}
