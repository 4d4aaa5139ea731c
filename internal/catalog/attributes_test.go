package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/models"
)

func TestCreateAttributeNormalizesValidations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	number := models.AttributeNumber
	a, err := f.svc.CreateAttribute(ctx, AttributeInput{
		Code:        str("weight"),
		Name:        text("Ağırlık"),
		Type:        &number,
		Validations: map[string]interface{}{"min": "1.5", "max": 10, "isInteger": "true"},
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1.5, a.Validations["min"])
	assert.Equal(t, float64(10), a.Validations["max"])
	assert.Equal(t, true, a.Validations["isInteger"])
	assert.Equal(t, "Ağırlık", DisplayName(a.Name))

	date := models.AttributeDate
	d, err := f.svc.CreateAttribute(ctx, AttributeInput{
		Code:        str("born"),
		Name:        text("Doğum"),
		Type:        &date,
		Validations: map[string]interface{}{},
	}, "user-1")
	require.NoError(t, err)

	stored, err := f.store.GetAttribute(ctx, d.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Validations)

	raw, err := json.Marshal(stored)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "validations")
}

func TestCreateAttributeRejectsDuplicateCodeAndBadType(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.attribute(t, "color", false)

	typ := models.AttributeText
	_, err := f.svc.CreateAttribute(ctx, AttributeInput{Code: str("color"), Name: text("Renk"), Type: &typ}, "user-1")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrValidation))

	bad := models.AttributeType("color-picker")
	_, err = f.svc.CreateAttribute(ctx, AttributeInput{Code: str("shade"), Name: text("Ton"), Type: &bad}, "user-1")
	require.Error(t, err)
	assert.Equal(t, 400, apperror.Status(err))
}

func TestUpdateAttributeRecoercesOnTypeChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.attribute(t, "size", false)

	number := models.AttributeNumber
	updated, err := f.svc.UpdateAttribute(ctx, a.ID, AttributeInput{
		Type:        &number,
		Validations: map[string]interface{}{"min": "3"},
	}, "user-2")
	require.NoError(t, err)
	assert.Equal(t, models.AttributeNumber, updated.ValueType)
	assert.Equal(t, float64(3), updated.Validations["min"])
	assert.Equal(t, "user-2", updated.UpdatedBy)

	_, err = f.svc.UpdateAttribute(ctx, a.ID, AttributeInput{Rev: "1-stale", IsActive: flag(false)}, "user-2")
	require.Error(t, err)
	assert.Equal(t, 409, apperror.Status(err))
}

func TestCreateAttributeJoinsGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.group(t, "basics")
	fam := f.family(t, "shoes", FamilyInput{AttributeGroups: strs(g.ID)})
	assert.Empty(t, fam.Attributes)

	typ := models.AttributeText
	a, err := f.svc.CreateAttribute(ctx, AttributeInput{
		Code:           str("material"),
		Name:           text("Malzeme"),
		Type:           &typ,
		AttributeGroup: str(g.ID),
	}, "user-1")
	require.NoError(t, err)

	stored, err := f.store.GetAttributeGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, stored.Attributes)

	storedFam, err := f.store.GetFamily(ctx, fam.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, storedFam.Attributes)

	page, err := f.history.Query(ctx, historyFilter(models.ActionRelationshipAdd), 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	sides := map[string]bool{}
	for _, row := range page.Rows {
		sides[row.EntityID] = true
		require.Len(t, row.AffectedEntities, 2)
		assert.Equal(t, models.RoleSecondary, row.AffectedEntities[1].Role)
	}
	assert.True(t, sides[a.ID])
	assert.True(t, sides[g.ID])
}

func TestSetAttributeGroupsAppliesDiff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.attribute(t, "color", false)
	g1 := f.group(t, "g1", a.ID)
	g2 := f.group(t, "g2")
	g3 := f.group(t, "g3")

	groups, err := f.svc.SetAttributeGroups(ctx, a.ID, []string{g2.ID, g3.ID}, "user-1")
	require.NoError(t, err)
	require.Len(t, groups, 2)

	holding, err := f.svc.GetAttributeGroupsOf(ctx, a.ID)
	require.NoError(t, err)
	ids := []string{}
	for _, g := range holding {
		ids = append(ids, g.ID)
	}
	assert.ElementsMatch(t, []string{g2.ID, g3.ID}, ids)

	stored, err := f.store.GetAttributeGroup(ctx, g1.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Attributes)

	attr, err := f.store.GetAttribute(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, g2.ID, attr.AttributeGroup)

	removed, err := f.history.Query(ctx, historyFilter(models.ActionRelationshipRemove), 0, 0)
	require.NoError(t, err)
	assert.Len(t, removed.Rows, 2)
}

func TestDeleteAttributeDoesNotCascadeAndPurgesHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.attribute(t, "color", false)
	g := f.group(t, "g1", a.ID)

	require.NoError(t, f.svc.DeleteAttribute(ctx, a.ID, "user-1"))

	_, err := f.svc.GetAttribute(ctx, a.ID)
	assert.Equal(t, 404, apperror.Status(err))

	stored, err := f.store.GetAttributeGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, stored.Attributes)

	page, err := f.history.GetEntityHistory(ctx, a.ID, "", 0, 0)
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	view, err := f.svc.GetAttributeGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Attributes)
}

func TestListAttributesByGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.attribute(t, "a", false)
	b := f.attribute(t, "b", false)
	f.attribute(t, "c", false)
	g := f.group(t, "g", b.ID, a.ID)

	list, err := f.svc.ListAttributes(ctx, AttributeFilter{AttributeGroup: g.ID})
	require.NoError(t, err)
	ids := []string{}
	for _, v := range list {
		ids = append(ids, v.ID)
	}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
}
