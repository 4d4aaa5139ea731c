package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamilyAttributesFollowGroups(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a1 := f.attribute(t, "a1", false)
	a2 := f.attribute(t, "a2", false)
	a3 := f.attribute(t, "a3", false)
	g1 := f.group(t, "g1", a1.ID, a2.ID)
	g2 := f.group(t, "g2", a2.ID, a3.ID)

	fam := f.family(t, "fam", FamilyInput{AttributeGroups: strs(g1.ID, g2.ID)})
	assert.Equal(t, []string{a1.ID, a2.ID, a3.ID}, fam.Family.Attributes)
	require.Len(t, fam.Attributes, 3)
	assert.Equal(t, "a1", DisplayName(fam.Attributes[0].Name))

	_, err := f.svc.UpdateAttributeGroup(ctx, g2.ID, AttributeGroupInput{Attributes: strs(a3.ID)}, "user-1")
	require.NoError(t, err)
	stored, err := f.store.GetFamily(ctx, fam.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a1.ID, a2.ID, a3.ID}, stored.Attributes)

	_, err = f.svc.UpdateAttributeGroup(ctx, g1.ID, AttributeGroupInput{Attributes: strs(a1.ID)}, "user-1")
	require.NoError(t, err)
	stored, err = f.store.GetFamily(ctx, fam.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a1.ID, a3.ID}, stored.Attributes)

	updated, _, err := f.svc.UpdateFamily(ctx, fam.ID, FamilyInput{AttributeGroups: strs()}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{}, updated.Family.Attributes)
	assert.Empty(t, updated.AttributeGroups)
}

func TestFamilyUpdateWithoutGroupsKeepsStoredClosure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a1 := f.attribute(t, "a1", false)
	a2 := f.attribute(t, "a2", false)
	g1 := f.group(t, "g1", a1.ID, a2.ID)
	fam := f.family(t, "fam", FamilyInput{AttributeGroups: strs(g1.ID)})

	updated, _, err := f.svc.UpdateFamily(ctx, fam.ID, FamilyInput{IsActive: flag(false)}, "user-1")
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	stored, err := f.store.GetFamily(ctx, fam.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{g1.ID}, stored.AttributeGroups)
	assert.Equal(t, []string{a1.ID, a2.ID}, stored.Attributes)
}

func TestFamilyUnionsExplicitAttributes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a1 := f.attribute(t, "a1", false)
	a2 := f.attribute(t, "a2", false)
	g1 := f.group(t, "g1", a1.ID)

	fam := f.family(t, "fam", FamilyInput{
		AttributeGroups: strs(g1.ID),
		Attributes:      strs(a2.ID, a1.ID),
	})
	assert.Equal(t, []string{a1.ID, a2.ID}, fam.Family.Attributes)

	// Without groups, explicit attributes do not survive.
	updated, _, err := f.svc.UpdateFamily(ctx, fam.ID, FamilyInput{
		AttributeGroups: strs(),
		Attributes:      strs(a2.ID),
	}, "user-1")
	require.NoError(t, err)
	assert.Empty(t, updated.Family.Attributes)

	// An update that leaves attributeGroups out recomputes from the stored
	// groups.
	_, _, err = f.svc.UpdateFamily(ctx, fam.ID, FamilyInput{AttributeGroups: strs(g1.ID)}, "user-1")
	require.NoError(t, err)
	renamed, _, err := f.svc.UpdateFamily(ctx, fam.ID, FamilyInput{Name: text("Yeni")}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{a1.ID}, renamed.Family.Attributes)
	assert.Equal(t, "Yeni", DisplayName(renamed.Name))
}

func TestItemTypeKeepsAttributesWithoutGroups(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a1 := f.attribute(t, "a1", false)
	a2 := f.attribute(t, "a2", false)
	g1 := f.group(t, "g1", a1.ID)

	it := f.itemType(t, "product", ItemTypeInput{AttributeGroups: strs(g1.ID)})
	assert.Equal(t, []string{a1.ID}, it.ItemType.Attributes)

	updated, err := f.svc.UpdateItemType(ctx, it.ID, ItemTypeInput{AttributeGroups: strs()}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{a1.ID}, updated.ItemType.Attributes)
	assert.Empty(t, updated.ItemType.AttributeGroups)

	updated, err = f.svc.UpdateItemType(ctx, it.ID, ItemTypeInput{
		AttributeGroups: strs(g1.ID),
		Attributes:      strs(a2.ID),
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{a1.ID, a2.ID}, updated.ItemType.Attributes)

	// Group membership changes flow into item types that use the group.
	_, err = f.svc.UpdateAttributeGroup(ctx, g1.ID, AttributeGroupInput{Attributes: strs(a2.ID)}, "user-1")
	require.NoError(t, err)
	stored, err := f.store.GetItemType(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a2.ID}, stored.Attributes)
}

func TestClosureSkipsDeletedGroups(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a1 := f.attribute(t, "a1", false)
	a2 := f.attribute(t, "a2", false)
	g1 := f.group(t, "g1", a1.ID)
	g2 := f.group(t, "g2", a2.ID)
	fam := f.family(t, "fam", FamilyInput{AttributeGroups: strs(g1.ID, g2.ID)})

	require.NoError(t, f.svc.DeleteAttributeGroup(ctx, g2.ID, "user-1"))
	require.NoError(t, f.svc.RefreshFamilyClosure(ctx, fam.ID))

	stored, err := f.store.GetFamily(ctx, fam.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{g1.ID, g2.ID}, stored.AttributeGroups)
	assert.Equal(t, []string{a1.ID}, stored.Attributes)
}
