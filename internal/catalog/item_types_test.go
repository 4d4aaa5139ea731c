package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/models"
)

func navbar(show bool, order int) *models.ItemTypeSettings {
	return &models.ItemTypeSettings{Navigation: models.NavigationSettings{ShowInNavbar: show, Order: order}}
}

func TestNavbarItemTypes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.itemType(t, "orders", ItemTypeInput{Settings: navbar(true, 2)})
	f.itemType(t, "products", ItemTypeInput{Settings: navbar(true, 1)})
	f.itemType(t, "hidden", ItemTypeInput{Settings: navbar(false, 0)})
	f.itemType(t, "inactive", ItemTypeInput{Settings: navbar(true, 0), IsActive: flag(false)})

	list, err := f.svc.NavbarItemTypes(ctx)
	require.NoError(t, err)
	codes := []string{}
	for _, it := range list {
		codes = append(codes, it.Code)
	}
	assert.Equal(t, []string{"products", "orders"}, codes)
}

func TestItemTypeByCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	it := f.itemType(t, "products", ItemTypeInput{})

	got, err := f.svc.GetItemTypeByCode(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, it.ID, got.ID)

	_, err = f.svc.GetItemTypeByCode(ctx, "nope")
	assert.Equal(t, 404, apperror.Status(err))

	_, err = f.svc.CreateItemType(ctx, ItemTypeInput{Code: str("products"), Name: text("again")}, "user-1")
	assert.Equal(t, 400, apperror.Status(err))
}

func TestItemTypeAssociationsResolveBothDirections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.itemType(t, "order", ItemTypeInput{})
	product := f.itemType(t, "product", ItemTypeInput{})

	assoc, err := f.svc.CreateAssociation(ctx, AssociationInput{
		Code:              str("order-lines"),
		Name:              text("Sipariş satırları"),
		SourceItemTypeIDs: strs(order.ID),
		TargetItemTypeIDs: strs(product.ID),
		Cardinality:       str(models.CardinalityOneToMany),
	}, "user-1")
	require.NoError(t, err)
	require.Len(t, assoc.SourceItemTypes, 1)
	assert.Equal(t, "order", assoc.SourceItemTypes[0].Code)

	got, err := f.svc.GetItemType(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Associations.Outgoing, 1)
	assert.Empty(t, got.Associations.Incoming)
	assert.Equal(t, assoc.ID, got.Associations.Outgoing[0].ID)

	got, err = f.svc.GetItemType(ctx, product.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Associations.Outgoing)
	require.Len(t, got.Associations.Incoming, 1)
	assert.Equal(t, "order", got.Associations.Incoming[0].SourceItemTypes[0].Code)

	list, err := f.svc.ListAssociations(ctx, AssociationFilter{ItemType: product.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	updated, err := f.svc.UpdateItemType(ctx, order.ID, ItemTypeInput{AssociationIDs: strs(assoc.ID)}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{assoc.ID}, updated.AssociationIDs)

	_, err = f.svc.UpdateItemType(ctx, order.ID, ItemTypeInput{AssociationIDs: strs("association:missing")}, "user-1")
	assert.Equal(t, 400, apperror.Status(err))
}

func TestAssociationValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	it := f.itemType(t, "product", ItemTypeInput{})

	_, err := f.svc.CreateAssociation(ctx, AssociationInput{
		Code:              str("bad"),
		Name:              text("Kötü"),
		SourceItemTypeIDs: strs(it.ID),
		TargetItemTypeIDs: strs(it.ID),
		Cardinality:       str("some-to-some"),
	}, "user-1")
	assert.Equal(t, 400, apperror.Status(err))

	_, err = f.svc.CreateAssociation(ctx, AssociationInput{
		Code:              str("dangling"),
		Name:              text("Eksik"),
		SourceItemTypeIDs: strs(it.ID),
		TargetItemTypeIDs: strs("itemType:missing"),
	}, "user-1")
	assert.Equal(t, 400, apperror.Status(err))

	self, err := f.svc.CreateAssociation(ctx, AssociationInput{
		Code:              str("related"),
		Name:              text("İlgili"),
		SourceItemTypeIDs: strs(it.ID),
		TargetItemTypeIDs: strs(it.ID),
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.CardinalityManyToMany, self.Cardinality)

	updated, err := f.svc.UpdateAssociation(ctx, self.ID, AssociationInput{IsRequired: flag(true)}, "user-1")
	require.NoError(t, err)
	assert.True(t, updated.IsRequired)

	require.NoError(t, f.svc.DeleteAssociation(ctx, self.ID, "user-1"))
	_, err = f.svc.GetAssociation(ctx, self.ID)
	assert.Equal(t, 404, apperror.Status(err))
}

func TestCategoriesByItemType(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	root := f.category(t, "root", CategoryInput{})
	child := f.category(t, "child", CategoryInput{Parent: str(root.ID)})
	grandchild := f.category(t, "grandchild", CategoryInput{Parent: str(child.ID)})
	f.category(t, "unrelated", CategoryInput{})
	it := f.itemType(t, "product", ItemTypeInput{Category: str(root.ID)})

	list, err := f.svc.CategoriesByItemType(ctx, it.ID)
	require.NoError(t, err)
	ids := []string{}
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{root.ID, child.ID, grandchild.ID}, ids)
	require.NotNil(t, list[1].Parent)
	assert.Equal(t, "root", list[1].Parent.Code)
}

func TestCategoryParentCycleRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	root := f.category(t, "root", CategoryInput{})
	child := f.category(t, "child", CategoryInput{Parent: str(root.ID)})

	_, _, err := f.svc.UpdateCategory(ctx, root.ID, CategoryInput{Parent: str(child.ID)}, "user-1")
	assert.Equal(t, 400, apperror.Status(err))

	_, _, err = f.svc.UpdateCategory(ctx, root.ID, CategoryInput{Parent: str(root.ID)}, "user-1")
	assert.Equal(t, 400, apperror.Status(err))

	_, _, err = f.svc.UpdateCategory(ctx, root.ID, CategoryInput{Parent: str("category:missing")}, "user-1")
	assert.Equal(t, 400, apperror.Status(err))
}

func TestFamilyTreeMaintainsSubFamilies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.family(t, "a", FamilyInput{})
	b := f.family(t, "b", FamilyInput{})
	child := f.family(t, "child", FamilyInput{Parent: str(a.ID)})

	stored, err := f.store.GetFamily(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{child.ID}, stored.SubFamilies)

	_, _, err = f.svc.UpdateFamily(ctx, child.ID, FamilyInput{Parent: str(b.ID)}, "user-1")
	require.NoError(t, err)

	stored, err = f.store.GetFamily(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.SubFamilies)

	view, err := f.svc.GetFamily(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, view.SubFamilies, 1)
	assert.Equal(t, "child", view.SubFamilies[0].Code)

	_, _, err = f.svc.UpdateFamily(ctx, b.ID, FamilyInput{Parent: str(child.ID)}, "user-1")
	assert.Equal(t, 400, apperror.Status(err))
}

func TestFamiliesByCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cat := f.category(t, "cat", CategoryInput{})
	fam := f.family(t, "fam", FamilyInput{Category: str(cat.ID)})
	f.family(t, "other", FamilyInput{})

	list, err := f.svc.FamiliesByCategory(ctx, cat.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fam.ID, list[0].ID)

	_, err = f.svc.FamiliesByCategory(ctx, "category:missing")
	assert.Equal(t, 404, apperror.Status(err))
}
