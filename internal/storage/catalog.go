package storage

import (
	"context"

	"evalgo.org/mdm/models"
)

// ===============================================================
// Attributes
// ===============================================================

// SaveAttribute saves an attribute at its current revision.
func (s *Storage) SaveAttribute(ctx context.Context, a *models.Attribute) error {
	a.Document.Type = models.TypeAttribute
	return s.Save(ctx, a)
}

// GetAttribute retrieves an attribute by ID.
func (s *Storage) GetAttribute(ctx context.Context, id string) (*models.Attribute, error) {
	return getTyped[models.Attribute](ctx, s, id, models.TypeAttribute)
}

// GetAttributes retrieves the attributes with the given IDs, skipping missing ones.
func (s *Storage) GetAttributes(ctx context.Context, ids []string) ([]*models.Attribute, error) {
	return getManyTyped[models.Attribute](ctx, s, models.TypeAttribute, ids)
}

// ListAttributes retrieves all attributes matching the given filters.
func (s *Storage) ListAttributes(ctx context.Context, filters Filters) ([]*models.Attribute, error) {
	return listTyped[models.Attribute](ctx, s, models.TypeAttribute, filters)
}

// FindAttributeByCode looks an attribute up by its unique code.
func (s *Storage) FindAttributeByCode(ctx context.Context, code string) (*models.Attribute, error) {
	return findOneTyped[models.Attribute](ctx, s, models.TypeAttribute, Filters{"code": code})
}

// ===============================================================
// Attribute groups
// ===============================================================

// SaveAttributeGroup saves an attribute group at its current revision.
func (s *Storage) SaveAttributeGroup(ctx context.Context, g *models.AttributeGroup) error {
	g.Type = models.TypeAttributeGroup
	return s.Save(ctx, g)
}

// GetAttributeGroup retrieves an attribute group by ID.
func (s *Storage) GetAttributeGroup(ctx context.Context, id string) (*models.AttributeGroup, error) {
	return getTyped[models.AttributeGroup](ctx, s, id, models.TypeAttributeGroup)
}

// GetAttributeGroups retrieves the groups with the given IDs, skipping missing ones.
func (s *Storage) GetAttributeGroups(ctx context.Context, ids []string) ([]*models.AttributeGroup, error) {
	return getManyTyped[models.AttributeGroup](ctx, s, models.TypeAttributeGroup, ids)
}

// ListAttributeGroups retrieves all attribute groups matching the given filters.
func (s *Storage) ListAttributeGroups(ctx context.Context, filters Filters) ([]*models.AttributeGroup, error) {
	return listTyped[models.AttributeGroup](ctx, s, models.TypeAttributeGroup, filters)
}

// GroupsContainingAttribute returns the groups whose membership lists attributeID.
func (s *Storage) GroupsContainingAttribute(ctx context.Context, attributeID string) ([]*models.AttributeGroup, error) {
	return s.ListAttributeGroups(ctx, Filters{
		"attributes": map[string]interface{}{
			"$elemMatch": map[string]interface{}{"$eq": attributeID},
		},
	})
}

// FindAttributeGroupByCode looks a group up by its unique code.
func (s *Storage) FindAttributeGroupByCode(ctx context.Context, code string) (*models.AttributeGroup, error) {
	return findOneTyped[models.AttributeGroup](ctx, s, models.TypeAttributeGroup, Filters{"code": code})
}

// ===============================================================
// Categories
// ===============================================================

// SaveCategory saves a category at its current revision.
func (s *Storage) SaveCategory(ctx context.Context, c *models.Category) error {
	c.Type = models.TypeCategory
	return s.Save(ctx, c)
}

// GetCategory retrieves a category by ID.
func (s *Storage) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	return getTyped[models.Category](ctx, s, id, models.TypeCategory)
}

// GetCategories retrieves the categories with the given IDs.
func (s *Storage) GetCategories(ctx context.Context, ids []string) ([]*models.Category, error) {
	return getManyTyped[models.Category](ctx, s, models.TypeCategory, ids)
}

// ListCategories retrieves all categories matching the given filters.
func (s *Storage) ListCategories(ctx context.Context, filters Filters) ([]*models.Category, error) {
	return listTyped[models.Category](ctx, s, models.TypeCategory, filters)
}

// FindCategoryByCode looks a category up by its unique code.
func (s *Storage) FindCategoryByCode(ctx context.Context, code string) (*models.Category, error) {
	return findOneTyped[models.Category](ctx, s, models.TypeCategory, Filters{"code": code})
}

// ===============================================================
// Families
// ===============================================================

// SaveFamily saves a family at its current revision.
func (s *Storage) SaveFamily(ctx context.Context, f *models.Family) error {
	f.Type = models.TypeFamily
	return s.Save(ctx, f)
}

// GetFamily retrieves a family by ID.
func (s *Storage) GetFamily(ctx context.Context, id string) (*models.Family, error) {
	return getTyped[models.Family](ctx, s, id, models.TypeFamily)
}

// GetFamilies retrieves the families with the given IDs.
func (s *Storage) GetFamilies(ctx context.Context, ids []string) ([]*models.Family, error) {
	return getManyTyped[models.Family](ctx, s, models.TypeFamily, ids)
}

// ListFamilies retrieves all families matching the given filters.
func (s *Storage) ListFamilies(ctx context.Context, filters Filters) ([]*models.Family, error) {
	return listTyped[models.Family](ctx, s, models.TypeFamily, filters)
}

// FamiliesReferencingGroup returns the families listing groupID in attributeGroups.
func (s *Storage) FamiliesReferencingGroup(ctx context.Context, groupID string) ([]*models.Family, error) {
	return s.ListFamilies(ctx, Filters{
		"attributeGroups": map[string]interface{}{
			"$elemMatch": map[string]interface{}{"$eq": groupID},
		},
	})
}

// FindFamilyByCode looks a family up by its unique code.
func (s *Storage) FindFamilyByCode(ctx context.Context, code string) (*models.Family, error) {
	return findOneTyped[models.Family](ctx, s, models.TypeFamily, Filters{"code": code})
}

// ===============================================================
// Item types
// ===============================================================

// SaveItemType saves an item type at its current revision.
func (s *Storage) SaveItemType(ctx context.Context, it *models.ItemType) error {
	it.Type = models.TypeItemType
	return s.Save(ctx, it)
}

// GetItemType retrieves an item type by ID.
func (s *Storage) GetItemType(ctx context.Context, id string) (*models.ItemType, error) {
	return getTyped[models.ItemType](ctx, s, id, models.TypeItemType)
}

// GetItemTypes retrieves the item types with the given IDs.
func (s *Storage) GetItemTypes(ctx context.Context, ids []string) ([]*models.ItemType, error) {
	return getManyTyped[models.ItemType](ctx, s, models.TypeItemType, ids)
}

// ListItemTypes retrieves all item types matching the given filters.
func (s *Storage) ListItemTypes(ctx context.Context, filters Filters) ([]*models.ItemType, error) {
	return listTyped[models.ItemType](ctx, s, models.TypeItemType, filters)
}

// ItemTypesReferencingGroup returns the item types listing groupID in attributeGroups.
func (s *Storage) ItemTypesReferencingGroup(ctx context.Context, groupID string) ([]*models.ItemType, error) {
	return s.ListItemTypes(ctx, Filters{
		"attributeGroups": map[string]interface{}{
			"$elemMatch": map[string]interface{}{"$eq": groupID},
		},
	})
}

// FindItemTypeByCode looks an item type up by its unique code.
func (s *Storage) FindItemTypeByCode(ctx context.Context, code string) (*models.ItemType, error) {
	return findOneTyped[models.ItemType](ctx, s, models.TypeItemType, Filters{"code": code})
}

// ===============================================================
// Associations
// ===============================================================

// SaveAssociation saves an association at its current revision.
func (s *Storage) SaveAssociation(ctx context.Context, a *models.Association) error {
	a.Type = models.TypeAssociation
	return s.Save(ctx, a)
}

// GetAssociation retrieves an association by ID.
func (s *Storage) GetAssociation(ctx context.Context, id string) (*models.Association, error) {
	return getTyped[models.Association](ctx, s, id, models.TypeAssociation)
}

// ListAssociations retrieves all associations matching the given filters.
func (s *Storage) ListAssociations(ctx context.Context, filters Filters) ([]*models.Association, error) {
	return listTyped[models.Association](ctx, s, models.TypeAssociation, filters)
}

// AssociationsFrom returns the associations whose sources include itemTypeID.
func (s *Storage) AssociationsFrom(ctx context.Context, itemTypeID string) ([]*models.Association, error) {
	return s.ListAssociations(ctx, Filters{
		"sourceItemTypeIds": map[string]interface{}{
			"$elemMatch": map[string]interface{}{"$eq": itemTypeID},
		},
	})
}

// AssociationsTo returns the associations whose targets include itemTypeID.
func (s *Storage) AssociationsTo(ctx context.Context, itemTypeID string) ([]*models.Association, error) {
	return s.ListAssociations(ctx, Filters{
		"targetItemTypeIds": map[string]interface{}{
			"$elemMatch": map[string]interface{}{"$eq": itemTypeID},
		},
	})
}

// FindAssociationByCode looks an association up by its unique code.
func (s *Storage) FindAssociationByCode(ctx context.Context, code string) (*models.Association, error) {
	return findOneTyped[models.Association](ctx, s, models.TypeAssociation, Filters{"code": code})
}

// ===============================================================
// Items
// ===============================================================

// SaveItem saves an item at its current revision.
func (s *Storage) SaveItem(ctx context.Context, it *models.Item) error {
	it.Type = models.TypeItem
	return s.Save(ctx, it)
}

// GetItem retrieves an item by ID.
func (s *Storage) GetItem(ctx context.Context, id string) (*models.Item, error) {
	return getTyped[models.Item](ctx, s, id, models.TypeItem)
}

// ListItems retrieves all items matching the given filters.
func (s *Storage) ListItems(ctx context.Context, filters Filters) ([]*models.Item, error) {
	return listTyped[models.Item](ctx, s, models.TypeItem, filters)
}
