package catalog

import (
	"context"
	"sort"
	"strings"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/history"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

// ItemFilter narrows ListItems.
type ItemFilter struct {
	IsActive *bool
	ItemType string
	Family   string
	Category string
}

// RequiredAttributes returns the attributes an item of itemTypeID in
// categoryID must carry: the required attributes of the item type followed
// by the required members of the category's attribute groups, without
// duplicates. An empty categoryID contributes nothing.
func (s *Service) RequiredAttributes(ctx context.Context, itemTypeID, categoryID string) ([]*models.Attribute, error) {
	it, err := s.store.GetItemType(ctx, itemTypeID)
	if err != nil {
		return nil, notFound(err, labelItemType, itemTypeID)
	}
	ids := append([]string(nil), it.Attributes...)

	if categoryID != "" {
		cat, err := s.store.GetCategory(ctx, categoryID)
		if err != nil {
			return nil, notFound(err, labelCategory, categoryID)
		}
		groups, err := s.store.GetAttributeGroups(ctx, cat.AttributeGroups)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			ids = append(ids, g.Attributes...)
		}
	}

	attrs, err := s.store.GetAttributes(ctx, uniqueStrings(ids))
	if err != nil {
		return nil, err
	}
	out := make([]*models.Attribute, 0, len(attrs))
	for _, a := range attrs {
		if a.IsRequired {
			out = append(out, a)
		}
	}
	return out, nil
}

// checkRequired fails with the names of every required attribute that has
// no value in values.
func (s *Service) checkRequired(ctx context.Context, itemTypeID, categoryID string, values map[string]interface{}) error {
	reqs, err := s.RequiredAttributes(ctx, itemTypeID, categoryID)
	if err != nil {
		return err
	}
	var missing []string
	for _, a := range reqs {
		if !hasValue(values, a.ID) {
			missing = append(missing, s.loc.Name(ctx, a.Name))
		}
	}
	if len(missing) > 0 {
		return apperror.MissingFields("Zorunlu öznitelikler eksik", missing)
	}
	return nil
}

func hasValue(values map[string]interface{}, id string) bool {
	v, ok := values[id]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString && s == "" {
		return false
	}
	return true
}

// CreateItem creates an item after checking its required attributes.
func (s *Service) CreateItem(ctx context.Context, in ItemInput, userID string) (*ItemView, error) {
	item := &models.Item{
		Document:   models.Document{ID: models.GenerateID("item")},
		ItemType:   strings.TrimSpace(stringValue(in.ItemType)),
		Family:     stringValue(in.Family),
		Category:   stringValue(in.Category),
		Attributes: in.Attributes,
		IsActive:   boolValue(in.IsActive, true),
	}
	if err := required(item.ItemType, "itemType"); err != nil {
		return nil, err
	}
	if item.Attributes == nil {
		item.Attributes = map[string]interface{}{}
	}
	if err := s.validateItem(ctx, item); err != nil {
		return nil, err
	}
	item.Touch(userID, s.now())
	if err := s.store.SaveItem(ctx, item); err != nil {
		return nil, errWrap("save item", err)
	}

	view, err := first(s.ItemViews(ctx, []*models.Item{item}))
	if err != nil {
		return nil, err
	}
	s.mutated(models.EntityItem, models.ActionCreate)
	s.history.Record(ctx, history.Entry{
		EntityID:         item.ID,
		EntityType:       models.EntityItem,
		EntityName:       itemName(view),
		Action:           models.ActionCreate,
		AffectedEntities: s.itemAffected(item),
		NewData:          view,
		UserID:           userID,
	})
	return view, nil
}

// GetItem returns a populated item.
func (s *Service) GetItem(ctx context.Context, id string) (*ItemView, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, notFound(err, labelItem, id)
	}
	return first(s.ItemViews(ctx, []*models.Item{item}))
}

// ListItems returns the items matching f.
func (s *Service) ListItems(ctx context.Context, f ItemFilter) ([]*ItemView, error) {
	filters := storage.Filters{}
	if f.IsActive != nil {
		filters["isActive"] = *f.IsActive
	}
	if f.ItemType != "" {
		filters["itemType"] = f.ItemType
	}
	if f.Family != "" {
		filters["family"] = f.Family
	}
	if f.Category != "" {
		filters["category"] = f.Category
	}
	items, err := s.store.ListItems(ctx, filters)
	if err != nil {
		return nil, err
	}
	return s.ItemViews(ctx, items)
}

// UpdateItem applies in to the item. Required attributes are checked
// against the merged result, so fields left out of in keep counting.
func (s *Service) UpdateItem(ctx context.Context, id string, in ItemInput, userID string) (*ItemView, error) {
	unlock := s.locks.Lock(id)
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		unlock()
		return nil, notFound(err, labelItem, id)
	}
	if err := checkRev(in.Rev, item.Rev); err != nil {
		unlock()
		return nil, err
	}
	before := *item
	before.Attributes = make(map[string]interface{}, len(item.Attributes))
	for k, v := range item.Attributes {
		before.Attributes[k] = v
	}

	if in.ItemType != nil {
		item.ItemType = strings.TrimSpace(*in.ItemType)
	}
	if in.Family != nil {
		item.Family = *in.Family
	}
	if in.Category != nil {
		item.Category = *in.Category
	}
	if in.Attributes != nil {
		item.Attributes = in.Attributes
	}
	if in.IsActive != nil {
		item.IsActive = *in.IsActive
	}
	if err := required(item.ItemType, "itemType"); err != nil {
		unlock()
		return nil, err
	}
	if err := s.validateItem(ctx, item); err != nil {
		unlock()
		return nil, err
	}
	item.Touch(userID, s.now())
	err = s.store.SaveItem(ctx, item)
	unlock()
	if err != nil {
		return nil, errWrap("save item", err)
	}

	views, err := s.ItemViews(ctx, []*models.Item{&before, item})
	if err != nil {
		return nil, err
	}
	s.mutated(models.EntityItem, models.ActionUpdate)
	s.history.Record(ctx, history.Entry{
		EntityID:         item.ID,
		EntityType:       models.EntityItem,
		EntityName:       itemName(views[1]),
		Action:           models.ActionUpdate,
		AffectedEntities: s.itemAffected(item),
		PreviousData:     views[0],
		NewData:          views[1],
		UserID:           userID,
	})
	return views[1], nil
}

func (s *Service) validateItem(ctx context.Context, item *models.Item) error {
	it, err := s.itemTypeOrNil(ctx, item.ItemType)
	if err != nil {
		return err
	}
	if it == nil {
		return apperror.Validationf("Geçersiz %s: %s", strings.ToLower(labelItemType), item.ItemType)
	}
	if err := ensureOne(ctx, s.store.GetFamily, item.Family, labelFamily); err != nil {
		return err
	}
	if err := ensureOne(ctx, s.store.GetCategory, item.Category, labelCategory); err != nil {
		return err
	}
	keys := make([]string, 0, len(item.Attributes))
	for k := range item.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if err := ensureExist(ctx, s.store.GetAttributes, keys, labelAttribute); err != nil {
		return err
	}
	return s.checkRequired(ctx, item.ItemType, item.Category, item.Attributes)
}

// DeleteItem deletes an item and purges its history.
func (s *Service) DeleteItem(ctx context.Context, id, userID string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return notFound(err, labelItem, id)
	}
	if err := s.store.Delete(ctx, item.ID, item.Rev); err != nil {
		return errWrap("delete item", err)
	}
	s.mutated(models.EntityItem, models.ActionDelete)
	s.history.Purge(ctx, item.ID)
	return nil
}

func (s *Service) itemAffected(item *models.Item) []models.AffectedEntity {
	out := affected(models.EntityItemType, item.ItemType)
	out = append(out, affected(models.EntityFamily, item.Family)...)
	return append(out, affected(models.EntityCategory, item.Category)...)
}

// itemName labels an item by its item type.
func itemName(v *ItemView) string {
	if v == nil || v.ItemType == nil || v.ItemType.Name == nil {
		return ""
	}
	return DisplayName(v.ItemType.Name)
}
