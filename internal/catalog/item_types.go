package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"

	"evalgo.org/mdm/internal/history"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

// ItemTypeFilter narrows ListItemTypes.
type ItemTypeFilter struct {
	IsActive       *bool
	Category       string
	AttributeGroup string
}

// CreateItemType creates an item type.
func (s *Service) CreateItemType(ctx context.Context, in ItemTypeInput, userID string) (*ItemTypeView, error) {
	code := strings.TrimSpace(stringValue(in.Code))
	if err := required(code, "code"); err != nil {
		return nil, err
	}
	if in.Name.IsEmpty() {
		return nil, required("", "name")
	}
	if err := ensureUniqueCode(ctx, s.store.FindItemTypeByCode, code, "", labelItemType); err != nil {
		return nil, err
	}
	it := &models.ItemType{
		Document:        models.Document{ID: models.GenerateID("itemType")},
		Code:            code,
		Category:        stringValue(in.Category),
		AttributeGroups: uniqueStrings(listValue(in.AttributeGroups)),
		Attributes:      uniqueStrings(listValue(in.Attributes)),
		AssociationIDs:  uniqueStrings(listValue(in.AssociationIDs)),
		IsActive:        boolValue(in.IsActive, true),
	}
	if in.Settings != nil {
		it.Settings = *in.Settings
	}
	if err := s.validateItemTypeRefs(ctx, it); err != nil {
		return nil, err
	}
	if len(it.AttributeGroups) > 0 {
		attrs, err := s.attributeClosure(ctx, it.AttributeGroups, it.Attributes)
		if err != nil {
			return nil, err
		}
		it.Attributes = attrs
	}

	var err error
	if it.Name, err = s.loc.Assign(ctx, in.Name, "itemType.name", code, userID); err != nil {
		return nil, err
	}
	if it.Description, err = s.loc.Assign(ctx, in.Description, "itemType.description", code, userID); err != nil {
		return nil, err
	}
	it.Touch(userID, s.now())
	if err := s.store.SaveItemType(ctx, it); err != nil {
		return nil, errWrap("save item type", err)
	}

	view, err := first(s.ItemTypeViews(ctx, []*models.ItemType{it}))
	if err != nil {
		return nil, err
	}
	s.mutated(models.EntityItemType, models.ActionCreate)
	s.history.Record(ctx, history.Entry{
		EntityID:         it.ID,
		EntityType:       models.EntityItemType,
		Action:           models.ActionCreate,
		AffectedEntities: affected(models.EntityCategory, it.Category),
		NewData:          view,
		UserID:           userID,
	})
	return view, nil
}

// GetItemType returns a populated item type.
func (s *Service) GetItemType(ctx context.Context, id string) (*ItemTypeView, error) {
	it, err := s.store.GetItemType(ctx, id)
	if err != nil {
		return nil, notFound(err, labelItemType, id)
	}
	return first(s.ItemTypeViews(ctx, []*models.ItemType{it}))
}

// GetItemTypeByCode returns the item type with the given code.
func (s *Service) GetItemTypeByCode(ctx context.Context, code string) (*ItemTypeView, error) {
	it, err := s.store.FindItemTypeByCode(ctx, code)
	if err != nil {
		return nil, notFound(err, labelItemType, code)
	}
	return first(s.ItemTypeViews(ctx, []*models.ItemType{it}))
}

// ListItemTypes returns the item types matching f.
func (s *Service) ListItemTypes(ctx context.Context, f ItemTypeFilter) ([]*ItemTypeView, error) {
	filters := storage.Filters{}
	if f.IsActive != nil {
		filters["isActive"] = *f.IsActive
	}
	if f.Category != "" {
		filters["category"] = f.Category
	}
	if f.AttributeGroup != "" {
		filters["attributeGroups"] = map[string]interface{}{
			"$elemMatch": map[string]interface{}{"$eq": f.AttributeGroup},
		}
	}
	types, err := s.store.ListItemTypes(ctx, filters)
	if err != nil {
		return nil, err
	}
	return s.ItemTypeViews(ctx, types)
}

// NavbarItemTypes returns the active item types shown in navigation,
// ordered by their navigation order and then by code.
func (s *Service) NavbarItemTypes(ctx context.Context) ([]*ItemTypeView, error) {
	types, err := s.store.ListItemTypes(ctx, storage.Filters{
		"isActive":                         true,
		"settings.navigation.showInNavbar": true,
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(types, func(i, j int) bool {
		a, b := types[i].Settings.Navigation.Order, types[j].Settings.Navigation.Order
		if a != b {
			return a < b
		}
		return types[i].Code < types[j].Code
	})
	return s.ItemTypeViews(ctx, types)
}

// UpdateItemType applies in to the item type. Attributes are recomputed
// only when a non-empty attributeGroups list is sent; otherwise the stored
// or sent attributes are kept as they are.
func (s *Service) UpdateItemType(ctx context.Context, id string, in ItemTypeInput, userID string) (*ItemTypeView, error) {
	unlock := s.locks.Lock(id)
	it, err := s.store.GetItemType(ctx, id)
	if err != nil {
		unlock()
		return nil, notFound(err, labelItemType, id)
	}
	if err := checkRev(in.Rev, it.Rev); err != nil {
		unlock()
		return nil, err
	}
	before := cloneItemType(it)

	if err := s.applyItemTypeInput(ctx, it, in, userID); err != nil {
		unlock()
		return nil, err
	}
	it.Touch(userID, s.now())
	err = s.store.SaveItemType(ctx, it)
	unlock()
	if err != nil {
		return nil, errWrap("save item type", err)
	}

	views, err := s.ItemTypeViews(ctx, []*models.ItemType{before, it})
	if err != nil {
		return nil, err
	}
	s.mutated(models.EntityItemType, models.ActionUpdate)
	s.history.Record(ctx, history.Entry{
		EntityID:         it.ID,
		EntityType:       models.EntityItemType,
		Action:           models.ActionUpdate,
		AffectedEntities: affected(models.EntityCategory, before.Category, it.Category),
		PreviousData:     views[0],
		NewData:          views[1],
		UserID:           userID,
	})
	return views[1], nil
}

func (s *Service) applyItemTypeInput(ctx context.Context, it *models.ItemType, in ItemTypeInput, userID string) error {
	if in.Code != nil {
		code := strings.TrimSpace(*in.Code)
		if err := required(code, "code"); err != nil {
			return err
		}
		if err := ensureUniqueCode(ctx, s.store.FindItemTypeByCode, code, it.ID, labelItemType); err != nil {
			return err
		}
		it.Code = code
	}
	if in.Category != nil {
		it.Category = *in.Category
	}
	if in.AttributeGroups != nil {
		it.AttributeGroups = uniqueStrings(*in.AttributeGroups)
	}
	if in.Attributes != nil {
		it.Attributes = uniqueStrings(*in.Attributes)
	}
	if in.AssociationIDs != nil {
		it.AssociationIDs = uniqueStrings(*in.AssociationIDs)
	}
	if in.Settings != nil {
		it.Settings = *in.Settings
	}
	if in.IsActive != nil {
		it.IsActive = *in.IsActive
	}
	if err := s.validateItemTypeRefs(ctx, it); err != nil {
		return err
	}
	if in.AttributeGroups != nil && len(it.AttributeGroups) > 0 {
		attrs, err := s.attributeClosure(ctx, it.AttributeGroups, listValue(in.Attributes))
		if err != nil {
			return err
		}
		it.Attributes = attrs
	}

	var err error
	if it.Name, err = s.assignText(ctx, in.Name, it.Name, "itemType.name", it.Code, userID); err != nil {
		return err
	}
	if it.Name == "" {
		return required("", "name")
	}
	it.Description, err = s.assignText(ctx, in.Description, it.Description, "itemType.description", it.Code, userID)
	return err
}

func (s *Service) validateItemTypeRefs(ctx context.Context, it *models.ItemType) error {
	if err := ensureOne(ctx, s.store.GetCategory, it.Category, labelCategory); err != nil {
		return err
	}
	if err := ensureExist(ctx, s.store.GetAttributeGroups, it.AttributeGroups, labelAttributeGroup); err != nil {
		return err
	}
	if err := ensureExist(ctx, s.store.GetAttributes, it.Attributes, labelAttribute); err != nil {
		return err
	}
	for _, id := range it.AssociationIDs {
		if err := ensureOne(ctx, s.store.GetAssociation, id, labelAssociation); err != nil {
			return err
		}
	}
	return nil
}

// DeleteItemType deletes an item type and purges its history. Items,
// families and associations keep their references.
func (s *Service) DeleteItemType(ctx context.Context, id, userID string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	it, err := s.store.GetItemType(ctx, id)
	if err != nil {
		return notFound(err, labelItemType, id)
	}
	if err := s.store.Delete(ctx, it.ID, it.Rev); err != nil {
		return errWrap("delete item type", err)
	}
	s.mutated(models.EntityItemType, models.ActionDelete)
	s.history.Purge(ctx, it.ID)
	return nil
}

// itemTypeOrNil reads an item type, treating a missing one as nil.
func (s *Service) itemTypeOrNil(ctx context.Context, id string) (*models.ItemType, error) {
	if id == "" {
		return nil, nil
	}
	it, err := s.store.GetItemType(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return it, err
}

func cloneItemType(it *models.ItemType) *models.ItemType {
	cp := *it
	cp.AttributeGroups = append([]string(nil), it.AttributeGroups...)
	cp.Attributes = append([]string(nil), it.Attributes...)
	cp.AssociationIDs = append([]string(nil), it.AssociationIDs...)
	return &cp
}
