package catalog

import (
	"context"
	"strings"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/history"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

// FamilyFilter narrows ListFamilies.
type FamilyFilter struct {
	IsActive       *bool
	Parent         string
	Category       string
	ItemType       string
	AttributeGroup string
}

// CreateFamily creates a family, registers it with its parent and links
// its category both ways.
func (s *Service) CreateFamily(ctx context.Context, in FamilyInput, userID string) (*FamilyView, *SyncReport, error) {
	code := strings.TrimSpace(stringValue(in.Code))
	if err := required(code, "code"); err != nil {
		return nil, nil, err
	}
	if in.Name.IsEmpty() {
		return nil, nil, required("", "name")
	}
	if err := ensureUniqueCode(ctx, s.store.FindFamilyByCode, code, "", labelFamily); err != nil {
		return nil, nil, err
	}
	fam := &models.Family{
		Document:        models.Document{ID: models.GenerateID("family")},
		Code:            code,
		Parent:          stringValue(in.Parent),
		SubFamilies:     []string{},
		Category:        stringValue(in.Category),
		ItemType:        stringValue(in.ItemType),
		AttributeGroups: uniqueStrings(listValue(in.AttributeGroups)),
		IsActive:        boolValue(in.IsActive, true),
	}
	explicit := uniqueStrings(listValue(in.Attributes))
	if err := s.validateFamilyRefs(ctx, fam, explicit); err != nil {
		return nil, nil, err
	}
	attrs, err := s.familyClosure(ctx, fam.AttributeGroups, explicit)
	if err != nil {
		return nil, nil, err
	}
	fam.Attributes = attrs

	if fam.Name, err = s.loc.Assign(ctx, in.Name, "family.name", code, userID); err != nil {
		return nil, nil, err
	}
	if fam.Description, err = s.loc.Assign(ctx, in.Description, "family.description", code, userID); err != nil {
		return nil, nil, err
	}
	fam.Touch(userID, s.now())

	report := &SyncReport{}
	if fam.Category != "" {
		s.links.Lock()
		defer s.links.Unlock()
	}
	if err := s.store.SaveFamily(ctx, fam); err != nil {
		return nil, nil, errWrap("save family", err)
	}
	if fam.Parent != "" {
		s.attachSubFamily(ctx, fam.Parent, fam.ID)
	}
	if fam.Category != "" {
		report = s.syncCategoryOfFamily(ctx, fam.ID, "", fam.Category)
	}

	view, err := first(s.FamilyViews(ctx, []*models.Family{fam}))
	if err != nil {
		return nil, nil, err
	}
	s.mutated(models.EntityFamily, models.ActionCreate)
	s.history.Record(ctx, history.Entry{
		EntityID:   fam.ID,
		EntityType: models.EntityFamily,
		Action:     models.ActionCreate,
		AffectedEntities: append(
			affected(models.EntityCategory, fam.Category),
			affected(models.EntityFamily, fam.Parent)...,
		),
		NewData: view,
		UserID:  userID,
	})
	return view, report, nil
}

// GetFamily returns a populated family.
func (s *Service) GetFamily(ctx context.Context, id string) (*FamilyView, error) {
	fam, err := s.store.GetFamily(ctx, id)
	if err != nil {
		return nil, notFound(err, labelFamily, id)
	}
	return first(s.FamilyViews(ctx, []*models.Family{fam}))
}

// ListFamilies returns the families matching f.
func (s *Service) ListFamilies(ctx context.Context, f FamilyFilter) ([]*FamilyView, error) {
	filters := storage.Filters{}
	if f.IsActive != nil {
		filters["isActive"] = *f.IsActive
	}
	if f.Parent != "" {
		filters["parent"] = f.Parent
	}
	if f.Category != "" {
		filters["category"] = f.Category
	}
	if f.ItemType != "" {
		filters["itemType"] = f.ItemType
	}
	if f.AttributeGroup != "" {
		filters["attributeGroups"] = map[string]interface{}{
			"$elemMatch": map[string]interface{}{"$eq": f.AttributeGroup},
		}
	}
	fams, err := s.store.ListFamilies(ctx, filters)
	if err != nil {
		return nil, err
	}
	return s.FamilyViews(ctx, fams)
}

// FamiliesByCategory returns the families scoped to a category.
func (s *Service) FamiliesByCategory(ctx context.Context, categoryID string) ([]*FamilyView, error) {
	if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		return nil, notFound(err, labelCategory, categoryID)
	}
	return s.ListFamilies(ctx, FamilyFilter{Category: categoryID})
}

// UpdateFamily applies in to the family. Its attributes are recomputed from
// its attribute groups on every update and become empty when it has none.
func (s *Service) UpdateFamily(ctx context.Context, id string, in FamilyInput, userID string) (*FamilyView, *SyncReport, error) {
	if in.Category != nil {
		s.links.Lock()
		defer s.links.Unlock()
	}

	unlock := s.locks.Lock(id)
	fam, err := s.store.GetFamily(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, notFound(err, labelFamily, id)
	}
	if err := checkRev(in.Rev, fam.Rev); err != nil {
		unlock()
		return nil, nil, err
	}
	before := cloneFamily(fam)

	if err := s.applyFamilyInput(ctx, fam, in, userID); err != nil {
		unlock()
		return nil, nil, err
	}
	fam.Touch(userID, s.now())
	err = s.store.SaveFamily(ctx, fam)
	unlock()
	if err != nil {
		return nil, nil, errWrap("save family", err)
	}

	if before.Parent != fam.Parent {
		if before.Parent != "" {
			s.detachSubFamily(ctx, before.Parent, fam.ID)
		}
		if fam.Parent != "" {
			s.attachSubFamily(ctx, fam.Parent, fam.ID)
		}
	}
	report := &SyncReport{}
	if before.Category != fam.Category {
		report = s.syncCategoryOfFamily(ctx, fam.ID, before.Category, fam.Category)
	}

	views, err := s.FamilyViews(ctx, []*models.Family{before, fam})
	if err != nil {
		return nil, nil, err
	}
	s.mutated(models.EntityFamily, models.ActionUpdate)
	s.history.Record(ctx, history.Entry{
		EntityID:   fam.ID,
		EntityType: models.EntityFamily,
		Action:     models.ActionUpdate,
		AffectedEntities: append(
			affected(models.EntityCategory, before.Category, fam.Category),
			affected(models.EntityFamily, before.Parent, fam.Parent)...,
		),
		PreviousData: views[0],
		NewData:      views[1],
		UserID:       userID,
	})
	return views[1], report, nil
}

func (s *Service) applyFamilyInput(ctx context.Context, fam *models.Family, in FamilyInput, userID string) error {
	if in.Code != nil {
		code := strings.TrimSpace(*in.Code)
		if err := required(code, "code"); err != nil {
			return err
		}
		if err := ensureUniqueCode(ctx, s.store.FindFamilyByCode, code, fam.ID, labelFamily); err != nil {
			return err
		}
		fam.Code = code
	}
	if in.Parent != nil {
		fam.Parent = *in.Parent
	}
	if in.Category != nil {
		fam.Category = *in.Category
	}
	if in.ItemType != nil {
		fam.ItemType = *in.ItemType
	}
	if in.AttributeGroups != nil {
		fam.AttributeGroups = uniqueStrings(*in.AttributeGroups)
	}
	if in.IsActive != nil {
		fam.IsActive = *in.IsActive
	}
	explicit := uniqueStrings(listValue(in.Attributes))
	if err := s.validateFamilyRefs(ctx, fam, explicit); err != nil {
		return err
	}
	attrs, err := s.familyClosure(ctx, fam.AttributeGroups, explicit)
	if err != nil {
		return err
	}
	fam.Attributes = attrs

	if fam.Name, err = s.assignText(ctx, in.Name, fam.Name, "family.name", fam.Code, userID); err != nil {
		return err
	}
	if fam.Name == "" {
		return required("", "name")
	}
	fam.Description, err = s.assignText(ctx, in.Description, fam.Description, "family.description", fam.Code, userID)
	return err
}

// familyClosure is the attribute list a family stores: empty without
// groups, otherwise the group members followed by explicit extras.
func (s *Service) familyClosure(ctx context.Context, groups, explicit []string) ([]string, error) {
	if len(groups) == 0 {
		return []string{}, nil
	}
	return s.attributeClosure(ctx, groups, explicit)
}

func (s *Service) validateFamilyRefs(ctx context.Context, fam *models.Family, explicit []string) error {
	if err := ensureOne(ctx, s.store.GetCategory, fam.Category, labelCategory); err != nil {
		return err
	}
	if err := ensureOne(ctx, s.store.GetItemType, fam.ItemType, labelItemType); err != nil {
		return err
	}
	if err := ensureExist(ctx, s.store.GetAttributeGroups, fam.AttributeGroups, labelAttributeGroup); err != nil {
		return err
	}
	if err := ensureExist(ctx, s.store.GetAttributes, explicit, labelAttribute); err != nil {
		return err
	}
	return s.checkFamilyParent(ctx, fam.ID, fam.Parent)
}

func (s *Service) checkFamilyParent(ctx context.Context, id, parent string) error {
	for depth := 0; parent != "" && depth < maxTreeDepth; depth++ {
		if parent == id {
			return apperror.Validation("Aile kendisinin veya alt ailesinin altına taşınamaz")
		}
		p, err := s.store.GetFamily(ctx, parent)
		if err != nil {
			if depth == 0 {
				return ensureOne(ctx, s.store.GetFamily, parent, labelFamily)
			}
			return nil
		}
		parent = p.Parent
	}
	return nil
}

// attachSubFamily adds childID to the parent's subFamilies.
func (s *Service) attachSubFamily(ctx context.Context, parentID, childID string) {
	s.editSubFamilies(ctx, parentID, func(subs []string) []string {
		if contains(subs, childID) {
			return nil
		}
		return append(subs, childID)
	})
}

// detachSubFamily removes childID from the parent's subFamilies.
func (s *Service) detachSubFamily(ctx context.Context, parentID, childID string) {
	s.editSubFamilies(ctx, parentID, func(subs []string) []string {
		if !contains(subs, childID) {
			return nil
		}
		return remove(subs, childID)
	})
}

// editSubFamilies rewrites a parent's child list; edit returns nil when
// nothing changes. Failures are logged.
func (s *Service) editSubFamilies(ctx context.Context, parentID string, edit func([]string) []string) {
	err := retryOnConflict(func() error {
		unlock := s.locks.Lock(parentID)
		defer unlock()

		parent, err := s.store.GetFamily(ctx, parentID)
		if err != nil {
			return err
		}
		subs := edit(append([]string{}, parent.SubFamilies...))
		if subs == nil {
			return nil
		}
		parent.SubFamilies = subs
		parent.Touch("", s.now())
		return s.store.SaveFamily(ctx, parent)
	})
	if err != nil {
		s.warn(ctx, err, "subfamily list not updated", map[string]interface{}{"parentId": parentID})
	}
}

// DeleteFamily deletes a family and purges its history. Categories,
// items and child families keep their references.
func (s *Service) DeleteFamily(ctx context.Context, id, userID string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	fam, err := s.store.GetFamily(ctx, id)
	if err != nil {
		return notFound(err, labelFamily, id)
	}
	if err := s.store.Delete(ctx, fam.ID, fam.Rev); err != nil {
		return errWrap("delete family", err)
	}
	s.mutated(models.EntityFamily, models.ActionDelete)
	s.history.Purge(ctx, fam.ID)
	return nil
}

func cloneFamily(f *models.Family) *models.Family {
	cp := *f
	cp.SubFamilies = append([]string(nil), f.SubFamilies...)
	cp.AttributeGroups = append([]string(nil), f.AttributeGroups...)
	cp.Attributes = append([]string(nil), f.Attributes...)
	return &cp
}
