package catalog

import (
	"context"
	"strings"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/history"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

const maxTreeDepth = 1000

// CategoryFilter narrows ListCategories.
type CategoryFilter struct {
	IsActive       *bool
	Parent         string
	Family         string
	AttributeGroup string
}

// CreateCategory creates a category. A family given on create is linked
// both ways.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput, userID string) (*CategoryView, *SyncReport, error) {
	code := strings.TrimSpace(stringValue(in.Code))
	if err := required(code, "code"); err != nil {
		return nil, nil, err
	}
	if in.Name.IsEmpty() {
		return nil, nil, required("", "name")
	}
	if err := ensureUniqueCode(ctx, s.store.FindCategoryByCode, code, "", labelCategory); err != nil {
		return nil, nil, err
	}
	cat := &models.Category{
		Document:        models.Document{ID: models.GenerateID("category")},
		Code:            code,
		Parent:          stringValue(in.Parent),
		Family:          stringValue(in.Family),
		AttributeGroups: uniqueStrings(listValue(in.AttributeGroups)),
		Attributes:      uniqueStrings(listValue(in.Attributes)),
		IsActive:        boolValue(in.IsActive, true),
	}
	if err := s.validateCategoryRefs(ctx, cat); err != nil {
		return nil, nil, err
	}

	var err error
	if cat.Name, err = s.loc.Assign(ctx, in.Name, "category.name", code, userID); err != nil {
		return nil, nil, err
	}
	if cat.Description, err = s.loc.Assign(ctx, in.Description, "category.description", code, userID); err != nil {
		return nil, nil, err
	}
	cat.Touch(userID, s.now())

	report := &SyncReport{}
	if cat.Family != "" {
		s.links.Lock()
		defer s.links.Unlock()
	}
	if err := s.store.SaveCategory(ctx, cat); err != nil {
		return nil, nil, errWrap("save category", err)
	}
	if cat.Family != "" {
		report = s.syncFamilyOfCategory(ctx, cat.ID, "", cat.Family)
	}

	view, err := first(s.CategoryViews(ctx, []*models.Category{cat}))
	if err != nil {
		return nil, nil, err
	}
	s.mutated(models.EntityCategory, models.ActionCreate)
	s.history.Record(ctx, history.Entry{
		EntityID:         cat.ID,
		EntityType:       models.EntityCategory,
		Action:           models.ActionCreate,
		AffectedEntities: affected(models.EntityFamily, cat.Family),
		NewData:          view,
		UserID:           userID,
	})
	return view, report, nil
}

// GetCategory returns a populated category.
func (s *Service) GetCategory(ctx context.Context, id string) (*CategoryView, error) {
	cat, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, notFound(err, labelCategory, id)
	}
	return first(s.CategoryViews(ctx, []*models.Category{cat}))
}

// ListCategories returns the categories matching f.
func (s *Service) ListCategories(ctx context.Context, f CategoryFilter) ([]*CategoryView, error) {
	filters := storage.Filters{}
	if f.IsActive != nil {
		filters["isActive"] = *f.IsActive
	}
	if f.Parent != "" {
		filters["parent"] = f.Parent
	}
	if f.Family != "" {
		filters["family"] = f.Family
	}
	if f.AttributeGroup != "" {
		filters["attributeGroups"] = map[string]interface{}{
			"$elemMatch": map[string]interface{}{"$eq": f.AttributeGroup},
		}
	}
	cats, err := s.store.ListCategories(ctx, filters)
	if err != nil {
		return nil, err
	}
	return s.CategoryViews(ctx, cats)
}

// CategoriesByItemType returns the category of an item type followed by
// all of its descendants, breadth first.
func (s *Service) CategoriesByItemType(ctx context.Context, itemTypeID string) ([]*CategoryView, error) {
	it, err := s.store.GetItemType(ctx, itemTypeID)
	if err != nil {
		return nil, notFound(err, labelItemType, itemTypeID)
	}
	if it.Category == "" {
		return []*CategoryView{}, nil
	}
	root, err := s.store.GetCategory(ctx, it.Category)
	if err != nil {
		return nil, notFound(err, labelCategory, it.Category)
	}
	all, err := s.store.ListCategories(ctx, nil)
	if err != nil {
		return nil, err
	}

	children := make(map[string][]*models.Category)
	for _, c := range all {
		if c.Parent != "" {
			children[c.Parent] = append(children[c.Parent], c)
		}
	}
	subtree := []*models.Category{root}
	seen := map[string]bool{root.ID: true}
	for i := 0; i < len(subtree); i++ {
		for _, child := range children[subtree[i].ID] {
			if !seen[child.ID] {
				seen[child.ID] = true
				subtree = append(subtree, child)
			}
		}
	}
	return s.CategoryViews(ctx, subtree)
}

// UpdateCategory applies in to the category. When the family pointer
// changes, the old and new families are brought in line; the returned
// report lists sync steps that failed, which do not undo the update.
func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput, userID string) (*CategoryView, *SyncReport, error) {
	if in.Family != nil {
		s.links.Lock()
		defer s.links.Unlock()
	}

	unlock := s.locks.Lock(id)
	cat, err := s.store.GetCategory(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, notFound(err, labelCategory, id)
	}
	if err := checkRev(in.Rev, cat.Rev); err != nil {
		unlock()
		return nil, nil, err
	}
	before := cloneCategory(cat)

	if err := s.applyCategoryInput(ctx, cat, in, userID); err != nil {
		unlock()
		return nil, nil, err
	}
	cat.Touch(userID, s.now())
	err = s.store.SaveCategory(ctx, cat)
	unlock()
	if err != nil {
		return nil, nil, errWrap("save category", err)
	}

	report := &SyncReport{}
	if before.Family != cat.Family {
		report = s.syncFamilyOfCategory(ctx, cat.ID, before.Family, cat.Family)
	}

	views, err := s.CategoryViews(ctx, []*models.Category{before, cat})
	if err != nil {
		return nil, nil, err
	}
	s.mutated(models.EntityCategory, models.ActionUpdate)
	s.history.Record(ctx, history.Entry{
		EntityID:         cat.ID,
		EntityType:       models.EntityCategory,
		Action:           models.ActionUpdate,
		AffectedEntities: affected(models.EntityFamily, before.Family, cat.Family),
		PreviousData:     views[0],
		NewData:          views[1],
		UserID:           userID,
	})
	return views[1], report, nil
}

func (s *Service) applyCategoryInput(ctx context.Context, cat *models.Category, in CategoryInput, userID string) error {
	if in.Code != nil {
		code := strings.TrimSpace(*in.Code)
		if err := required(code, "code"); err != nil {
			return err
		}
		if err := ensureUniqueCode(ctx, s.store.FindCategoryByCode, code, cat.ID, labelCategory); err != nil {
			return err
		}
		cat.Code = code
	}
	if in.Parent != nil {
		cat.Parent = *in.Parent
	}
	if in.Family != nil {
		cat.Family = *in.Family
	}
	if in.AttributeGroups != nil {
		cat.AttributeGroups = uniqueStrings(*in.AttributeGroups)
	}
	if in.Attributes != nil {
		cat.Attributes = uniqueStrings(*in.Attributes)
	}
	if in.IsActive != nil {
		cat.IsActive = *in.IsActive
	}
	if err := s.validateCategoryRefs(ctx, cat); err != nil {
		return err
	}

	var err error
	if cat.Name, err = s.assignText(ctx, in.Name, cat.Name, "category.name", cat.Code, userID); err != nil {
		return err
	}
	if cat.Name == "" {
		return required("", "name")
	}
	cat.Description, err = s.assignText(ctx, in.Description, cat.Description, "category.description", cat.Code, userID)
	return err
}

func (s *Service) validateCategoryRefs(ctx context.Context, cat *models.Category) error {
	if err := ensureOne(ctx, s.store.GetFamily, cat.Family, labelFamily); err != nil {
		return err
	}
	if err := ensureExist(ctx, s.store.GetAttributeGroups, cat.AttributeGroups, labelAttributeGroup); err != nil {
		return err
	}
	if err := ensureExist(ctx, s.store.GetAttributes, cat.Attributes, labelAttribute); err != nil {
		return err
	}
	return s.checkCategoryParent(ctx, cat.ID, cat.Parent)
}

// checkCategoryParent rejects a parent that does not exist or that would
// make the category its own ancestor.
func (s *Service) checkCategoryParent(ctx context.Context, id, parent string) error {
	for depth := 0; parent != "" && depth < maxTreeDepth; depth++ {
		if parent == id {
			return apperror.Validation("Kategori kendisinin veya alt kategorisinin altına taşınamaz")
		}
		p, err := s.store.GetCategory(ctx, parent)
		if err != nil {
			if depth == 0 {
				return ensureOne(ctx, s.store.GetCategory, parent, labelCategory)
			}
			return nil
		}
		parent = p.Parent
	}
	return nil
}

// DeleteCategory deletes a category and purges its history. Families,
// items and child categories keep their references.
func (s *Service) DeleteCategory(ctx context.Context, id, userID string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	cat, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return notFound(err, labelCategory, id)
	}
	if err := s.store.Delete(ctx, cat.ID, cat.Rev); err != nil {
		return errWrap("delete category", err)
	}
	s.mutated(models.EntityCategory, models.ActionDelete)
	s.history.Purge(ctx, cat.ID)
	return nil
}

// RelinkCategory re-runs the family sync for a category as if its family
// pointer had just been set. It is used by integrity repair.
func (s *Service) RelinkCategory(ctx context.Context, id string) (*SyncReport, error) {
	s.links.Lock()
	defer s.links.Unlock()

	cat, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, notFound(err, labelCategory, id)
	}
	if cat.Family == "" {
		return &SyncReport{}, nil
	}
	return s.syncFamilyOfCategory(ctx, cat.ID, "", cat.Family), nil
}

func cloneCategory(c *models.Category) *models.Category {
	cp := *c
	cp.AttributeGroups = append([]string(nil), c.AttributeGroups...)
	cp.Attributes = append([]string(nil), c.Attributes...)
	return &cp
}
