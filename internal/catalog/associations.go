package catalog

import (
	"context"
	"strings"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/history"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

var cardinalities = map[string]bool{
	models.CardinalityOneToOne:   true,
	models.CardinalityOneToMany:  true,
	models.CardinalityManyToOne:  true,
	models.CardinalityManyToMany: true,
}

// AssociationFilter narrows ListAssociations.
type AssociationFilter struct {
	IsActive *bool
	ItemType string
}

// CreateAssociation creates an association between item types.
func (s *Service) CreateAssociation(ctx context.Context, in AssociationInput, userID string) (*AssociationView, error) {
	code := strings.TrimSpace(stringValue(in.Code))
	if err := required(code, "code"); err != nil {
		return nil, err
	}
	if in.Name.IsEmpty() {
		return nil, required("", "name")
	}
	if err := ensureUniqueCode(ctx, s.store.FindAssociationByCode, code, "", labelAssociation); err != nil {
		return nil, err
	}
	a := &models.Association{
		Document:          models.Document{ID: models.GenerateID("association")},
		Code:              code,
		SourceItemTypeIDs: uniqueStrings(listValue(in.SourceItemTypeIDs)),
		TargetItemTypeIDs: uniqueStrings(listValue(in.TargetItemTypeIDs)),
		Cardinality:       stringValue(in.Cardinality),
		IsRequired:        boolValue(in.IsRequired, false),
		UISettings:        in.UISettings,
		IsActive:          boolValue(in.IsActive, true),
	}
	if a.Cardinality == "" {
		a.Cardinality = models.CardinalityManyToMany
	}
	if err := s.validateAssociation(ctx, a); err != nil {
		return nil, err
	}

	var err error
	if a.Name, err = s.loc.Assign(ctx, in.Name, "association.name", code, userID); err != nil {
		return nil, err
	}
	if a.Description, err = s.loc.Assign(ctx, in.Description, "association.description", code, userID); err != nil {
		return nil, err
	}
	a.Touch(userID, s.now())
	if err := s.store.SaveAssociation(ctx, a); err != nil {
		return nil, errWrap("save association", err)
	}

	view, err := first(s.AssociationViews(ctx, []*models.Association{a}))
	if err != nil {
		return nil, err
	}
	s.mutated(models.EntityAssociation, models.ActionCreate)
	s.history.Record(ctx, history.Entry{
		EntityID:         a.ID,
		EntityType:       models.EntityAssociation,
		Action:           models.ActionCreate,
		AffectedEntities: affected(models.EntityItemType, append(a.SourceItemTypeIDs, a.TargetItemTypeIDs...)...),
		NewData:          view,
		UserID:           userID,
	})
	return view, nil
}

// GetAssociation returns a populated association.
func (s *Service) GetAssociation(ctx context.Context, id string) (*AssociationView, error) {
	a, err := s.store.GetAssociation(ctx, id)
	if err != nil {
		return nil, notFound(err, labelAssociation, id)
	}
	return first(s.AssociationViews(ctx, []*models.Association{a}))
}

// ListAssociations returns the associations matching f. An ItemType filter
// matches either side.
func (s *Service) ListAssociations(ctx context.Context, f AssociationFilter) ([]*AssociationView, error) {
	filters := storage.Filters{}
	if f.IsActive != nil {
		filters["isActive"] = *f.IsActive
	}
	if f.ItemType != "" {
		filters["$or"] = []interface{}{
			map[string]interface{}{"sourceItemTypeIds": map[string]interface{}{"$elemMatch": map[string]interface{}{"$eq": f.ItemType}}},
			map[string]interface{}{"targetItemTypeIds": map[string]interface{}{"$elemMatch": map[string]interface{}{"$eq": f.ItemType}}},
		}
	}
	assocs, err := s.store.ListAssociations(ctx, filters)
	if err != nil {
		return nil, err
	}
	return s.AssociationViews(ctx, assocs)
}

// UpdateAssociation applies in to the association.
func (s *Service) UpdateAssociation(ctx context.Context, id string, in AssociationInput, userID string) (*AssociationView, error) {
	unlock := s.locks.Lock(id)
	a, err := s.store.GetAssociation(ctx, id)
	if err != nil {
		unlock()
		return nil, notFound(err, labelAssociation, id)
	}
	if err := checkRev(in.Rev, a.Rev); err != nil {
		unlock()
		return nil, err
	}
	before := *a
	before.SourceItemTypeIDs = append([]string(nil), a.SourceItemTypeIDs...)
	before.TargetItemTypeIDs = append([]string(nil), a.TargetItemTypeIDs...)

	if err := s.applyAssociationInput(ctx, a, in, userID); err != nil {
		unlock()
		return nil, err
	}
	a.Touch(userID, s.now())
	err = s.store.SaveAssociation(ctx, a)
	unlock()
	if err != nil {
		return nil, errWrap("save association", err)
	}

	views, err := s.AssociationViews(ctx, []*models.Association{&before, a})
	if err != nil {
		return nil, err
	}
	s.mutated(models.EntityAssociation, models.ActionUpdate)
	s.history.Record(ctx, history.Entry{
		EntityID:   a.ID,
		EntityType: models.EntityAssociation,
		Action:     models.ActionUpdate,
		AffectedEntities: affected(models.EntityItemType, uniqueStrings(
			before.SourceItemTypeIDs, before.TargetItemTypeIDs,
			a.SourceItemTypeIDs, a.TargetItemTypeIDs,
		)...),
		PreviousData: views[0],
		NewData:      views[1],
		UserID:       userID,
	})
	return views[1], nil
}

func (s *Service) applyAssociationInput(ctx context.Context, a *models.Association, in AssociationInput, userID string) error {
	if in.Code != nil {
		code := strings.TrimSpace(*in.Code)
		if err := required(code, "code"); err != nil {
			return err
		}
		if err := ensureUniqueCode(ctx, s.store.FindAssociationByCode, code, a.ID, labelAssociation); err != nil {
			return err
		}
		a.Code = code
	}
	if in.SourceItemTypeIDs != nil {
		a.SourceItemTypeIDs = uniqueStrings(*in.SourceItemTypeIDs)
	}
	if in.TargetItemTypeIDs != nil {
		a.TargetItemTypeIDs = uniqueStrings(*in.TargetItemTypeIDs)
	}
	if in.Cardinality != nil {
		a.Cardinality = *in.Cardinality
	}
	if in.IsRequired != nil {
		a.IsRequired = *in.IsRequired
	}
	if in.UISettings != nil {
		a.UISettings = in.UISettings
	}
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
	if err := s.validateAssociation(ctx, a); err != nil {
		return err
	}

	var err error
	if a.Name, err = s.assignText(ctx, in.Name, a.Name, "association.name", a.Code, userID); err != nil {
		return err
	}
	if a.Name == "" {
		return required("", "name")
	}
	a.Description, err = s.assignText(ctx, in.Description, a.Description, "association.description", a.Code, userID)
	return err
}

func (s *Service) validateAssociation(ctx context.Context, a *models.Association) error {
	if !cardinalities[a.Cardinality] {
		return apperror.Validationf("Geçersiz kardinalite: %s", a.Cardinality).
			WithFields(map[string]string{"cardinality": "geçersiz"})
	}
	if len(a.SourceItemTypeIDs) == 0 || len(a.TargetItemTypeIDs) == 0 {
		return apperror.Validation("Kaynak ve hedef öğe tipleri zorunludur")
	}
	return ensureExist(ctx, s.store.GetItemTypes, uniqueStrings(a.SourceItemTypeIDs, a.TargetItemTypeIDs), labelItemType)
}

// DeleteAssociation deletes an association and purges its history. Item
// types listing it in associationIds keep the id.
func (s *Service) DeleteAssociation(ctx context.Context, id, userID string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	a, err := s.store.GetAssociation(ctx, id)
	if err != nil {
		return notFound(err, labelAssociation, id)
	}
	if err := s.store.Delete(ctx, a.ID, a.Rev); err != nil {
		return errWrap("delete association", err)
	}
	s.mutated(models.EntityAssociation, models.ActionDelete)
	s.history.Purge(ctx, a.ID)
	return nil
}
