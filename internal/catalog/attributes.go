package catalog

import (
	"context"
	"strings"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/history"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

// membershipRelation tags history rows of attribute group membership changes.
const membershipRelation = "attributeGroupMembership"

// AttributeFilter narrows ListAttributes.
type AttributeFilter struct {
	IsActive       *bool
	Type           models.AttributeType
	AttributeGroup string
}

// CreateAttribute creates an attribute. When attributeGroup is given the
// attribute also joins that group.
func (s *Service) CreateAttribute(ctx context.Context, in AttributeInput, userID string) (*AttributeView, error) {
	code := strings.TrimSpace(stringValue(in.Code))
	if err := required(code, "code"); err != nil {
		return nil, err
	}
	if in.Name.IsEmpty() {
		return nil, required("", "name")
	}
	if in.Type == nil || !in.Type.Valid() {
		return nil, apperror.Validation("Geçerli bir öznitelik tipi seçilmelidir").
			WithFields(map[string]string{"type": "geçersiz"})
	}
	if err := ensureUniqueCode(ctx, s.store.FindAttributeByCode, code, "", labelAttribute); err != nil {
		return nil, err
	}
	groupID := stringValue(in.AttributeGroup)
	if err := ensureOne(ctx, s.store.GetAttributeGroup, groupID, labelAttributeGroup); err != nil {
		return nil, err
	}

	attr := &models.Attribute{
		Document:       models.Document{ID: models.GenerateID("attribute")},
		Code:           code,
		ValueType:      *in.Type,
		IsRequired:     boolValue(in.IsRequired, false),
		Options:        []string{},
		AttributeGroup: groupID,
		Validations:    NormalizeValidations(*in.Type, in.Validations),
		IsActive:       boolValue(in.IsActive, true),
	}
	if in.Options != nil {
		attr.Options = uniqueStrings(*in.Options)
	}

	var err error
	if attr.Name, err = s.loc.Assign(ctx, in.Name, "attribute.name", code, userID); err != nil {
		return nil, err
	}
	if attr.Description, err = s.loc.Assign(ctx, in.Description, "attribute.description", code, userID); err != nil {
		return nil, err
	}
	attr.Touch(userID, s.now())
	if err := s.store.SaveAttribute(ctx, attr); err != nil {
		return nil, errWrap("save attribute", err)
	}

	view, err := first(s.AttributeViews(ctx, []*models.Attribute{attr}))
	if err != nil {
		return nil, err
	}
	s.mutated(models.EntityAttribute, models.ActionCreate)
	s.history.Record(ctx, history.Entry{
		EntityID:   attr.ID,
		EntityType: models.EntityAttribute,
		Action:     models.ActionCreate,
		NewData:    view,
		UserID:     userID,
	})

	if groupID != "" {
		changed, err := s.addToGroup(ctx, attr, groupID, userID)
		if err != nil {
			s.warn(ctx, err, "attribute group membership not recorded", map[string]interface{}{
				"attributeId": attr.ID, "groupId": groupID,
			})
		} else if changed {
			s.refreshClosuresForGroup(ctx, groupID)
		}
	}
	return view, nil
}

// GetAttribute returns a populated attribute.
func (s *Service) GetAttribute(ctx context.Context, id string) (*AttributeView, error) {
	attr, err := s.store.GetAttribute(ctx, id)
	if err != nil {
		return nil, notFound(err, labelAttribute, id)
	}
	return first(s.AttributeViews(ctx, []*models.Attribute{attr}))
}

// ListAttributes returns the attributes matching f.
func (s *Service) ListAttributes(ctx context.Context, f AttributeFilter) ([]*AttributeView, error) {
	filters := storage.Filters{}
	if f.IsActive != nil {
		filters["isActive"] = *f.IsActive
	}
	if f.Type != "" {
		filters["type"] = string(f.Type)
	}
	if f.AttributeGroup != "" {
		group, err := s.store.GetAttributeGroup(ctx, f.AttributeGroup)
		if err != nil {
			return nil, notFound(err, labelAttributeGroup, f.AttributeGroup)
		}
		filters["_id"] = map[string]interface{}{"$in": uniqueStrings(group.Attributes)}
	}
	attrs, err := s.store.ListAttributes(ctx, filters)
	if err != nil {
		return nil, err
	}
	return s.AttributeViews(ctx, attrs)
}

// UpdateAttribute applies in to the attribute. Validations are normalized
// against the resulting type whenever the type or the rules change.
func (s *Service) UpdateAttribute(ctx context.Context, id string, in AttributeInput, userID string) (*AttributeView, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	attr, err := s.store.GetAttribute(ctx, id)
	if err != nil {
		return nil, notFound(err, labelAttribute, id)
	}
	if err := checkRev(in.Rev, attr.Rev); err != nil {
		return nil, err
	}
	previous, err := first(s.AttributeViews(ctx, []*models.Attribute{cloneAttribute(attr)}))
	if err != nil {
		return nil, err
	}

	if in.Code != nil {
		code := strings.TrimSpace(*in.Code)
		if err := required(code, "code"); err != nil {
			return nil, err
		}
		if err := ensureUniqueCode(ctx, s.store.FindAttributeByCode, code, attr.ID, labelAttribute); err != nil {
			return nil, err
		}
		attr.Code = code
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return nil, apperror.Validation("Geçerli bir öznitelik tipi seçilmelidir")
		}
		attr.ValueType = *in.Type
	}
	if in.Validations != nil {
		attr.Validations = NormalizeValidations(attr.ValueType, in.Validations)
	} else if in.Type != nil {
		attr.Validations = NormalizeValidations(attr.ValueType, attr.Validations)
	}
	if in.IsRequired != nil {
		attr.IsRequired = *in.IsRequired
	}
	if in.Options != nil {
		attr.Options = uniqueStrings(*in.Options)
	}
	if in.AttributeGroup != nil {
		if err := ensureOne(ctx, s.store.GetAttributeGroup, *in.AttributeGroup, labelAttributeGroup); err != nil {
			return nil, err
		}
		attr.AttributeGroup = *in.AttributeGroup
	}
	if in.IsActive != nil {
		attr.IsActive = *in.IsActive
	}
	if attr.Name, err = s.assignText(ctx, in.Name, attr.Name, "attribute.name", attr.Code, userID); err != nil {
		return nil, err
	}
	if attr.Name == "" {
		return nil, required("", "name")
	}
	if attr.Description, err = s.assignText(ctx, in.Description, attr.Description, "attribute.description", attr.Code, userID); err != nil {
		return nil, err
	}

	attr.Touch(userID, s.now())
	if err := s.store.SaveAttribute(ctx, attr); err != nil {
		return nil, errWrap("save attribute", err)
	}

	view, err := first(s.AttributeViews(ctx, []*models.Attribute{attr}))
	if err != nil {
		return nil, err
	}
	s.mutated(models.EntityAttribute, models.ActionUpdate)
	s.history.Record(ctx, history.Entry{
		EntityID:     attr.ID,
		EntityType:   models.EntityAttribute,
		Action:       models.ActionUpdate,
		PreviousData: previous,
		NewData:      view,
		UserID:       userID,
	})
	return view, nil
}

// DeleteAttribute deletes an attribute and purges its history. References
// held by groups, categories, families and item types are left in place.
func (s *Service) DeleteAttribute(ctx context.Context, id, userID string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	attr, err := s.store.GetAttribute(ctx, id)
	if err != nil {
		return notFound(err, labelAttribute, id)
	}
	if err := s.store.Delete(ctx, attr.ID, attr.Rev); err != nil {
		return errWrap("delete attribute", err)
	}
	s.mutated(models.EntityAttribute, models.ActionDelete)
	s.history.Purge(ctx, attr.ID)
	return nil
}

// GetAttributeGroupsOf returns the groups the attribute belongs to.
func (s *Service) GetAttributeGroupsOf(ctx context.Context, attributeID string) ([]*AttributeGroupView, error) {
	if _, err := s.store.GetAttribute(ctx, attributeID); err != nil {
		return nil, notFound(err, labelAttribute, attributeID)
	}
	groups, err := s.store.GroupsContainingAttribute(ctx, attributeID)
	if err != nil {
		return nil, err
	}
	return s.AttributeGroupViews(ctx, groups)
}

// SetAttributeGroups makes groupIDs the exact set of groups holding the
// attribute. Every membership added or removed is recorded on both sides.
func (s *Service) SetAttributeGroups(ctx context.Context, attributeID string, groupIDs []string, userID string) ([]*AttributeGroupView, error) {
	groupIDs = uniqueStrings(groupIDs)
	if err := ensureExist(ctx, s.store.GetAttributeGroups, groupIDs, labelAttributeGroup); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(attributeID)
	attr, err := s.store.GetAttribute(ctx, attributeID)
	unlock()
	if err != nil {
		return nil, notFound(err, labelAttribute, attributeID)
	}

	current, err := s.store.GroupsContainingAttribute(ctx, attributeID)
	if err != nil {
		return nil, err
	}
	currentIDs := make([]string, 0, len(current))
	for _, g := range current {
		currentIDs = append(currentIDs, g.ID)
	}

	var touched []string
	for _, gid := range difference(groupIDs, currentIDs) {
		if _, err := s.addToGroup(ctx, attr, gid, userID); err != nil {
			return nil, err
		}
		touched = append(touched, gid)
	}
	for _, gid := range difference(currentIDs, groupIDs) {
		if _, err := s.removeFromGroup(ctx, attr, gid, userID); err != nil {
			return nil, err
		}
		touched = append(touched, gid)
	}

	primary := ""
	if len(groupIDs) > 0 {
		primary = groupIDs[0]
	}
	if attr.AttributeGroup != primary {
		err := retryOnConflict(func() error {
			unlock := s.locks.Lock(attributeID)
			defer unlock()
			fresh, err := s.store.GetAttribute(ctx, attributeID)
			if err != nil {
				return err
			}
			fresh.AttributeGroup = primary
			fresh.Touch(userID, s.now())
			return s.store.SaveAttribute(ctx, fresh)
		})
		if err != nil {
			s.warn(ctx, err, "legacy attribute group pointer not updated", map[string]interface{}{"attributeId": attributeID})
		}
	}

	for _, gid := range touched {
		s.refreshClosuresForGroup(ctx, gid)
	}

	groups, err := s.store.GetAttributeGroups(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	return s.AttributeGroupViews(ctx, groups)
}

// addToGroup appends the attribute to the group's membership. It reports
// whether the group changed.
func (s *Service) addToGroup(ctx context.Context, attr *models.Attribute, groupID, userID string) (bool, error) {
	return s.editMembership(ctx, attr, groupID, userID, true)
}

func (s *Service) removeFromGroup(ctx context.Context, attr *models.Attribute, groupID, userID string) (bool, error) {
	return s.editMembership(ctx, attr, groupID, userID, false)
}

func (s *Service) editMembership(ctx context.Context, attr *models.Attribute, groupID, userID string, add bool) (bool, error) {
	var group *models.AttributeGroup
	changed := false
	err := retryOnConflict(func() error {
		unlock := s.locks.Lock(groupID)
		defer unlock()

		g, err := s.store.GetAttributeGroup(ctx, groupID)
		if err != nil {
			return notFound(err, labelAttributeGroup, groupID)
		}
		group = g
		has := contains(g.Attributes, attr.ID)
		switch {
		case add && !has:
			g.Attributes = append(g.Attributes, attr.ID)
		case !add && has:
			g.Attributes = remove(g.Attributes, attr.ID)
		default:
			changed = false
			return nil
		}
		g.Touch(userID, s.now())
		if err := s.store.SaveAttributeGroup(ctx, g); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil || !changed {
		return false, err
	}

	action := models.ActionRelationshipRemove
	if add {
		action = models.ActionRelationshipAdd
	}
	s.history.RecordRelationshipChange(ctx, history.RelationshipChange{
		Primary:          history.EntityRef{ID: attr.ID, Type: models.EntityAttribute, Name: s.loc.Name(ctx, attr.Name)},
		Secondary:        history.EntityRef{ID: group.ID, Type: models.EntityAttributeGroup, Name: s.loc.Name(ctx, group.Name)},
		Action:           action,
		RelationshipType: membershipRelation,
		UserID:           userID,
	})
	return true, nil
}

func cloneAttribute(a *models.Attribute) *models.Attribute {
	cp := *a
	cp.Options = append([]string(nil), a.Options...)
	if a.Validations != nil {
		cp.Validations = make(map[string]interface{}, len(a.Validations))
		for k, v := range a.Validations {
			cp.Validations[k] = v
		}
	}
	return &cp
}
