package catalog

import (
	"context"
	"strings"

	"evalgo.org/mdm/internal/history"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

// AttributeGroupFilter narrows ListAttributeGroups.
type AttributeGroupFilter struct {
	IsActive  *bool
	Attribute string
}

// CreateAttributeGroup creates a group. Each initial member is recorded as
// a membership change.
func (s *Service) CreateAttributeGroup(ctx context.Context, in AttributeGroupInput, userID string) (*AttributeGroupView, error) {
	code := strings.TrimSpace(stringValue(in.Code))
	if err := required(code, "code"); err != nil {
		return nil, err
	}
	if in.Name.IsEmpty() {
		return nil, required("", "name")
	}
	if err := ensureUniqueCode(ctx, s.store.FindAttributeGroupByCode, code, "", labelAttributeGroup); err != nil {
		return nil, err
	}
	members := uniqueStrings(listValue(in.Attributes))
	if err := ensureExist(ctx, s.store.GetAttributes, members, labelAttribute); err != nil {
		return nil, err
	}

	group := &models.AttributeGroup{
		Document:   models.Document{ID: models.GenerateID("attributeGroup")},
		Code:       code,
		Attributes: members,
		IsActive:   boolValue(in.IsActive, true),
	}
	var err error
	if group.Name, err = s.loc.Assign(ctx, in.Name, "attributeGroup.name", code, userID); err != nil {
		return nil, err
	}
	if group.Description, err = s.loc.Assign(ctx, in.Description, "attributeGroup.description", code, userID); err != nil {
		return nil, err
	}
	group.Touch(userID, s.now())
	if err := s.store.SaveAttributeGroup(ctx, group); err != nil {
		return nil, errWrap("save attribute group", err)
	}

	view, err := first(s.AttributeGroupViews(ctx, []*models.AttributeGroup{group}))
	if err != nil {
		return nil, err
	}
	s.mutated(models.EntityAttributeGroup, models.ActionCreate)
	s.history.Record(ctx, history.Entry{
		EntityID:   group.ID,
		EntityType: models.EntityAttributeGroup,
		Action:     models.ActionCreate,
		NewData:    view,
		UserID:     userID,
	})
	s.recordMembership(ctx, view, members, nil, userID)
	return view, nil
}

// GetAttributeGroup returns a populated group.
func (s *Service) GetAttributeGroup(ctx context.Context, id string) (*AttributeGroupView, error) {
	group, err := s.store.GetAttributeGroup(ctx, id)
	if err != nil {
		return nil, notFound(err, labelAttributeGroup, id)
	}
	return first(s.AttributeGroupViews(ctx, []*models.AttributeGroup{group}))
}

// ListAttributeGroups returns the groups matching f.
func (s *Service) ListAttributeGroups(ctx context.Context, f AttributeGroupFilter) ([]*AttributeGroupView, error) {
	filters := storage.Filters{}
	if f.IsActive != nil {
		filters["isActive"] = *f.IsActive
	}
	if f.Attribute != "" {
		filters["attributes"] = map[string]interface{}{
			"$elemMatch": map[string]interface{}{"$eq": f.Attribute},
		}
	}
	groups, err := s.store.ListAttributeGroups(ctx, filters)
	if err != nil {
		return nil, err
	}
	return s.AttributeGroupViews(ctx, groups)
}

// UpdateAttributeGroup applies in to the group. When membership changes,
// the attribute closures of every family and item type using the group are
// recomputed.
func (s *Service) UpdateAttributeGroup(ctx context.Context, id string, in AttributeGroupInput, userID string) (*AttributeGroupView, error) {
	var members []string
	if in.Attributes != nil {
		members = uniqueStrings(*in.Attributes)
		if err := ensureExist(ctx, s.store.GetAttributes, members, labelAttribute); err != nil {
			return nil, err
		}
	}

	unlock := s.locks.Lock(id)
	group, err := s.store.GetAttributeGroup(ctx, id)
	if err != nil {
		unlock()
		return nil, notFound(err, labelAttributeGroup, id)
	}
	if err := checkRev(in.Rev, group.Rev); err != nil {
		unlock()
		return nil, err
	}
	before := *group
	before.Attributes = append([]string(nil), group.Attributes...)

	if in.Code != nil {
		code := strings.TrimSpace(*in.Code)
		if err := required(code, "code"); err != nil {
			unlock()
			return nil, err
		}
		if err := ensureUniqueCode(ctx, s.store.FindAttributeGroupByCode, code, group.ID, labelAttributeGroup); err != nil {
			unlock()
			return nil, err
		}
		group.Code = code
	}
	if in.Attributes != nil {
		group.Attributes = members
	}
	if in.IsActive != nil {
		group.IsActive = *in.IsActive
	}
	if group.Name, err = s.assignText(ctx, in.Name, group.Name, "attributeGroup.name", group.Code, userID); err != nil {
		unlock()
		return nil, err
	}
	if group.Description, err = s.assignText(ctx, in.Description, group.Description, "attributeGroup.description", group.Code, userID); err != nil {
		unlock()
		return nil, err
	}
	group.Touch(userID, s.now())
	err = s.store.SaveAttributeGroup(ctx, group)
	unlock()
	if err != nil {
		return nil, errWrap("save attribute group", err)
	}

	views, err := s.AttributeGroupViews(ctx, []*models.AttributeGroup{&before, group})
	if err != nil {
		return nil, err
	}
	previous, view := views[0], views[1]
	s.mutated(models.EntityAttributeGroup, models.ActionUpdate)
	s.history.Record(ctx, history.Entry{
		EntityID:     group.ID,
		EntityType:   models.EntityAttributeGroup,
		Action:       models.ActionUpdate,
		PreviousData: previous,
		NewData:      view,
		UserID:       userID,
	})

	if in.Attributes != nil {
		added := difference(group.Attributes, before.Attributes)
		removed := difference(before.Attributes, group.Attributes)
		s.recordMembership(ctx, view, added, removed, userID)
		if len(added) > 0 || len(removed) > 0 {
			s.refreshClosuresForGroup(ctx, group.ID)
		}
	}
	return view, nil
}

// DeleteAttributeGroup deletes a group and purges its history. Families,
// categories and item types keep referencing it.
func (s *Service) DeleteAttributeGroup(ctx context.Context, id, userID string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	group, err := s.store.GetAttributeGroup(ctx, id)
	if err != nil {
		return notFound(err, labelAttributeGroup, id)
	}
	if err := s.store.Delete(ctx, group.ID, group.Rev); err != nil {
		return errWrap("delete attribute group", err)
	}
	s.mutated(models.EntityAttributeGroup, models.ActionDelete)
	s.history.Purge(ctx, group.ID)
	return nil
}

// recordMembership writes relationship history for attributes added to and
// removed from a group.
func (s *Service) recordMembership(ctx context.Context, group *AttributeGroupView, added, removed []string, userID string) {
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	attrs, err := s.store.GetAttributes(ctx, uniqueStrings(added, removed))
	if err != nil {
		s.warn(ctx, err, "membership history skipped", map[string]interface{}{"groupId": group.ID})
		return
	}
	names := make(map[string]string, len(attrs))
	for _, a := range attrs {
		names[a.ID] = s.loc.Name(ctx, a.Name)
	}

	groupRef := history.EntityRef{ID: group.ID, Type: models.EntityAttributeGroup, Name: DisplayName(group.Name)}
	record := func(ids []string, action models.HistoryAction) {
		for _, id := range ids {
			s.history.RecordRelationshipChange(ctx, history.RelationshipChange{
				Primary:          history.EntityRef{ID: id, Type: models.EntityAttribute, Name: names[id]},
				Secondary:        groupRef,
				Action:           action,
				RelationshipType: membershipRelation,
				UserID:           userID,
			})
		}
	}
	record(added, models.ActionRelationshipAdd)
	record(removed, models.ActionRelationshipRemove)
}
