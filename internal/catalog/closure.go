package catalog

import (
	"context"

	"github.com/sirupsen/logrus"

	"evalgo.org/mdm/internal/logging"
)

// attributeClosure returns the de-duplicated union of the member attributes
// of groupIDs followed by explicit. Groups that no longer exist contribute
// nothing.
func (s *Service) attributeClosure(ctx context.Context, groupIDs, explicit []string) ([]string, error) {
	groups, err := s.store.GetAttributeGroups(ctx, uniqueStrings(groupIDs))
	if err != nil {
		return nil, err
	}
	lists := make([][]string, 0, len(groups)+1)
	for _, g := range groups {
		lists = append(lists, g.Attributes)
	}
	lists = append(lists, explicit)
	return uniqueStrings(lists...), nil
}

// refreshClosuresForGroup recomputes the attributes of every family and
// item type that references groupID. Failures are logged and counted; the
// change that triggered the refresh stands.
func (s *Service) refreshClosuresForGroup(ctx context.Context, groupID string) {
	log := logging.FromContext(ctx).WithField("groupId", groupID)

	families, err := s.store.FamiliesReferencingGroup(ctx, groupID)
	if err != nil {
		s.metrics.IncClosureFailure()
		log.WithError(err).Error("could not list families of attribute group")
	}
	for _, f := range families {
		if err := s.RefreshFamilyClosure(ctx, f.ID); err != nil {
			s.closureFailed(log, "family", f.ID, err)
		}
	}

	types, err := s.store.ItemTypesReferencingGroup(ctx, groupID)
	if err != nil {
		s.metrics.IncClosureFailure()
		log.WithError(err).Error("could not list item types of attribute group")
	}
	for _, it := range types {
		if err := s.RefreshItemTypeClosure(ctx, it.ID); err != nil {
			s.closureFailed(log, "itemType", it.ID, err)
		}
	}
}

func (s *Service) closureFailed(log *logrus.Entry, kind, id string, err error) {
	s.metrics.IncClosureFailure()
	log.WithError(err).WithFields(logrus.Fields{
		"kind": kind,
		"id":   id,
	}).Error("attribute closure refresh failed")
}

// RefreshFamilyClosure recomputes a family's attributes from its groups.
func (s *Service) RefreshFamilyClosure(ctx context.Context, familyID string) error {
	return retryOnConflict(func() error {
		unlock := s.locks.Lock(familyID)
		defer unlock()

		fam, err := s.store.GetFamily(ctx, familyID)
		if err != nil {
			return err
		}
		attrs := []string{}
		if len(fam.AttributeGroups) > 0 {
			if attrs, err = s.attributeClosure(ctx, fam.AttributeGroups, nil); err != nil {
				return err
			}
		}
		if equalStrings(attrs, fam.Attributes) {
			return nil
		}
		fam.Attributes = attrs
		fam.Touch("", s.now())
		return s.store.SaveFamily(ctx, fam)
	})
}

// RefreshItemTypeClosure recomputes an item type's attributes from its
// groups. An item type without groups keeps its attributes.
func (s *Service) RefreshItemTypeClosure(ctx context.Context, itemTypeID string) error {
	return retryOnConflict(func() error {
		unlock := s.locks.Lock(itemTypeID)
		defer unlock()

		it, err := s.store.GetItemType(ctx, itemTypeID)
		if err != nil {
			return err
		}
		if len(it.AttributeGroups) == 0 {
			return nil
		}
		attrs, err := s.attributeClosure(ctx, it.AttributeGroups, nil)
		if err != nil {
			return err
		}
		if equalStrings(attrs, it.Attributes) {
			return nil
		}
		it.Attributes = attrs
		it.Touch("", s.now())
		return s.store.SaveItemType(ctx, it)
	})
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
