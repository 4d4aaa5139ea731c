package catalog

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"evalgo.org/mdm/internal/history"
	"evalgo.org/mdm/internal/logging"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

// Sync step names, also used as metric labels.
const (
	StepClearOldFamily   = "clear_old_family"
	StepLoadFamily       = "load_family"
	StepReleaseFamily    = "release_family"
	StepClaimFamily      = "claim_family"
	StepClearOldCategory = "clear_old_category"
	StepLoadCategory     = "load_category"
	StepReleaseCategory  = "release_category"
	StepClaimCategory    = "claim_category"
)

// SyncFailure is one step of the category/family pointer sync that did not
// complete.
type SyncFailure struct {
	Step     string `json:"step"`
	EntityID string `json:"entityId"`
	Error    string `json:"error"`
}

// SyncReport lists the failed steps of a category/family pointer sync. The
// write that triggered the sync is kept even when steps fail; the integrity
// repair re-runs the sync.
type SyncReport struct {
	Failures []SyncFailure `json:"failures,omitempty"`
}

// OK reports whether every step completed.
func (r *SyncReport) OK() bool {
	return r == nil || len(r.Failures) == 0
}

func (s *Service) syncFailed(ctx context.Context, r *SyncReport, step, entityID string, err error) {
	r.Failures = append(r.Failures, SyncFailure{Step: step, EntityID: entityID, Error: err.Error()})
	s.metrics.IncFamilySyncFailure(step)
	logging.FromContext(ctx).WithError(err).WithFields(logrus.Fields{
		"step":     step,
		"entityId": entityID,
	}).Error("category/family sync step failed")
}

// syncFamilyOfCategory runs after a category's family pointer moved from
// oldFam to newFam. The old family is released, a category previously
// holding newFam loses it, and newFam is pointed at the category. The
// caller must hold s.links.
func (s *Service) syncFamilyOfCategory(ctx context.Context, catID, oldFam, newFam string) *SyncReport {
	report := &SyncReport{}
	if oldFam == newFam {
		return report
	}

	if oldFam != "" {
		err := s.pointFamilyAt(ctx, oldFam, "", causeCategory(catID), func(cur string) bool { return cur == catID })
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.syncFailed(ctx, report, StepClearOldFamily, oldFam, err)
		}
	}
	if newFam == "" {
		return report
	}

	fam, err := s.store.GetFamily(ctx, newFam)
	if err != nil {
		s.syncFailed(ctx, report, StepLoadFamily, newFam, err)
		return report
	}
	if other := fam.Category; other != "" && other != catID {
		err := s.pointCategoryAt(ctx, other, "", causeCategory(catID), func(cur string) bool { return cur == newFam })
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.syncFailed(ctx, report, StepReleaseFamily, other, err)
		}
	}
	if err := s.pointFamilyAt(ctx, newFam, catID, causeCategory(catID), anyValue); err != nil {
		s.syncFailed(ctx, report, StepClaimFamily, newFam, err)
	}
	return report
}

// syncCategoryOfFamily is the mirror of syncFamilyOfCategory for a family
// whose category pointer moved. The caller must hold s.links.
func (s *Service) syncCategoryOfFamily(ctx context.Context, famID, oldCat, newCat string) *SyncReport {
	report := &SyncReport{}
	if oldCat == newCat {
		return report
	}

	if oldCat != "" {
		err := s.pointCategoryAt(ctx, oldCat, "", causeFamily(famID), func(cur string) bool { return cur == famID })
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.syncFailed(ctx, report, StepClearOldCategory, oldCat, err)
		}
	}
	if newCat == "" {
		return report
	}

	cat, err := s.store.GetCategory(ctx, newCat)
	if err != nil {
		s.syncFailed(ctx, report, StepLoadCategory, newCat, err)
		return report
	}
	if other := cat.Family; other != "" && other != famID {
		err := s.pointFamilyAt(ctx, other, "", causeFamily(famID), func(cur string) bool { return cur == newCat })
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.syncFailed(ctx, report, StepReleaseCategory, other, err)
		}
	}
	if err := s.pointCategoryAt(ctx, newCat, famID, causeFamily(famID), anyValue); err != nil {
		s.syncFailed(ctx, report, StepClaimCategory, newCat, err)
	}
	return report
}

func anyValue(string) bool { return true }

// pointFamilyAt sets the family's category to catID when when(current)
// holds. The change is recorded as a system update of the family that
// lists cause among the affected entities.
func (s *Service) pointFamilyAt(ctx context.Context, famID, catID string, cause models.AffectedEntity, when func(string) bool) error {
	var (
		fam     *models.Family
		prev    string
		changed bool
	)
	err := retryOnConflict(func() error {
		unlock := s.locks.Lock(famID)
		defer unlock()

		f, err := s.store.GetFamily(ctx, famID)
		if err != nil {
			return err
		}
		fam, prev, changed = f, f.Category, false
		if f.Category == catID || !when(f.Category) {
			return nil
		}
		f.Category = catID
		f.Touch(history.SystemUserID, s.now())
		if err := s.store.SaveFamily(ctx, f); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil || !changed {
		return err
	}

	s.mutated(models.EntityFamily, models.ActionUpdate)
	s.history.Record(ctx, history.Entry{
		EntityID:         fam.ID,
		EntityType:       models.EntityFamily,
		EntityName:       s.loc.Name(ctx, fam.Name),
		Action:           models.ActionUpdate,
		AffectedEntities: withCause(affected(models.EntityCategory, prev, catID), cause),
		PreviousData:     map[string]interface{}{"category": nullable(prev)},
		NewData:          map[string]interface{}{"category": nullable(catID)},
		UserID:           history.SystemUserID,
	})
	return nil
}

// pointCategoryAt sets the category's family to famID when when(current)
// holds, recording a system update of the category.
func (s *Service) pointCategoryAt(ctx context.Context, catID, famID string, cause models.AffectedEntity, when func(string) bool) error {
	var (
		cat     *models.Category
		prev    string
		changed bool
	)
	err := retryOnConflict(func() error {
		unlock := s.locks.Lock(catID)
		defer unlock()

		c, err := s.store.GetCategory(ctx, catID)
		if err != nil {
			return err
		}
		cat, prev, changed = c, c.Family, false
		if c.Family == famID || !when(c.Family) {
			return nil
		}
		c.Family = famID
		c.Touch(history.SystemUserID, s.now())
		if err := s.store.SaveCategory(ctx, c); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil || !changed {
		return err
	}

	s.mutated(models.EntityCategory, models.ActionUpdate)
	s.history.Record(ctx, history.Entry{
		EntityID:         cat.ID,
		EntityType:       models.EntityCategory,
		EntityName:       s.loc.Name(ctx, cat.Name),
		Action:           models.ActionUpdate,
		AffectedEntities: withCause(affected(models.EntityFamily, prev, famID), cause),
		PreviousData:     map[string]interface{}{"family": nullable(prev)},
		NewData:          map[string]interface{}{"family": nullable(famID)},
		UserID:           history.SystemUserID,
	})
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func causeCategory(id string) models.AffectedEntity {
	return models.AffectedEntity{EntityID: id, EntityType: models.EntityCategory, Role: models.RoleSecondary}
}

func causeFamily(id string) models.AffectedEntity {
	return models.AffectedEntity{EntityID: id, EntityType: models.EntityFamily, Role: models.RoleSecondary}
}

func affected(entityType models.EntityType, ids ...string) []models.AffectedEntity {
	var out []models.AffectedEntity
	for _, id := range uniqueStrings(ids) {
		out = append(out, models.AffectedEntity{EntityID: id, EntityType: entityType, Role: models.RoleSecondary})
	}
	return out
}

func withCause(list []models.AffectedEntity, cause models.AffectedEntity) []models.AffectedEntity {
	for _, a := range list {
		if a.EntityID == cause.EntityID {
			return list
		}
	}
	return append(list, cause)
}
