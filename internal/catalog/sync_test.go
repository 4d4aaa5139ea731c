package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/history"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

func TestCategoryClaimsFamily(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fam := f.family(t, "fam", FamilyInput{})
	cat := f.category(t, "cat", CategoryInput{})

	view, report, err := f.svc.UpdateCategory(ctx, cat.ID, CategoryInput{Family: str(fam.ID)}, "user-1")
	require.NoError(t, err)
	assert.True(t, report.OK())
	require.NotNil(t, view.Family)
	assert.Equal(t, fam.ID, view.Family.ID)
	assert.Equal(t, "fam", DisplayName(view.Family.Name))

	catFam, famCat := f.pointers(t, cat.ID, fam.ID)
	assert.Equal(t, fam.ID, catFam)
	assert.Equal(t, cat.ID, famCat)

	page, err := f.history.GetEntityHistory(ctx, fam.ID, models.EntityFamily, 0, 0)
	require.NoError(t, err)
	var system *models.History
	for _, row := range page.Rows {
		if row.EntityID == fam.ID && row.Action == models.ActionUpdate {
			system = row
		}
	}
	require.NotNil(t, system)
	assert.Equal(t, history.SystemUserID, system.CreatedBy)
}

func TestCategoryStealsFamilyFromOtherCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fam := f.family(t, "fam", FamilyInput{})
	first := f.category(t, "first", CategoryInput{Family: str(fam.ID)})
	second := f.category(t, "second", CategoryInput{})

	_, report, err := f.svc.UpdateCategory(ctx, second.ID, CategoryInput{Family: str(fam.ID)}, "user-1")
	require.NoError(t, err)
	assert.True(t, report.OK())

	stored, err := f.store.GetCategory(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Family)

	_, famCat := f.pointers(t, second.ID, fam.ID)
	assert.Equal(t, second.ID, famCat)
	f.requireOneToOne(t)

	rows, err := f.history.GetEntityHistory(ctx, first.ID, models.EntityCategory, 0, 0)
	require.NoError(t, err)
	found := false
	for _, row := range rows.Rows {
		if row.EntityID == first.ID && row.CreatedBy == history.SystemUserID {
			found = true
			assert.Equal(t, map[string]interface{}{"family": nil}, row.NewData)
		}
	}
	assert.True(t, found)
}

func TestEmptyFamilyRemovesPointerAndReleasesOldFamily(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fam := f.family(t, "fam", FamilyInput{})
	cat := f.category(t, "cat", CategoryInput{Family: str(fam.ID)})

	_, report, err := f.svc.UpdateCategory(ctx, cat.ID, CategoryInput{Family: str("")}, "user-1")
	require.NoError(t, err)
	assert.True(t, report.OK())

	raw, err := f.store.FindRaw(ctx, map[string]interface{}{"_id": cat.ID})
	require.NoError(t, err)
	require.Len(t, raw, 1)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw[0], &doc))
	assert.NotContains(t, doc, "family")

	stored, err := f.store.GetFamily(ctx, fam.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Category)

	page, err := f.history.Query(ctx, history.Filter{
		EntityType: models.EntityFamily,
		EntityID:   fam.ID,
		Action:     models.ActionUpdate,
	}, 0, 0)
	require.NoError(t, err)
	var cleared *models.History
	for _, row := range page.Rows {
		if assert.ObjectsAreEqual(map[string]interface{}{"category": nil}, row.NewData) {
			cleared = row
		}
	}
	require.NotNil(t, cleared)
	assert.Equal(t, map[string]interface{}{"category": cat.ID}, cleared.PreviousData)
	assert.Equal(t, history.SystemUserID, cleared.CreatedBy)
}

func TestMovingFamilyReleasesOldOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	oldFam := f.family(t, "old", FamilyInput{})
	newFam := f.family(t, "new", FamilyInput{})
	cat := f.category(t, "cat", CategoryInput{Family: str(oldFam.ID)})

	_, _, err := f.svc.UpdateCategory(ctx, cat.ID, CategoryInput{Family: str(newFam.ID)}, "user-1")
	require.NoError(t, err)

	stored, err := f.store.GetFamily(ctx, oldFam.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Category)
	f.requireOneToOne(t)
}

func TestOldFamilyPointingElsewhereIsLeftAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fam := f.family(t, "fam", FamilyInput{})
	cat := f.category(t, "cat", CategoryInput{Family: str(fam.ID)})
	other := f.category(t, "other", CategoryInput{})

	// Simulate a desync left behind by an earlier failure.
	stored, err := f.store.GetFamily(ctx, fam.ID)
	require.NoError(t, err)
	stored.Category = other.ID
	require.NoError(t, f.store.SaveFamily(ctx, stored))

	_, _, err = f.svc.UpdateCategory(ctx, cat.ID, CategoryInput{Family: str("")}, "user-1")
	require.NoError(t, err)

	stored, err = f.store.GetFamily(ctx, fam.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, stored.Category)
}

func TestFamilySideUpdateSyncsCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cat := f.category(t, "cat", CategoryInput{})
	fam := f.family(t, "fam", FamilyInput{Category: str(cat.ID)})

	catFam, famCat := f.pointers(t, cat.ID, fam.ID)
	assert.Equal(t, fam.ID, catFam)
	assert.Equal(t, cat.ID, famCat)

	rival := f.family(t, "rival", FamilyInput{})
	_, report, err := f.svc.UpdateFamily(ctx, rival.ID, FamilyInput{Category: str(cat.ID)}, "user-1")
	require.NoError(t, err)
	assert.True(t, report.OK())

	stored, err := f.store.GetFamily(ctx, fam.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Category)
	f.requireOneToOne(t)
}

func TestConcurrentCategoriesClaimingOneFamily(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fam := f.family(t, "fam", FamilyInput{})

	const n = 8
	cats := make([]*CategoryView, n)
	for i := range cats {
		cats[i] = f.category(t, "cat-"+string(rune('a'+i)), CategoryInput{})
	}

	var g errgroup.Group
	for _, c := range cats {
		g.Go(func() error {
			_, report, err := f.svc.UpdateCategory(ctx, c.ID, CategoryInput{Family: str(fam.ID)}, "user-1")
			if err != nil {
				return err
			}
			if !report.OK() {
				return errors.New(report.Failures[0].Error)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	holders := 0
	for _, c := range cats {
		stored, err := f.store.GetCategory(ctx, c.ID)
		require.NoError(t, err)
		if stored.Family == fam.ID {
			holders++
		}
	}
	assert.Equal(t, 1, holders)
	f.requireOneToOne(t)
}

func TestStaleRevisionIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fam := f.family(t, "fam", FamilyInput{})
	cat := f.category(t, "cat", CategoryInput{})
	rev := cat.Rev

	_, _, err := f.svc.UpdateCategory(ctx, cat.ID, CategoryInput{Rev: rev, Family: str(fam.ID)}, "user-1")
	require.NoError(t, err)

	_, _, err = f.svc.UpdateCategory(ctx, cat.ID, CategoryInput{Rev: rev, Family: str("")}, "user-2")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrConflict))

	catFam, famCat := f.pointers(t, cat.ID, fam.ID)
	assert.Equal(t, fam.ID, catFam)
	assert.Equal(t, cat.ID, famCat)
}

func TestSyncFailureIsReportedAndCounted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fam := f.family(t, "fam", FamilyInput{})
	cat := f.category(t, "cat", CategoryInput{})

	boom := errors.New("disk full")
	f.backend.InjectFault(func(op storage.Op, id string) error {
		if op == storage.OpPut && id == fam.ID {
			return boom
		}
		return nil
	})

	view, report, err := f.svc.UpdateCategory(ctx, cat.ID, CategoryInput{Family: str(fam.ID)}, "user-1")
	require.NoError(t, err)
	require.NotNil(t, view)
	require.False(t, report.OK())
	require.Len(t, report.Failures, 1)
	assert.Equal(t, StepClaimFamily, report.Failures[0].Step)
	assert.Equal(t, fam.ID, report.Failures[0].EntityID)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.FamilySyncFailures.WithLabelValues(StepClaimFamily)))

	// The category update stands while the family never learned about it.
	f.backend.InjectFault(nil)
	catFam, famCat := f.pointers(t, cat.ID, fam.ID)
	assert.Equal(t, fam.ID, catFam)
	assert.Empty(t, famCat)

	report, err = f.svc.RelinkCategory(ctx, cat.ID)
	require.NoError(t, err)
	assert.True(t, report.OK())
	f.requireOneToOne(t)
}
