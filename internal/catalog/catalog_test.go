package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"evalgo.org/mdm/internal/history"
	"evalgo.org/mdm/internal/localization"
	"evalgo.org/mdm/internal/metrics"
	"evalgo.org/mdm/internal/registry"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

type fixture struct {
	backend *storage.MemoryBackend
	store   *storage.Storage
	metrics *metrics.Metrics
	history *history.Service
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := storage.NewMemoryBackend()
	store := storage.NewWithBackend(backend, 0, nil)
	m := metrics.New()
	loc := localization.NewService(store, "tr")
	hist := history.NewService(store, registry.NewService(store), m, 100)
	return &fixture{
		backend: backend,
		store:   store,
		metrics: m,
		history: hist,
		svc:     New(store, loc, hist, m),
	}
}

func text(s string) *models.LocalizedInput { return &models.LocalizedInput{Text: s} }

func str(s string) *string { return &s }

func strs(v ...string) *[]string { return &v }

func flag(b bool) *bool { return &b }

func (f *fixture) attribute(t *testing.T, code string, isRequired bool) *AttributeView {
	t.Helper()
	typ := models.AttributeText
	a, err := f.svc.CreateAttribute(context.Background(), AttributeInput{
		Code:       str(code),
		Name:       text(code),
		Type:       &typ,
		IsRequired: flag(isRequired),
	}, "user-1")
	require.NoError(t, err)
	return a
}

func (f *fixture) group(t *testing.T, code string, attrs ...string) *AttributeGroupView {
	t.Helper()
	g, err := f.svc.CreateAttributeGroup(context.Background(), AttributeGroupInput{
		Code:       str(code),
		Name:       text(code),
		Attributes: strs(attrs...),
	}, "user-1")
	require.NoError(t, err)
	return g
}

func (f *fixture) category(t *testing.T, code string, in CategoryInput) *CategoryView {
	t.Helper()
	in.Code = str(code)
	in.Name = text(code)
	c, report, err := f.svc.CreateCategory(context.Background(), in, "user-1")
	require.NoError(t, err)
	require.True(t, report.OK())
	return c
}

func (f *fixture) family(t *testing.T, code string, in FamilyInput) *FamilyView {
	t.Helper()
	in.Code = str(code)
	in.Name = text(code)
	fam, report, err := f.svc.CreateFamily(context.Background(), in, "user-1")
	require.NoError(t, err)
	require.True(t, report.OK())
	return fam
}

func (f *fixture) itemType(t *testing.T, code string, in ItemTypeInput) *ItemTypeView {
	t.Helper()
	in.Code = str(code)
	in.Name = text(code)
	it, err := f.svc.CreateItemType(context.Background(), in, "user-1")
	require.NoError(t, err)
	return it
}

// pointers returns the stored category.family and family.category values.
func (f *fixture) pointers(t *testing.T, catID, famID string) (string, string) {
	t.Helper()
	ctx := context.Background()
	cat, err := f.store.GetCategory(ctx, catID)
	require.NoError(t, err)
	fam, err := f.store.GetFamily(ctx, famID)
	require.NoError(t, err)
	return cat.Family, fam.Category
}

// requireOneToOne checks that every category pointing at a family is
// pointed back at, and that no family is claimed twice.
func (f *fixture) requireOneToOne(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	cats, err := f.store.ListCategories(ctx, nil)
	require.NoError(t, err)
	claimed := map[string]string{}
	for _, c := range cats {
		if c.Family == "" {
			continue
		}
		prev, dup := claimed[c.Family]
		require.False(t, dup, "family %s claimed by %s and %s", c.Family, prev, c.ID)
		claimed[c.Family] = c.ID

		fam, err := f.store.GetFamily(ctx, c.Family)
		require.NoError(t, err)
		require.Equal(t, c.ID, fam.Category)
	}
}

func historyFilter(action models.HistoryAction) history.Filter {
	return history.Filter{Action: action}
}
