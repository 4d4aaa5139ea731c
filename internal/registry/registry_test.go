package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mdm/internal/metrics"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (*models.EntityRegistryEntry, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (brokenCache) Set(context.Context, *models.EntityRegistryEntry, time.Duration) error {
	return errors.New("connection refused")
}

func newStore() *storage.Storage {
	return storage.NewWithBackend(storage.NewMemoryBackend(), 0, nil)
}

func TestRegisterAndLookup(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore())

	require.NoError(t, svc.Register(ctx, "attribute:1", models.EntityAttribute, "Renk", "color"))
	entry, err := svc.Lookup(ctx, "attribute:1")
	require.NoError(t, err)
	assert.Equal(t, "Renk", entry.Name)
	assert.Equal(t, "color", entry.Code)
	assert.Equal(t, models.EntityAttribute, entry.EntityType)

	require.NoError(t, svc.Register(ctx, "attribute:1", models.EntityAttribute, "Renk Kodu", "color"))
	assert.Equal(t, "Renk Kodu", svc.Name(ctx, "attribute:1"))
}

func TestLookupMissing(t *testing.T) {
	svc := NewService(newStore())
	_, err := svc.Lookup(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, svc.Name(context.Background(), "nope"))
}

func TestCacheIsReadThrough(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	cache := NewMapCache()

	plain := NewService(store)
	require.NoError(t, plain.Register(ctx, "family:1", models.EntityFamily, "Gömlek", "shirt"))

	cached := NewService(store, WithCache(cache, time.Minute))
	_, ok, _ := cache.Get(ctx, "family:1")
	assert.False(t, ok)

	assert.Equal(t, "Gömlek", cached.Name(ctx, "family:1"))
	hit, ok, err := cache.Get(ctx, "family:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Gömlek", hit.Name)
}

func TestBrokenCacheFallsBackToStorage(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	svc := NewService(newStore(), WithCache(brokenCache{}, time.Minute), WithMetrics(m))

	require.NoError(t, svc.Register(ctx, "item:1", models.EntityItem, "Kırmızı Gömlek", ""))
	assert.Equal(t, "Kırmızı Gömlek", svc.Name(ctx, "item:1"))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.RegistryCacheErrors), 2.0)
}
