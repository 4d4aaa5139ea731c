// Package registry keeps the display identity (name and code) of every
// catalog entity so that history rows can be named without loading the
// entity. Entries live in storage and are optionally fronted by a cache.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"evalgo.org/mdm/internal/metrics"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

// Cache is a read-through cache of registry entries.
type Cache interface {
	Get(ctx context.Context, entityID string) (*models.EntityRegistryEntry, bool, error)
	Set(ctx context.Context, entry *models.EntityRegistryEntry, ttl time.Duration) error
}

// Service reads and writes registry entries.
type Service struct {
	store   *storage.Storage
	cache   Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// Option configures a Service.
type Option func(*Service)

// WithCache fronts the registry with cache. A nil cache is ignored.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
			s.ttl = ttl
		}
	}
}

// WithMetrics records cache failures on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger used for cache failures.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates a registry service.
func NewService(store *storage.Storage, opts ...Option) *Service {
	s := &Service{
		store: store,
		ttl:   time.Hour,
		log:   logrus.WithField("component", "registry"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Register records the current name and code of an entity.
func (s *Service) Register(ctx context.Context, entityID string, entityType models.EntityType, name, code string) error {
	entry := &models.EntityRegistryEntry{
		EntityID:   entityID,
		EntityType: entityType,
		Name:       name,
		Code:       code,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.store.UpsertRegistryEntry(ctx, entry); err != nil {
		return err
	}
	s.cacheSet(ctx, entry)
	return nil
}

// Lookup returns the registry entry of an entity, or storage.ErrNotFound.
func (s *Service) Lookup(ctx context.Context, entityID string) (*models.EntityRegistryEntry, error) {
	if s.cache != nil {
		entry, ok, err := s.cache.Get(ctx, entityID)
		if err != nil {
			s.cacheFailed(err, "get", entityID)
		} else if ok {
			return entry, nil
		}
	}

	entry, err := s.store.GetRegistryEntry(ctx, entityID)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, entry)
	return entry, nil
}

// Name returns the registered name of an entity, or "" when none exists.
func (s *Service) Name(ctx context.Context, entityID string) string {
	entry, err := s.Lookup(ctx, entityID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.WithError(err).WithField("entityId", entityID).Warn("registry lookup failed")
		}
		return ""
	}
	return entry.Name
}

func (s *Service) cacheSet(ctx context.Context, entry *models.EntityRegistryEntry) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, entry, s.ttl); err != nil {
		s.cacheFailed(err, "set", entry.EntityID)
	}
}

func (s *Service) cacheFailed(err error, op, entityID string) {
	s.metrics.IncRegistryCacheError()
	s.log.WithError(err).WithFields(logrus.Fields{
		"op":       op,
		"entityId": entityID,
	}).Warn("registry cache unavailable")
}

// MapCache is an in-process Cache. Entries never expire.
type MapCache struct {
	mu      sync.RWMutex
	entries map[string]models.EntityRegistryEntry
}

// NewMapCache creates an empty MapCache.
func NewMapCache() *MapCache {
	return &MapCache{entries: make(map[string]models.EntityRegistryEntry)}
}

// Get implements Cache.
func (c *MapCache) Get(_ context.Context, entityID string) (*models.EntityRegistryEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[entityID]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Set implements Cache.
func (c *MapCache) Set(_ context.Context, entry *models.EntityRegistryEntry, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.EntityID] = *entry
	return nil
}
