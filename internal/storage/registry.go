package storage

import (
	"context"

	"evalgo.org/mdm/models"
)

// UpsertRegistryEntry writes the registry entry for an entity. Registry
// entries are last-write-wins.
func (s *Storage) UpsertRegistryEntry(ctx context.Context, e *models.EntityRegistryEntry) error {
	e.Type = models.TypeRegistryEntry
	e.ID = models.RegistryID(e.EntityID)
	return s.Upsert(ctx, e)
}

// GetRegistryEntry retrieves the registry entry of an entity.
func (s *Storage) GetRegistryEntry(ctx context.Context, entityID string) (*models.EntityRegistryEntry, error) {
	return getTyped[models.EntityRegistryEntry](ctx, s, models.RegistryID(entityID), models.TypeRegistryEntry)
}
