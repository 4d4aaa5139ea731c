package storage

import (
	"context"

	"evalgo.org/mdm/models"
)

// SaveRelationshipType saves a relationship type at its current revision.
func (s *Storage) SaveRelationshipType(ctx context.Context, rt *models.RelationshipType) error {
	rt.Type = models.TypeRelationshipType
	return s.Save(ctx, rt)
}

// GetRelationshipType retrieves a relationship type by ID.
func (s *Storage) GetRelationshipType(ctx context.Context, id string) (*models.RelationshipType, error) {
	return getTyped[models.RelationshipType](ctx, s, id, models.TypeRelationshipType)
}

// ListRelationshipTypes retrieves all relationship types matching the given filters.
func (s *Storage) ListRelationshipTypes(ctx context.Context, filters Filters) ([]*models.RelationshipType, error) {
	return listTyped[models.RelationshipType](ctx, s, models.TypeRelationshipType, filters)
}

// FindRelationshipTypeByCode looks a relationship type up by its unique code.
func (s *Storage) FindRelationshipTypeByCode(ctx context.Context, code string) (*models.RelationshipType, error) {
	return findOneTyped[models.RelationshipType](ctx, s, models.TypeRelationshipType, Filters{"code": code})
}

// SaveRelationship saves a relationship at its current revision.
func (s *Storage) SaveRelationship(ctx context.Context, r *models.Relationship) error {
	r.Type = models.TypeRelationship
	return s.Save(ctx, r)
}

// GetRelationship retrieves a relationship by ID.
func (s *Storage) GetRelationship(ctx context.Context, id string) (*models.Relationship, error) {
	return getTyped[models.Relationship](ctx, s, id, models.TypeRelationship)
}

// ListRelationships retrieves all relationships matching the given filters.
func (s *Storage) ListRelationships(ctx context.Context, filters Filters) ([]*models.Relationship, error) {
	return listTyped[models.Relationship](ctx, s, models.TypeRelationship, filters)
}

// EntityRole selects which end of a relationship an entity must occupy.
type EntityRole string

const (
	EntityRoleSource EntityRole = "source"
	EntityRoleTarget EntityRole = "target"
	EntityRoleAny    EntityRole = "any"
)

// RelationshipsByEntity returns the active relationships where the entity
// occupies the requested end.
func (s *Storage) RelationshipsByEntity(ctx context.Context, entityID, entityType string, role EntityRole) ([]*models.Relationship, error) {
	source := map[string]interface{}{
		"sourceEntityId":   entityID,
		"sourceEntityType": entityType,
	}
	target := map[string]interface{}{
		"targetEntityId":   entityID,
		"targetEntityType": entityType,
	}

	selector := map[string]interface{}{
		"@type":  models.TypeRelationship,
		"status": string(models.RelationshipActive),
	}
	switch role {
	case EntityRoleSource:
		for k, v := range source {
			selector[k] = v
		}
	case EntityRoleTarget:
		for k, v := range target {
			selector[k] = v
		}
	default:
		selector["$or"] = []interface{}{source, target}
	}
	return findTyped[models.Relationship](ctx, s, selector)
}
