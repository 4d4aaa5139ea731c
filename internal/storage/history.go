package storage

import (
	"context"
	"errors"
	"fmt"

	"evalgo.org/mdm/models"
)

// SaveHistory appends a history row.
func (s *Storage) SaveHistory(ctx context.Context, h *models.History) error {
	h.Type = models.TypeHistory
	return s.Save(ctx, h)
}

// ListHistory retrieves the history rows matching the given filters.
func (s *Storage) ListHistory(ctx context.Context, filters Filters) ([]*models.History, error) {
	return listTyped[models.History](ctx, s, models.TypeHistory, filters)
}

// HistoryForEntity returns every row where entityID is the primary entity or
// one of the affected entities. A non-empty entityType narrows both sides.
func (s *Storage) HistoryForEntity(ctx context.Context, entityID string, entityType models.EntityType) ([]*models.History, error) {
	return findTyped[models.History](ctx, s, historyEntitySelector(entityID, entityType))
}

func historyEntitySelector(entityID string, entityType models.EntityType) map[string]interface{} {
	primary := map[string]interface{}{"entityId": entityID}
	affected := map[string]interface{}{"entityId": entityID}
	if entityType != "" {
		primary["entityType"] = string(entityType)
		affected["entityType"] = string(entityType)
	}
	return map[string]interface{}{
		"@type": models.TypeHistory,
		"$or": []interface{}{
			primary,
			map[string]interface{}{
				"affectedEntities": map[string]interface{}{"$elemMatch": affected},
			},
		},
	}
}

// DeleteHistoryForEntity removes every row mentioning entityID and returns
// how many rows were removed.
func (s *Storage) DeleteHistoryForEntity(ctx context.Context, entityID string) (int, error) {
	rows, err := s.HistoryForEntity(ctx, entityID, "")
	if err != nil {
		return 0, fmt.Errorf("failed to query history of %s: %w", entityID, err)
	}

	deleted := 0
	var errs []error
	for _, row := range rows {
		if err := s.Delete(ctx, row.ID, row.Rev); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("history %s: %w", row.ID, err))
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}
