package storage

import (
	"context"

	"evalgo.org/mdm/models"
)

// SaveLocalization saves a localization at its current revision.
func (s *Storage) SaveLocalization(ctx context.Context, l *models.Localization) error {
	l.Type = models.TypeLocalization
	if l.ID == "" {
		l.ID = models.LocalizationID(l.Namespace, l.Key)
	}
	return s.Save(ctx, l)
}

// GetLocalization retrieves a localization by ID.
func (s *Storage) GetLocalization(ctx context.Context, id string) (*models.Localization, error) {
	return getTyped[models.Localization](ctx, s, id, models.TypeLocalization)
}

// GetLocalizations retrieves the localizations with the given IDs.
func (s *Storage) GetLocalizations(ctx context.Context, ids []string) ([]*models.Localization, error) {
	return getManyTyped[models.Localization](ctx, s, models.TypeLocalization, ids)
}

// ListLocalizations retrieves all localizations matching the given filters.
func (s *Storage) ListLocalizations(ctx context.Context, filters Filters) ([]*models.Localization, error) {
	return listTyped[models.Localization](ctx, s, models.TypeLocalization, filters)
}
