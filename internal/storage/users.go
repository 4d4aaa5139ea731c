package storage

import (
	"context"
	"strings"

	"evalgo.org/mdm/models"
)

// SaveUser saves a user at its current revision.
func (s *Storage) SaveUser(ctx context.Context, u *models.User) error {
	u.Type = models.TypeUser
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return s.Save(ctx, u)
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	return getTyped[models.User](ctx, s, id, models.TypeUser)
}

// GetUserByEmail retrieves a user by email address.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOneTyped[models.User](ctx, s, models.TypeUser, Filters{
		"email": strings.ToLower(strings.TrimSpace(email)),
	})
}

// ListUsers retrieves all users.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	return listTyped[models.User](ctx, s, models.TypeUser, nil)
}
