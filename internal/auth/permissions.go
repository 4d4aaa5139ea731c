package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/logging"
	"evalgo.org/mdm/internal/storage"
)

// PermissionVersionService tracks the permission version stored on each
// user. Every change to a user's role or permissions bumps the version;
// access tokens carry the version they were minted at.
type PermissionVersionService struct {
	store *storage.Storage
	now   func() time.Time
}

// NewPermissionVersionService creates a permission version service.
func NewPermissionVersionService(store *storage.Storage) *PermissionVersionService {
	return &PermissionVersionService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// InvalidateUserPermissions bumps the user's permission version so tokens
// issued before the call are rejected. It returns the new version.
func (s *PermissionVersionService) InvalidateUserPermissions(ctx context.Context, userID string) (int, error) {
	var version int
	step := func() error {
		u, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		u.PermissionVersion++
		u.Touch("", s.now())
		if err := s.store.SaveUser(ctx, u); err != nil {
			return err
		}
		version = u.PermissionVersion
		return nil
	}

	err := step()
	if errors.Is(err, storage.ErrConflict) {
		err = step()
	}
	if errors.Is(err, storage.ErrNotFound) {
		return 0, apperror.NotFound("Kullanıcı", userID)
	}
	if err != nil {
		return 0, fmt.Errorf("invalidate permissions: %w", err)
	}

	logging.FromContext(ctx).WithField("userId", userID).WithField("permissionVersion", version).
		Info("user permissions invalidated")
	return version, nil
}

// Verify checks that the claims were issued at the user's current
// permission version and that the user is still active.
func (s *PermissionVersionService) Verify(ctx context.Context, claims *Claims) error {
	u, err := s.store.GetUser(ctx, claims.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperror.Authentication("Kullanıcı bulunamadı")
	}
	if err != nil {
		return err
	}
	if !u.IsActive {
		return apperror.Authentication("Kullanıcı hesabı devre dışı")
	}
	if u.PermissionVersion != claims.PermissionVersion {
		return apperror.Authentication("Yetkileriniz değişti, lütfen oturumunuzu yenileyin").
			WithFields(map[string]string{"permissionVersion": "güncel değil"})
	}
	return nil
}
