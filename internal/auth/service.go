package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/logging"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

const labelUser = "Kullanıcı"

// Session is returned by login, register and token refresh.
type Session struct {
	User models.UserResponse `json:"user"`
	*TokenPair
}

// RegisterInput is the payload of a self registration.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// ProfileInput updates the caller's own profile.
type ProfileInput struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email           *string `json:"email" validate:"omitempty,email"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     *string `json:"newPassword" validate:"omitempty,min=6"`
}

// AccessInput changes a user's role and permissions.
type AccessInput struct {
	Role        *string   `json:"role" validate:"omitempty,oneof=admin editor user viewer"`
	Permissions *[]string `json:"permissions"`
	IsActive    *bool     `json:"isActive"`
}

// Service implements the account operations behind the /auth routes.
type Service struct {
	store    *storage.Storage
	jwt      *JWTService
	versions *PermissionVersionService
	now      func() time.Time
}

// NewService creates an auth service.
func NewService(store *storage.Storage, jwt *JWTService, versions *PermissionVersionService) *Service {
	return &Service{
		store:    store,
		jwt:      jwt,
		versions: versions,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// JWT returns the token service.
func (s *Service) JWT() *JWTService {
	return s.jwt
}

// Versions returns the permission version service.
func (s *Service) Versions() *PermissionVersionService {
	return s.versions
}

// Login authenticates by email and password.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperror.Authentication("E-posta veya şifre hatalı")
	}
	if err != nil {
		return nil, err
	}
	if err := ComparePassword(password, u.PasswordHash); err != nil {
		logging.FromContext(ctx).WithField("userId", u.ID).Warn("failed login attempt")
		return nil, apperror.Authentication("E-posta veya şifre hatalı")
	}
	if !u.IsActive {
		return nil, apperror.Authentication("Kullanıcı hesabı devre dışı")
	}

	now := s.now()
	u.LastLogin = &now
	if err := s.store.SaveUser(ctx, u); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("failed to update last login time")
	}
	return s.session(u)
}

// Register creates an account. The first account becomes an admin; later
// accounts get the user role without permissions.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, apperror.Duplicate(labelUser, "email", email)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	count, err := s.store.CountType(ctx, models.TypeUser, nil)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	role := models.RoleUser
	if count == 0 {
		role = models.RoleAdmin
	}

	u := &models.User{
		Document:     models.Document{ID: models.GenerateID("user")},
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Permissions:  []string{},
		IsActive:     true,
	}
	u.Touch(u.ID, s.now())
	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	return s.session(u)
}

// Refresh exchanges a refresh token for a new token pair minted at the
// user's current permission version.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperror.Authentication("Geçersiz veya süresi dolmuş yenileme anahtarı").WithInternal(err)
	}
	u, err := s.store.GetUser(ctx, claims.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperror.Authentication("Kullanıcı bulunamadı")
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, apperror.Authentication("Kullanıcı hesabı devre dışı")
	}
	return s.session(u)
}

// Me returns the user behind the given id.
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperror.NotFound(labelUser, userID)
	}
	return u, err
}

// RefreshPermissions re-issues tokens for the caller with the permissions
// currently stored on the account.
func (s *Service) RefreshPermissions(ctx context.Context, userID string) (*Session, error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.session(u)
}

// UpdateProfile changes the caller's name, email or password. A password
// change requires the current password.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email != u.Email {
			if other, err := s.store.GetUserByEmail(ctx, email); err == nil && other.ID != u.ID {
				return nil, apperror.Duplicate(labelUser, "email", email)
			}
			u.Email = email
		}
	}
	if in.NewPassword != nil {
		if err := ComparePassword(in.CurrentPassword, u.PasswordHash); err != nil {
			return nil, apperror.Validation("Mevcut şifre hatalı").
				WithFields(map[string]string{"currentPassword": "hatalı"})
		}
		hash, err := HashPassword(*in.NewPassword)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	u.Touch(userID, s.now())
	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	return u, nil
}

// UpdateAccess changes a user's role, permissions or active flag and
// invalidates the tokens issued under the previous permissions.
func (s *Service) UpdateAccess(ctx context.Context, userID string, in AccessInput, actorID string) (*models.User, error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.Permissions != nil {
		u.Permissions = *in.Permissions
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	u.Touch(actorID, s.now())
	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	if _, err := s.versions.InvalidateUserPermissions(ctx, u.ID); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, u.ID)
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *Service) session(u *models.User) (*Session, error) {
	pair, err := s.jwt.GenerateTokenPair(u)
	if errors.Is(err, ErrUserDisabled) {
		return nil, apperror.Authentication("Kullanıcı hesabı devre dışı")
	}
	if err != nil {
		return nil, err
	}
	return &Session{User: u.ToResponse(), TokenPair: pair}, nil
}
