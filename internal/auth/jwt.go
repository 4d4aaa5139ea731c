// Package auth provides authentication and authorization for the MDM API.
// It issues and validates JWT access and refresh tokens, hashes passwords,
// and tracks a per-user permission version so that tokens minted before a
// permission change stop being accepted.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"evalgo.org/mdm/internal/config"
	"evalgo.org/mdm/models"
)

var (
	// ErrInvalidToken is returned when a JWT token is invalid
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a JWT token has expired
	ErrExpiredToken = errors.New("token has expired")
	// ErrInvalidCredentials is returned when credentials are incorrect
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserDisabled is returned when a user account is disabled
	ErrUserDisabled = errors.New("user account is disabled")
)

const (
	tokenKindAccess  = "access"
	tokenKindRefresh = "refresh"
	issuer           = "mdm"
)

// Claims represents JWT custom claims
type Claims struct {
	ID                string   `json:"id"`
	Role              string   `json:"role"`
	Permissions       []string `json:"permissions"`
	PermissionVersion int      `json:"permissionVersion"`
	Kind              string   `json:"kind"`
	jwt.RegisteredClaims
}

// HasPermission reports whether the token grants perm.
func (c *Claims) HasPermission(perm string) bool {
	if c.Role == models.RoleAdmin {
		return true
	}
	for _, p := range c.Permissions {
		if p == perm || p == models.PermissionAll {
			return true
		}
	}
	return false
}

// TokenPair represents an access token and refresh token
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	TokenType    string    `json:"tokenType"` // "Bearer"
}

// JWTService provides JWT authentication services
type JWTService struct {
	secret                 []byte
	refreshSecret          []byte
	expiration             time.Duration
	refreshTokenExpiration time.Duration
	now                    func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.SecurityConfig) *JWTService {
	refresh := cfg.JWTRefreshSecret
	if refresh == "" {
		refresh = cfg.JWTSecret
	}
	return &JWTService{
		secret:                 []byte(cfg.JWTSecret),
		refreshSecret:          []byte(refresh),
		expiration:             cfg.JWTExpiration,
		refreshTokenExpiration: cfg.RefreshTokenExpiration,
		now:                    time.Now,
	}
}

// GenerateToken generates a new JWT access token for a user
func (s *JWTService) GenerateToken(user *models.User) (string, error) {
	if !user.IsActive {
		return "", ErrUserDisabled
	}
	return s.sign(user, tokenKindAccess, s.expiration, s.secret)
}

// GenerateRefreshToken generates a refresh token for a user. Refresh tokens
// are signed with their own secret and cannot be used as access tokens.
func (s *JWTService) GenerateRefreshToken(user *models.User) (string, error) {
	if !user.IsActive {
		return "", ErrUserDisabled
	}
	return s.sign(user, tokenKindRefresh, s.refreshTokenExpiration, s.refreshSecret)
}

func (s *JWTService) sign(user *models.User, kind string, ttl time.Duration, secret []byte) (string, error) {
	now := s.now()
	perms := user.Permissions
	if perms == nil {
		perms = []string{}
	}

	claims := Claims{
		ID:                user.ID,
		Role:              user.Role,
		Permissions:       perms,
		PermissionVersion: user.PermissionVersion,
		Kind:              kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates an access token and returns the claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, s.secret, tokenKindAccess)
}

// ValidateRefreshToken validates a refresh token and returns the claims
func (s *JWTService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, s.refreshSecret, tokenKindRefresh)
}

func (s *JWTService) parse(tokenString string, secret []byte, kind string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Kind != kind || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateTokenPair generates both access and refresh tokens
func (s *JWTService) GenerateTokenPair(user *models.User) (*TokenPair, error) {
	accessToken, err := s.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    s.now().Add(s.expiration),
		TokenType:    "Bearer",
	}, nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword compares a password with its hash
func ComparePassword(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}
