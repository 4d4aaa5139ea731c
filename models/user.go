package models

import "time"

// Role names.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleUser   = "user"
	RoleViewer = "viewer"
)

// PermissionAll grants every permission.
const PermissionAll = "*"

// User is an account that can call the API.
type User struct {
	Document

	Name  string `json:"name"`
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash; it is never returned by the API
	PasswordHash string `json:"password,omitempty"`

	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`

	// PermissionVersion increments whenever the user's effective
	// permissions change. Tokens carrying an older version are rejected.
	PermissionVersion int `json:"permissionVersion"`

	IsActive  bool       `json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`

	Audit
}

// UserResponse is the public view of a User.
type UserResponse struct {
	ID                string     `json:"_id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Role              string     `json:"role"`
	Permissions       []string   `json:"permissions"`
	PermissionVersion int        `json:"permissionVersion"`
	IsActive          bool       `json:"isActive"`
	LastLogin         *time.Time `json:"lastLogin,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// ToResponse strips secrets from u.
func (u *User) ToResponse() UserResponse {
	perms := u.Permissions
	if perms == nil {
		perms = []string{}
	}
	return UserResponse{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		Role:              u.Role,
		Permissions:       perms,
		PermissionVersion: u.PermissionVersion,
		IsActive:          u.IsActive,
		LastLogin:         u.LastLogin,
		CreatedAt:         u.CreatedAt,
	}
}

// HasPermission reports whether the user holds perm.
func (u *User) HasPermission(perm string) bool {
	if u.Role == RoleAdmin {
		return true
	}
	for _, p := range u.Permissions {
		if p == perm || p == PermissionAll {
			return true
		}
	}
	return false
}
