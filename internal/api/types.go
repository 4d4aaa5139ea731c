package api

import (
	"evalgo.org/mdm/internal/catalog"
	"evalgo.org/mdm/internal/integrity"
)

// DataResponse wraps a single resource.
type DataResponse struct {
	Success  bool                  `json:"success"`
	Data     interface{}           `json:"data"`
	Message  string                `json:"message,omitempty"`
	Warnings []catalog.SyncFailure `json:"warnings,omitempty"`
}

// MessageResponse represents a simple message response.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the body of POST /api/auth/refresh-token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// AttributeGroupsRequest replaces the groups an attribute belongs to.
type AttributeGroupsRequest struct {
	AttributeGroups []string `json:"attributeGroups"`
}

// StatusRequest is the body of PATCH /api/relationships/:id/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive pending archived"`
}

// LocalizationRequest creates or updates a translation key.
type LocalizationRequest struct {
	Key          string            `json:"key" validate:"required"`
	Namespace    string            `json:"namespace"`
	Translations map[string]string `json:"translations" validate:"required,min=1"`
}

// HistoryPage is one page of history rows.
type HistoryPage struct {
	Success bool        `json:"success"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Skip    int         `json:"skip"`
	Data    interface{} `json:"data"`
}

// RepairResponse reports the plan an integrity repair ran and its outcome.
type RepairResponse struct {
	Success bool                    `json:"success"`
	Plan    *integrity.RepairPlan   `json:"plan"`
	Result  *integrity.RepairResult `json:"result"`
}
