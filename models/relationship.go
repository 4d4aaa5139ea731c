package models

import "time"

// RelationshipStatus is the lifecycle state of a Relationship.
type RelationshipStatus string

const (
	RelationshipActive   RelationshipStatus = "active"
	RelationshipInactive RelationshipStatus = "inactive"
	RelationshipPending  RelationshipStatus = "pending"
	RelationshipArchived RelationshipStatus = "archived"
)

// Valid reports whether s is a known status.
func (s RelationshipStatus) Valid() bool {
	switch s {
	case RelationshipActive, RelationshipInactive, RelationshipPending, RelationshipArchived:
		return true
	}
	return false
}

// RelationshipType declares which entity kinds may be linked.
type RelationshipType struct {
	Document

	Code               string   `json:"code"`
	Name               string   `json:"name"`
	Description        string   `json:"description,omitempty"`
	IsDirectional      bool     `json:"isDirectional"`
	AllowedSourceTypes []string `json:"allowedSourceTypes"`
	AllowedTargetTypes []string `json:"allowedTargetTypes"`

	// AttributeSchema is an optional JSON schema for Relationship.Attributes
	AttributeSchema map[string]interface{} `json:"attributeSchema,omitempty"`

	Audit
}

// AllowsSource reports whether entityType may be used as a source.
func (rt *RelationshipType) AllowsSource(entityType string) bool {
	return containsString(rt.AllowedSourceTypes, entityType)
}

// AllowsTarget reports whether entityType may be used as a target.
func (rt *RelationshipType) AllowsTarget(entityType string) bool {
	return containsString(rt.AllowedTargetTypes, entityType)
}

// Relationship is a typed edge between two arbitrary entities.
type Relationship struct {
	Document

	RelationshipTypeID string `json:"relationshipTypeId"`

	SourceEntityID   string `json:"sourceEntityId"`
	SourceEntityType string `json:"sourceEntityType"`
	TargetEntityID   string `json:"targetEntityId"`
	TargetEntityType string `json:"targetEntityType"`

	StartDate time.Time          `json:"startDate"`
	EndDate   *time.Time         `json:"endDate,omitempty"`
	Status    RelationshipStatus `json:"status"`
	Priority  int                `json:"priority"`

	Attributes map[string]interface{} `json:"attributes,omitempty"`

	Audit
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
