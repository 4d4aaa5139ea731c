package models

import "time"

// HistoryAction is the kind of mutation a History row records.
type HistoryAction string

const (
	ActionCreate             HistoryAction = "create"
	ActionUpdate             HistoryAction = "update"
	ActionDelete             HistoryAction = "delete"
	ActionRestore            HistoryAction = "restore"
	ActionRelationshipAdd    HistoryAction = "relationship_add"
	ActionRelationshipRemove HistoryAction = "relationship_remove"
)

// Valid reports whether a is a known action.
func (a HistoryAction) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionRestore, ActionRelationshipAdd, ActionRelationshipRemove:
		return true
	}
	return false
}

// AffectedRole tags an entity listed on a History row.
type AffectedRole string

const (
	RolePrimary   AffectedRole = "primary"
	RoleSecondary AffectedRole = "secondary"
)

// AffectedEntity is one entity touched by a recorded mutation.
type AffectedEntity struct {
	EntityID   string       `json:"entityId"`
	EntityType EntityType   `json:"entityType"`
	EntityName string       `json:"entityName,omitempty"`
	Role       AffectedRole `json:"role"`
}

// History is an append-only audit row.
type History struct {
	Document

	EntityID   string        `json:"entityId"`
	EntityType EntityType    `json:"entityType"`
	EntityName string        `json:"entityName"`
	Action     HistoryAction `json:"action"`

	AffectedEntities []AffectedEntity `json:"affectedEntities"`

	PreviousData   interface{}            `json:"previousData,omitempty"`
	NewData        interface{}            `json:"newData,omitempty"`
	AdditionalInfo map[string]interface{} `json:"additionalInfo,omitempty"`

	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// EntityRegistryEntry caches the display identity of an entity so history
// rows can be named without loading the entity itself.
type EntityRegistryEntry struct {
	Document

	EntityID   string     `json:"entityId"`
	EntityType EntityType `json:"entityType"`
	Name       string     `json:"name"`
	Code       string     `json:"code,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// RegistryID returns the document id of the registry entry for entityID.
func RegistryID(entityID string) string {
	return "registry:" + entityID
}
