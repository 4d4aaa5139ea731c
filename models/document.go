// Package models defines the documents stored by the MDM catalog.
//
// Every document carries a CouchDB style _id and _rev plus an @type
// discriminator used by the storage selectors. References between catalog
// entities are stored as plain document ids and populated at read time.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Document @type values.
const (
	TypeAttribute        = "Attribute"
	TypeAttributeGroup   = "AttributeGroup"
	TypeCategory         = "Category"
	TypeFamily           = "Family"
	TypeItemType         = "ItemType"
	TypeAssociation      = "Association"
	TypeItem             = "Item"
	TypeRelationshipType = "RelationshipType"
	TypeRelationship     = "Relationship"
	TypeHistory          = "History"
	TypeLocalization     = "Localization"
	TypeRegistryEntry    = "EntityRegistryEntry"
	TypeUser             = "User"
)

// EntityType names the kinds of entity that appear in history rows, the
// entity registry and relationship allow-lists.
type EntityType string

const (
	EntityAttribute        EntityType = "attribute"
	EntityAttributeGroup   EntityType = "attributeGroup"
	EntityCategory         EntityType = "category"
	EntityFamily           EntityType = "family"
	EntityItemType         EntityType = "itemType"
	EntityAssociation      EntityType = "association"
	EntityItem             EntityType = "item"
	EntityRelationship     EntityType = "relationship"
	EntityRelationshipType EntityType = "relationshipType"
	EntityLocalization     EntityType = "localization"
	EntityUser             EntityType = "user"
)

// Document holds the fields shared by every stored document.
type Document struct {
	// ID is the document identifier (maps to CouchDB _id)
	ID string `json:"_id" couchdb:"_id"`

	// Rev is the CouchDB document revision used for check-and-set writes
	Rev string `json:"_rev,omitempty" couchdb:"_rev"`

	// Type is the document discriminator
	Type string `json:"@type"`
}

// DocID returns the document id.
func (d *Document) DocID() string { return d.ID }

// DocRev returns the revision the document was read at.
func (d *Document) DocRev() string { return d.Rev }

// SetRev records the revision assigned by the store after a write.
func (d *Document) SetRev(rev string) { d.Rev = rev }

// DocType returns the @type discriminator.
func (d *Document) DocType() string { return d.Type }

// Audit carries authorship and timestamps.
type Audit struct {
	CreatedBy string    `json:"createdBy,omitempty"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Touch stamps the audit fields for a write by userID.
func (a *Audit) Touch(userID string, now time.Time) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
		if a.CreatedBy == "" {
			a.CreatedBy = userID
		}
	}
	a.UpdatedAt = now
	if userID != "" {
		a.UpdatedBy = userID
	}
}

// GenerateID generates a unique ID with the given prefix
// Example: GenerateID("attribute") -> "attribute:uuid-here"
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s:%s", prefix, uuid.New().String())
}
