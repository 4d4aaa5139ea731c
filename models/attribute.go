package models

// AttributeType is the value type of an Attribute.
type AttributeType string

const (
	AttributeText        AttributeType = "text"
	AttributeNumber      AttributeType = "number"
	AttributeDate        AttributeType = "date"
	AttributeBoolean     AttributeType = "boolean"
	AttributeSelect      AttributeType = "select"
	AttributeMultiSelect AttributeType = "multiselect"
)

// Valid reports whether t is a known attribute type.
func (t AttributeType) Valid() bool {
	switch t {
	case AttributeText, AttributeNumber, AttributeDate, AttributeBoolean, AttributeSelect, AttributeMultiSelect:
		return true
	}
	return false
}

// Attribute is a typed field definition referenced by groups, categories,
// families and item types.
//
// Example JSON representation:
//
//	{
//	  "_id": "attribute:6f1c...",
//	  "@type": "Attribute",
//	  "name": "localization:attribute.name:color",
//	  "code": "color",
//	  "type": "select",
//	  "isRequired": true,
//	  "options": ["Red", "Blue"],
//	  "validations": {"minSelections": 1, "maxSelections": 1},
//	  "isActive": true
//	}
type Attribute struct {
	Document

	// Name references a Localization document
	Name string `json:"name"`

	// Code is unique across attributes
	Code string `json:"code"`

	// ValueType is the kind of value items store for this attribute
	ValueType AttributeType `json:"type"`

	// Description references a Localization document
	Description string `json:"description,omitempty"`

	IsRequired bool     `json:"isRequired"`
	Options    []string `json:"options"`

	// AttributeGroup is the legacy single-group pointer. Group membership is
	// owned by AttributeGroup.Attributes.
	AttributeGroup string `json:"attributeGroup,omitempty"`

	// Validations holds the type specific rule set. It is never stored empty.
	Validations map[string]interface{} `json:"validations,omitempty"`

	IsActive bool `json:"isActive"`

	Audit
}

// AttributeGroup is a named set of attributes. Its Attributes list is the
// authoritative membership edge.
type AttributeGroup struct {
	Document

	Name        string   `json:"name"`
	Code        string   `json:"code"`
	Description string   `json:"description,omitempty"`
	Attributes  []string `json:"attributes"`
	IsActive    bool     `json:"isActive"`

	Audit
}
