package catalog

import "evalgo.org/mdm/models"

// Write payloads. Pointer fields distinguish "not sent" from "sent empty":
// a nil field leaves the stored value alone on update.

// AttributeInput is the create/update payload of an Attribute.
type AttributeInput struct {
	Rev            string                 `json:"_rev,omitempty"`
	Name           *models.LocalizedInput `json:"name"`
	Code           *string                `json:"code" validate:"omitempty,min=1,max=100"`
	Type           *models.AttributeType  `json:"type" validate:"omitempty,oneof=text number date boolean select multiselect"`
	Description    *models.LocalizedInput `json:"description"`
	IsRequired     *bool                  `json:"isRequired"`
	Options        *[]string              `json:"options"`
	AttributeGroup *string                `json:"attributeGroup"`
	Validations    map[string]interface{} `json:"validations"`
	IsActive       *bool                  `json:"isActive"`
}

// AttributeGroupInput is the create/update payload of an AttributeGroup.
type AttributeGroupInput struct {
	Rev         string                 `json:"_rev,omitempty"`
	Name        *models.LocalizedInput `json:"name"`
	Code        *string                `json:"code" validate:"omitempty,min=1,max=100"`
	Description *models.LocalizedInput `json:"description"`
	Attributes  *[]string              `json:"attributes"`
	IsActive    *bool                  `json:"isActive"`
}

// CategoryInput is the create/update payload of a Category. An empty
// Family or Parent removes the pointer.
type CategoryInput struct {
	Rev             string                 `json:"_rev,omitempty"`
	Name            *models.LocalizedInput `json:"name"`
	Code            *string                `json:"code" validate:"omitempty,min=1,max=100"`
	Description     *models.LocalizedInput `json:"description"`
	Parent          *string                `json:"parent"`
	Family          *string                `json:"family"`
	AttributeGroups *[]string              `json:"attributeGroups"`
	Attributes      *[]string              `json:"attributes"`
	IsActive        *bool                  `json:"isActive"`
}

// FamilyInput is the create/update payload of a Family.
type FamilyInput struct {
	Rev             string                 `json:"_rev,omitempty"`
	Name            *models.LocalizedInput `json:"name"`
	Code            *string                `json:"code" validate:"omitempty,min=1,max=100"`
	Description     *models.LocalizedInput `json:"description"`
	Parent          *string                `json:"parent"`
	Category        *string                `json:"category"`
	ItemType        *string                `json:"itemType"`
	AttributeGroups *[]string              `json:"attributeGroups"`
	Attributes      *[]string              `json:"attributes"`
	IsActive        *bool                  `json:"isActive"`
}

// ItemTypeInput is the create/update payload of an ItemType.
type ItemTypeInput struct {
	Rev             string                   `json:"_rev,omitempty"`
	Name            *models.LocalizedInput   `json:"name"`
	Code            *string                  `json:"code" validate:"omitempty,min=1,max=100"`
	Description     *models.LocalizedInput   `json:"description"`
	Category        *string                  `json:"category"`
	AttributeGroups *[]string                `json:"attributeGroups"`
	Attributes      *[]string                `json:"attributes"`
	Settings        *models.ItemTypeSettings `json:"settings"`
	AssociationIDs  *[]string                `json:"associationIds"`
	IsActive        *bool                    `json:"isActive"`
}

// AssociationInput is the create/update payload of an Association.
type AssociationInput struct {
	Rev               string                 `json:"_rev,omitempty"`
	Code              *string                `json:"code" validate:"omitempty,min=1,max=100"`
	Name              *models.LocalizedInput `json:"name"`
	Description       *models.LocalizedInput `json:"description"`
	SourceItemTypeIDs *[]string              `json:"sourceItemTypeIds"`
	TargetItemTypeIDs *[]string              `json:"targetItemTypeIds"`
	Cardinality       *string                `json:"cardinality" validate:"omitempty,oneof=one-to-one one-to-many many-to-one many-to-many"`
	IsRequired        *bool                  `json:"isRequired"`
	UISettings        map[string]interface{} `json:"uiSettings"`
	IsActive          *bool                  `json:"isActive"`
}

// ItemInput is the create/update payload of an Item.
type ItemInput struct {
	Rev        string                 `json:"_rev,omitempty"`
	ItemType   *string                `json:"itemType"`
	Family     *string                `json:"family"`
	Category   *string                `json:"category"`
	Attributes map[string]interface{} `json:"attributes"`
	IsActive   *bool                  `json:"isActive"`
}

func stringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func boolValue(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func listValue(p *[]string) []string {
	if p == nil {
		return nil
	}
	return *p
}
