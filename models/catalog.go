package models

// Category is a hierarchical catalog node. A Category and the Family it
// points to always point at each other.
type Category struct {
	Document

	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`

	// Parent is the parent Category id
	Parent string `json:"parent,omitempty"`

	// Family is the Family rooted at this Category
	Family string `json:"family,omitempty"`

	AttributeGroups []string `json:"attributeGroups"`
	Attributes      []string `json:"attributes,omitempty"`
	IsActive        bool     `json:"isActive"`

	Audit
}

// Family is a hierarchical node scoped to a Category and ItemType.
// Attributes is derived from AttributeGroups.
type Family struct {
	Document

	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`

	Parent      string   `json:"parent,omitempty"`
	SubFamilies []string `json:"subFamilies"`
	Category    string   `json:"category,omitempty"`
	ItemType    string   `json:"itemType,omitempty"`

	AttributeGroups []string `json:"attributeGroups"`
	Attributes      []string `json:"attributes"`
	IsActive        bool     `json:"isActive"`

	Audit
}

// NavigationSettings controls how an ItemType appears in navigation.
type NavigationSettings struct {
	ShowInNavbar bool   `json:"showInNavbar"`
	Order        int    `json:"order"`
	Icon         string `json:"icon,omitempty"`
	Path         string `json:"path,omitempty"`
}

// ItemTypeSettings groups the display and workflow settings of an ItemType.
type ItemTypeSettings struct {
	Notifications map[string]interface{} `json:"notifications,omitempty"`
	Permissions   map[string]interface{} `json:"permissions,omitempty"`
	Workflow      map[string]interface{} `json:"workflow,omitempty"`
	Navigation    NavigationSettings     `json:"navigation"`
	Display       map[string]interface{} `json:"display,omitempty"`
}

// ItemType is the top-level schema definition for Items.
type ItemType struct {
	Document

	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`

	Category        string   `json:"category,omitempty"`
	AttributeGroups []string `json:"attributeGroups"`
	Attributes      []string `json:"attributes"`

	Settings       ItemTypeSettings `json:"settings"`
	AssociationIDs []string         `json:"associationIds"`
	IsActive       bool             `json:"isActive"`

	Audit
}

// Association cardinalities.
const (
	CardinalityOneToOne   = "one-to-one"
	CardinalityOneToMany  = "one-to-many"
	CardinalityManyToOne  = "many-to-one"
	CardinalityManyToMany = "many-to-many"
)

// Association is a typed link between ItemTypes. The source and target id
// lists form the adjacency used to resolve an ItemType's outgoing and
// incoming associations.
type Association struct {
	Document

	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	SourceItemTypeIDs []string `json:"sourceItemTypeIds"`
	TargetItemTypeIDs []string `json:"targetItemTypeIds"`

	Cardinality string                 `json:"cardinality"`
	IsRequired  bool                   `json:"isRequired"`
	UISettings  map[string]interface{} `json:"uiSettings,omitempty"`
	IsActive    bool                   `json:"isActive"`

	Audit
}

// Item is an instance of an ItemType. Attributes maps Attribute ids to values.
type Item struct {
	Document

	ItemType   string                 `json:"itemType"`
	Family     string                 `json:"family,omitempty"`
	Category   string                 `json:"category,omitempty"`
	Attributes map[string]interface{} `json:"attributes"`
	IsActive   bool                   `json:"isActive"`

	Audit
}
