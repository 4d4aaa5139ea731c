// Package integrity detects and repairs broken cross-document links in the
// catalog: references to deleted documents, categories and families that
// no longer point at each other, and attribute closures that drifted from
// their attribute groups.
package integrity

import (
	"time"
)

// IssueType represents the type of integrity issue detected.
type IssueType string

const (
	// IssueDanglingReference is a reference to a document that no longer exists
	IssueDanglingReference IssueType = "dangling_reference"

	// IssueFamilyDesync is a Category and Family that do not point at each other
	IssueFamilyDesync IssueType = "family_desync"

	// IssueClosureDrift is a Family or ItemType whose attributes differ from
	// the union of its attribute groups
	IssueClosureDrift IssueType = "closure_drift"

	// IssueDuplicateCode is a document whose code is already used by
	// another document of the same type
	IssueDuplicateCode IssueType = "duplicate_code"
)

// Severity represents how critical an issue is.
type Severity string

const (
	// SeverityLow indicates a minor issue that doesn't affect functionality
	SeverityLow Severity = "low"

	// SeverityMedium indicates an issue that may cause problems
	SeverityMedium Severity = "medium"

	// SeverityHigh indicates an issue that breaks reads or writes of the document
	SeverityHigh Severity = "high"
)

// ScanReport contains the results of an integrity scan.
type ScanReport struct {
	ID               string        `json:"id"`
	Timestamp        time.Time     `json:"timestamp"`
	Duration         time.Duration `json:"duration"`
	DocumentsScanned int           `json:"documentsScanned"`
	Issues           []Issue       `json:"issues"`
	Summary          ScanSummary   `json:"summary"`
}

// ScanSummary provides aggregated scan statistics.
type ScanSummary struct {
	TotalIssues int               `json:"totalIssues"`
	ByType      map[IssueType]int `json:"byType"`
	BySeverity  map[Severity]int  `json:"bySeverity"`

	// HealthScore is a 0-100 score indicating catalog health
	HealthScore int `json:"healthScore"`
}

// Issue represents a single integrity problem.
type Issue struct {
	Type         IssueType `json:"type"`
	Severity     Severity  `json:"severity"`
	DocumentID   string    `json:"documentId"`
	DocumentType string    `json:"documentType"`

	// Field is the document field holding the broken value
	Field string `json:"field,omitempty"`

	// Value is the referenced id, when the issue is about one
	Value string `json:"value,omitempty"`

	Description string `json:"description"`
}

// OperationType categorizes repair operations.
type OperationType string

const (
	// OpDropReference removes a value from a field
	OpDropReference OperationType = "drop_reference"

	// OpRelinkCategory re-runs the Category to Family sync for a category
	OpRelinkCategory OperationType = "relink_category"

	// OpRefreshFamilyClosure recomputes a family's attributes
	OpRefreshFamilyClosure OperationType = "refresh_family_closure"

	// OpRefreshItemTypeClosure recomputes an item type's attributes
	OpRefreshItemTypeClosure OperationType = "refresh_itemtype_closure"
)

// RepairOperation represents a single repair action.
type RepairOperation struct {
	Type         OperationType `json:"type"`
	DocumentID   string        `json:"documentId"`
	DocumentType string        `json:"documentType"`
	Field        string        `json:"field,omitempty"`
	Value        string        `json:"value,omitempty"`
}

// RepairPlan contains a sequence of operations to fix issues.
type RepairPlan struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	ScanID     string            `json:"scanId"`
	Operations []RepairOperation `json:"operations"`

	// Unresolved lists issues no operation can fix automatically
	Unresolved []Issue `json:"unresolved,omitempty"`
}

// RepairResult contains the outcome of executing a repair plan.
type RepairResult struct {
	PlanID       string            `json:"planId"`
	StartTime    time.Time         `json:"startTime"`
	EndTime      time.Time         `json:"endTime"`
	Operations   []OperationResult `json:"operations"`
	SuccessCount int               `json:"successCount"`
	FailureCount int               `json:"failureCount"`
	DryRun       bool              `json:"dryRun"`
}

// OperationResult contains the outcome of a single operation.
type OperationResult struct {
	Operation RepairOperation `json:"operation"`
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
}
