package integrity

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"evalgo.org/mdm/internal/logging"
)

// maxAuditEntries bounds the in-memory audit trail.
const maxAuditEntries = 100

// AuditEntry records an integrity operation for auditing.
type AuditEntry struct {
	Timestamp     time.Time              `json:"timestamp"`
	OperationType string                 `json:"operationType"`
	ReferenceID   string                 `json:"referenceId"`
	Success       bool                   `json:"success"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// AuditLogger records scans and repairs to the structured log and keeps
// the most recent entries in memory.
type AuditLogger struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{entries: make([]AuditEntry, 0, maxAuditEntries)}
}

// LogScan records a scan operation.
func (a *AuditLogger) LogScan(ctx context.Context, report *ScanReport) {
	a.record(ctx, AuditEntry{
		Timestamp:     report.Timestamp,
		OperationType: "scan",
		ReferenceID:   report.ID,
		Success:       true,
		Details: map[string]interface{}{
			"durationMs":       report.Duration.Milliseconds(),
			"documentsScanned": report.DocumentsScanned,
			"issuesFound":      report.Summary.TotalIssues,
			"healthScore":      report.Summary.HealthScore,
		},
	})
}

// LogRepair records a plan execution.
func (a *AuditLogger) LogRepair(ctx context.Context, result *RepairResult) {
	changed := make([]string, 0, len(result.Operations))
	for _, op := range result.Operations {
		if op.Success && !result.DryRun {
			changed = append(changed, op.Operation.DocumentID)
		}
	}
	a.record(ctx, AuditEntry{
		Timestamp:     result.EndTime,
		OperationType: "repair",
		ReferenceID:   result.PlanID,
		Success:       result.FailureCount == 0,
		Details: map[string]interface{}{
			"successCount": result.SuccessCount,
			"failureCount": result.FailureCount,
			"dryRun":       result.DryRun,
			"documents":    changed,
		},
	})
}

// Entries returns the recorded entries, oldest first.
func (a *AuditLogger) Entries() []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]AuditEntry(nil), a.entries...)
}

func (a *AuditLogger) record(ctx context.Context, entry AuditEntry) {
	logging.FromContext(ctx).WithFields(logrus.Fields{
		"audit":     "integrity",
		"operation": entry.OperationType,
		"reference": entry.ReferenceID,
		"success":   entry.Success,
	}).WithFields(logrus.Fields(entry.Details)).Info("integrity audit")

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) == maxAuditEntries {
		a.entries = append(a.entries[:0], a.entries[1:]...)
	}
	a.entries = append(a.entries, entry)
}

// Audit returns the service's audit trail.
func (s *Service) Audit() []AuditEntry {
	return s.audit.Entries()
}
