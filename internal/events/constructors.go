package events

import (
	"time"

	"github.com/google/uuid"
)

// NewBatchStartedEvent creates an AuditEntry for the start of a batch with type-safe data.
func NewBatchStartedEvent(message string, data BatchStartedData) (*AuditEntry, error) {
	entry := &AuditEntry{
		ID:        uuid.New().String(),
		CheckID:   data.BatchID,
		Type:      EventTypeBatchStarted,
		Timestamp: time.Now(),
		Severity:  SeverityInfo,
		Message:   message,
	}
	if err := entry.SetBatchStartedData(data); err != nil {
		return nil, err
	}
	return entry, nil
}

// NewBatchCompletedEvent creates an AuditEntry for the end of a batch with type-safe data.
// Batches with fail-safe results are recorded at warning severity.
func NewBatchCompletedEvent(message string, data BatchCompletedData) (*AuditEntry, error) {
	severity := SeverityInfo
	if data.FailSafeCount > 0 {
		severity = SeverityWarning
	}
	entry := &AuditEntry{
		ID:        uuid.New().String(),
		CheckID:   data.BatchID,
		Sequence:  1,
		Type:      EventTypeBatchCompleted,
		Timestamp: time.Now(),
		Severity:  severity,
		Message:   message,
	}
	if err := entry.SetBatchCompletedData(data); err != nil {
		return nil, err
	}
	return entry, nil
}
