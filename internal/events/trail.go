package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trail is the append-only audit trail of one check. It enforces the stage
// machine: Record fails on a transition CanTransition rejects. A Trail is not
// safe for concurrent use; a check owns its trail.
type Trail struct {
	checkID string
	stage   Stage
	entries []AuditEntry
	now     func() time.Time
}

// NewTrail starts an empty trail for checkID.
func NewTrail(checkID string) *Trail {
	return &Trail{checkID: checkID, now: time.Now}
}

// Record appends an entry for entering stage. snapshot must marshal to a JSON
// object (a struct or map) or be nil.
func (t *Trail) Record(stage Stage, severity EventSeverity, message string, snapshot interface{}) error {
	if !CanTransition(t.stage, stage) {
		return fmt.Errorf("invalid stage transition %q -> %q", t.stage, stage)
	}

	var data map[string]interface{}
	if snapshot != nil {
		var err error
		data, err = structToMap(snapshot)
		if err != nil {
			return fmt.Errorf("snapshot for stage %s: %w", stage, err)
		}
	}

	t.entries = append(t.entries, AuditEntry{
		ID:        uuid.New().String(),
		CheckID:   t.checkID,
		Sequence:  len(t.entries),
		Type:      EventTypeForStage(stage),
		Stage:     stage,
		Timestamp: t.now().UTC(),
		Severity:  severity,
		Message:   message,
		Data:      data,
	})
	t.stage = stage
	return nil
}

// Fail records the terminal FAILED entry. It succeeds from any non-terminal
// stage; a snapshot that cannot be serialized is replaced by the error text.
func (t *Trail) Fail(message string, snapshot interface{}) error {
	if err := t.Record(StageFailed, SeverityCritical, message, snapshot); err != nil {
		if t.stage.IsTerminal() {
			return err
		}
		return t.Record(StageFailed, SeverityCritical, message, map[string]interface{}{"snapshot_error": err.Error()})
	}
	return nil
}

// Stage returns the stage of the last recorded entry, or "" for an empty trail.
func (t *Trail) Stage() Stage { return t.stage }

// CheckID returns the check the trail belongs to.
func (t *Trail) CheckID() string { return t.checkID }

// Len returns the number of recorded entries.
func (t *Trail) Len() int { return len(t.entries) }

// Entries returns a copy of the recorded entries in order.
func (t *Trail) Entries() []AuditEntry {
	out := make([]AuditEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
