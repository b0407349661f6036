// Package events defines the audit trail a duplicate check builds as it moves
// through its stages. Entries are returned to the caller inside the check
// result; this package never persists them.
package events

import "time"

// Stage is a state of a single duplicate check.
type Stage string

const (
	StageInitialized    Stage = "INITIALIZED"
	StageValidated      Stage = "VALIDATED"
	StageExactMatched   Stage = "EXACT_MATCHED"
	StageFuzzyAnalyzed  Stage = "FUZZY_ANALYZED"
	StageClustered      Stage = "CLUSTERED"
	StageContextualized Stage = "CONTEXTUALIZED"
	StageScored         Stage = "SCORED"
	StageCompleted      Stage = "COMPLETED"
	StageFailed         Stage = "FAILED"
)

// IsValid checks if the stage value is valid
func (s Stage) IsValid() bool {
	switch s {
	case StageInitialized, StageValidated, StageExactMatched, StageFuzzyAnalyzed, StageClustered,
		StageContextualized, StageScored, StageCompleted, StageFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// CanTransition reports whether a check in stage from may move to stage to.
// The empty stage is the state of a trail with no entries yet.
//
//	INITIALIZED -> VALIDATED -> EXACT_MATCHED -> COMPLETED
//	                         -> FUZZY_ANALYZED -> CLUSTERED -> CONTEXTUALIZED -> SCORED -> COMPLETED
//
// FAILED is reachable from every non-terminal stage.
func CanTransition(from, to Stage) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	switch from {
	case "":
		return to == StageInitialized
	case StageInitialized:
		return to == StageValidated
	case StageValidated:
		return to == StageExactMatched || to == StageFuzzyAnalyzed
	case StageExactMatched:
		return to == StageCompleted
	case StageFuzzyAnalyzed:
		return to == StageClustered
	case StageClustered:
		return to == StageContextualized
	case StageContextualized:
		return to == StageScored
	case StageScored:
		return to == StageCompleted
	}
	return false
}

// EventType identifies what an audit entry records.
type EventType string

const (
	// EventTypeCheckStarted is recorded when a check is created
	EventTypeCheckStarted EventType = "check_started"
	// EventTypeInputValidated is recorded once the candidate passed validation
	EventTypeInputValidated EventType = "input_validated"
	// EventTypeExactMatchFound is recorded when the exact-match fast path fired
	EventTypeExactMatchFound EventType = "exact_match_found"
	// EventTypeFuzzyAnalysisCompleted carries the fuzzy matcher evidence
	EventTypeFuzzyAnalysisCompleted EventType = "fuzzy_analysis_completed"
	// EventTypeClusterAnalysisCompleted carries temporal, supplier and line-item evidence
	EventTypeClusterAnalysisCompleted EventType = "cluster_analysis_completed"
	// EventTypeContextualAnalysisCompleted carries the false-positive analysis
	EventTypeContextualAnalysisCompleted EventType = "contextual_analysis_completed"
	// EventTypeConfidenceScored carries the confidence breakdown and classification
	EventTypeConfidenceScored EventType = "confidence_scored"
	// EventTypeCheckCompleted is the terminal entry of a successful check
	EventTypeCheckCompleted EventType = "check_completed"
	// EventTypeCheckFailed is the terminal entry of a check that fell back to the fail-safe result
	EventTypeCheckFailed EventType = "check_failed"

	// EventTypeBatchStarted is recorded when a batch of candidates starts
	EventTypeBatchStarted EventType = "batch_started"
	// EventTypeBatchCompleted is recorded when a batch of candidates finishes
	EventTypeBatchCompleted EventType = "batch_completed"
)

// EventTypeForStage returns the event type recorded on entering stage.
func EventTypeForStage(stage Stage) EventType {
	switch stage {
	case StageInitialized:
		return EventTypeCheckStarted
	case StageValidated:
		return EventTypeInputValidated
	case StageExactMatched:
		return EventTypeExactMatchFound
	case StageFuzzyAnalyzed:
		return EventTypeFuzzyAnalysisCompleted
	case StageClustered:
		return EventTypeClusterAnalysisCompleted
	case StageContextualized:
		return EventTypeContextualAnalysisCompleted
	case StageScored:
		return EventTypeConfidenceScored
	case StageCompleted:
		return EventTypeCheckCompleted
	case StageFailed:
		return EventTypeCheckFailed
	}
	return ""
}

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates potentially problematic events
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
	// SeverityCritical indicates critical events requiring immediate attention
	SeverityCritical EventSeverity = "critical"
)

// AuditEntry is one step of a check's audit trail.
type AuditEntry struct {
	// ID is the unique identifier for this entry
	ID string `json:"id"`
	// CheckID ties the entry to the check result that owns it
	CheckID string `json:"check_id"`
	// Sequence is the 0-based position of the entry in its trail
	Sequence int `json:"sequence"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Stage is the stage the check entered
	Stage Stage `json:"stage"`
	// Timestamp is when the entry was recorded
	Timestamp time.Time `json:"timestamp"`
	// Severity is the severity level of this entry
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the step
	Message string `json:"message"`
	// Data is the JSON snapshot of the step's output
	Data map[string]interface{} `json:"data,omitempty"`
}

// BatchStartedData contains structured data for batch start events.
type BatchStartedData struct {
	// BatchID identifies the batch
	BatchID string `json:"batch_id"`
	// CandidateCount is the number of candidates in the batch
	CandidateCount int `json:"candidate_count"`
	// HistoricalCount is the size of the comparison set before the batch
	HistoricalCount int `json:"historical_count"`
}

// BatchCompletedData contains structured data for batch completion events.
type BatchCompletedData struct {
	// BatchID identifies the batch
	BatchID string `json:"batch_id"`
	// CandidateCount is the number of candidates checked
	CandidateCount int `json:"candidate_count"`
	// DuplicateCount is the number of candidates flagged as duplicates
	DuplicateCount int `json:"duplicate_count"`
	// WithinBatchCount is the number of duplicates of an earlier batch member
	WithinBatchCount int `json:"within_batch_count"`
	// FailSafeCount is the number of candidates that fell back to the fail-safe result
	FailSafeCount int `json:"fail_safe_count"`
	// ProcessingTimeMs is how long the batch took
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}
