package deduplication

import (
	"fmt"
	"time"

	"github.com/steveyegge/dupcheck/internal/events"
	"github.com/steveyegge/dupcheck/internal/types"
)

// Result is the outcome of one duplicate check. It is always fully populated.
type Result struct {
	// CheckID uniquely identifies the check and its audit entries
	CheckID string `json:"check_id"`

	// ContentHash is the candidate's normalized content hash
	ContentHash string `json:"content_hash"`

	// IsDuplicate is true iff Confidence >= DuplicateThreshold
	IsDuplicate bool `json:"is_duplicate"`

	DuplicateType types.DuplicateType `json:"duplicate_type"`

	// Confidence is the overall confidence in [0,1]
	Confidence float64 `json:"confidence"`

	// Breakdown explains how Confidence was reached
	Breakdown ConfidenceBreakdown `json:"breakdown"`

	RiskLevel             types.RiskLevel             `json:"risk_level"`
	InvestigationPriority types.InvestigationPriority `json:"investigation_priority"`

	// PotentialDuplicates is ranked by score, best first
	PotentialDuplicates []PotentialDuplicate `json:"potential_duplicates"`

	// MitigationActions is a sorted set
	MitigationActions []types.MitigationAction `json:"mitigation_actions"`

	// Contextual is the false-positive analysis; nil for exact and fail-safe results
	Contextual *ContextualAnalysis `json:"contextual,omitempty"`

	// RequiresAttention is set for duplicates and for any result rated MEDIUM or above
	RequiresAttention bool `json:"requires_attention"`
	// InvestigationRequired is set for results rated HIGH or above
	InvestigationRequired bool `json:"investigation_required"`
	// RegulatoryReportingRequired is set when REGULATORY_REPORTING is among the actions
	RegulatoryReportingRequired bool `json:"regulatory_reporting_required"`

	// FailSafe marks a result produced because the pipeline failed.
	// It must never be treated as clear.
	FailSafe      bool   `json:"fail_safe"`
	FailureReason string `json:"failure_reason,omitempty"`

	// Thresholds the result was judged against
	DuplicateThreshold     float64 `json:"duplicate_threshold"`
	LowConfidenceThreshold float64 `json:"low_confidence_threshold"`

	// ComparedCount is the number of historical invoices considered
	ComparedCount int `json:"compared_count"`

	AuditTrail []events.AuditEntry `json:"audit_trail"`
	Timing     Timing              `json:"timing"`
}

// Timing records when a check ran and how long each stage took.
type Timing struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	// StageMicros is the time spent reaching each stage, in microseconds
	StageMicros map[events.Stage]int64 `json:"stage_micros,omitempty"`
}

// setFlags derives the caller-facing booleans from risk, type and actions.
func (r *Result) setFlags() {
	r.InvestigationRequired = r.RiskLevel.AtLeast(types.RiskHigh)
	r.RegulatoryReportingRequired = containsAction(r.MitigationActions, types.ActionRegulatoryReporting)
	r.RequiresAttention = r.IsDuplicate || r.RiskLevel.AtLeast(types.RiskMedium)
}

// Validate checks the result's internal invariants
func (r *Result) Validate() error {
	if r.CheckID == "" {
		return fmt.Errorf("check_id is required")
	}
	if r.Confidence < 0.0 || r.Confidence > 1.0 {
		return fmt.Errorf("confidence must be between 0.0 and 1.0 (got %.2f)", r.Confidence)
	}
	if r.IsDuplicate != (r.Confidence >= r.DuplicateThreshold) {
		return fmt.Errorf("is_duplicate (%t) does not match confidence %.4f against threshold %.2f",
			r.IsDuplicate, r.Confidence, r.DuplicateThreshold)
	}
	if !r.DuplicateType.IsValid() {
		return fmt.Errorf("invalid duplicate_type %q", r.DuplicateType)
	}
	if !r.RiskLevel.IsValid() {
		return fmt.Errorf("invalid risk_level %q", r.RiskLevel)
	}
	if r.DuplicateType != types.DuplicateNone && r.Confidence >= r.LowConfidenceThreshold && r.RiskLevel == types.RiskLow {
		return fmt.Errorf("risk_level cannot be LOW for %s at confidence %.2f (low-confidence threshold %.2f)",
			r.DuplicateType, r.Confidence, r.LowConfidenceThreshold)
	}

	for i := 1; i < len(r.PotentialDuplicates); i++ {
		if r.PotentialDuplicates[i].Score > r.PotentialDuplicates[i-1].Score {
			return fmt.Errorf("potential_duplicates not ranked: index %d scores %.2f above index %d (%.2f)",
				i, r.PotentialDuplicates[i].Score, i-1, r.PotentialDuplicates[i-1].Score)
		}
	}
	for i := 1; i < len(r.MitigationActions); i++ {
		if r.MitigationActions[i] <= r.MitigationActions[i-1] {
			return fmt.Errorf("mitigation_actions must be sorted and unique (got %s after %s)",
				r.MitigationActions[i], r.MitigationActions[i-1])
		}
	}

	if len(r.AuditTrail) == 0 {
		return fmt.Errorf("audit_trail cannot be empty")
	}
	last := r.AuditTrail[len(r.AuditTrail)-1].Stage
	if !last.IsTerminal() {
		return fmt.Errorf("audit_trail must end in a terminal stage (got %s)", last)
	}
	if r.FailSafe != (last == events.StageFailed) {
		return fmt.Errorf("fail_safe (%t) does not match final stage %s", r.FailSafe, last)
	}
	if r.FailSafe && (!r.IsDuplicate || r.RiskLevel != types.RiskSevere || r.Confidence != 1.0) {
		return fmt.Errorf("fail-safe result must be a SEVERE duplicate at confidence 1.0")
	}
	return nil
}
