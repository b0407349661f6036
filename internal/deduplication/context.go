package deduplication

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/steveyegge/dupcheck/internal/types"
)

// CheckContext is the per-call input that accompanies a candidate.
type CheckContext struct {
	// HistoricalInvoices is the comparison set. The engine reads it only.
	HistoricalInvoices []types.HistoricalInvoice `json:"historical_invoices,omitempty" yaml:"-"`

	// TemporalWindowDays overrides Config.TemporalWindow when positive.
	TemporalWindowDays int `json:"temporal_window_days,omitempty" yaml:"temporal_window_days"`

	// ConfidenceThreshold overrides Config.ConfidenceThreshold when set.
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty" yaml:"confidence_threshold"`

	// UserRiskProfile of the submitting user; "HIGH" adds the high-risk factor.
	UserRiskProfile string `json:"user_risk_profile,omitempty" yaml:"user_risk_profile"`

	// SupplierCategory of the candidate's supplier; "HIGH_RISK" adds the high-risk factor.
	SupplierCategory string `json:"supplier_category,omitempty" yaml:"supplier_category"`

	// TrustedSupplier marks a supplier with a clean history.
	TrustedSupplier bool `json:"trusted_supplier,omitempty" yaml:"trusted_supplier"`

	// CustomRules are evaluated by the contextual analyzer as extra factors.
	CustomRules []CustomRule `json:"custom_rules,omitempty" yaml:"custom_rules"`
}

// RuleOperator compares a candidate field with a rule value.
type RuleOperator string

const (
	OpEquals      RuleOperator = "equals"
	OpContains    RuleOperator = "contains"
	OpPrefix      RuleOperator = "prefix"
	OpGreaterThan RuleOperator = "gt"
	OpLessThan    RuleOperator = "lt"
)

// IsValid checks if the operator value is valid
func (o RuleOperator) IsValid() bool {
	switch o {
	case OpEquals, OpContains, OpPrefix, OpGreaterThan, OpLessThan:
		return true
	}
	return false
}

// CustomRule is a caller-defined contextual factor. When the candidate's
// Field satisfies Operator/Value, the rule's adjustments are added like any
// built-in factor.
type CustomRule struct {
	Name                 string       `json:"name" yaml:"name"`
	Field                string       `json:"field" yaml:"field"`
	Operator             RuleOperator `json:"operator" yaml:"operator"`
	Value                string       `json:"value" yaml:"value"`
	ConfidenceAdjustment float64      `json:"confidence_adjustment" yaml:"confidence_adjustment"`
	FalsePositiveDelta   float64      `json:"false_positive_delta" yaml:"false_positive_delta"`
}

// Validate checks if the rule has valid values
func (r CustomRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !types.IsKnownField(r.Field) || r.Field == types.FieldLineItems {
		return fmt.Errorf("field %q is not a comparable invoice field", r.Field)
	}
	if !r.Operator.IsValid() {
		return fmt.Errorf("operator %q is not one of equals, contains, prefix, gt, lt", r.Operator)
	}
	if (r.Operator == OpGreaterThan || r.Operator == OpLessThan) && r.Field == types.FieldTotalAmount {
		if _, err := decimal.NewFromString(r.Value); err != nil {
			return fmt.Errorf("value %q is not a number", r.Value)
		}
	}
	if r.ConfidenceAdjustment < -1 || r.ConfidenceAdjustment > 1 {
		return fmt.Errorf("confidence_adjustment must be between -1.0 and 1.0 (got %.2f)", r.ConfidenceAdjustment)
	}
	if r.FalsePositiveDelta < -1 || r.FalsePositiveDelta > 1 {
		return fmt.Errorf("false_positive_delta must be between -1.0 and 1.0 (got %.2f)", r.FalsePositiveDelta)
	}
	return nil
}

// Matches reports whether the candidate satisfies the rule. String operators
// are case-insensitive. gt and lt compare amounts numerically and every other
// field lexically, which orders ISO dates correctly.
func (r CustomRule) Matches(c *types.InvoiceCandidate) bool {
	if !c.HasField(r.Field) {
		return false
	}
	got := strings.ToUpper(strings.TrimSpace(c.FieldValue(r.Field)))
	want := strings.ToUpper(strings.TrimSpace(r.Value))

	switch r.Operator {
	case OpEquals:
		return got == want
	case OpContains:
		return strings.Contains(got, want)
	case OpPrefix:
		return strings.HasPrefix(got, want)
	case OpGreaterThan, OpLessThan:
		cmp := strings.Compare(got, want)
		if r.Field == types.FieldTotalAmount {
			limit, err := decimal.NewFromString(r.Value)
			if err != nil {
				return false
			}
			cmp = c.TotalAmount.Cmp(limit)
		}
		if r.Operator == OpGreaterThan {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}
