package deduplication

import (
	"fmt"
	"math"
	"strings"

	"github.com/steveyegge/dupcheck/internal/normalize"
	"github.com/steveyegge/dupcheck/internal/types"
)

// Built-in contextual factor names.
const (
	FactorTrustedSupplier     = "trusted_supplier"
	FactorRecurringPattern    = "recurring_pattern"
	FactorLowAmountConfidence = "low_amount_confidence"
	FactorPOMismatch          = "po_mismatch"
	FactorHighRisk            = "high_risk_context"
	customFactorPrefix        = "custom:"
)

const (
	recurringMinInvoices    = 3
	lowAmountConfidence     = 0.5
	blockMaxFalsePositive   = 0.05
	blockMinAdjustment      = 0.05
	reviewMaxFalsePositive  = 0.2
	reviewMinMatches        = 2
	proceedMinFalsePositive = 0.5
)

// ContextualFactor is one named business-context signal.
type ContextualFactor struct {
	Name                 string  `json:"name"`
	ConfidenceAdjustment float64 `json:"confidence_adjustment"`
	FalsePositiveDelta   float64 `json:"false_positive_delta"`
	Detail               string  `json:"detail,omitempty"`
}

// ContextualAnalysis is the false-positive assessment of a check's evidence.
type ContextualAnalysis struct {
	// FalsePositiveProbability is the summed factor deltas, clamped to [0,1].
	FalsePositiveProbability float64 `json:"false_positive_probability"`
	// ConfidenceAdjustment is the summed factor adjustments, clamped to
	// +/- Config.MaxContextualAdjustment.
	ConfidenceAdjustment float64              `json:"confidence_adjustment"`
	Factors              []ContextualFactor   `json:"factors"`
	Recommendation       types.Recommendation `json:"recommendation"`
	// MatchCount is the number of evidence records considered.
	MatchCount int `json:"match_count"`
}

// analyzeContext evaluates every factor independently and adds them up.
func analyzeContext(in *analysisInput, evidence []MatchEvidence) (*ContextualAnalysis, error) {
	set := splitEvidence(evidence)
	var factors []ContextualFactor

	if in.cctx.TrustedSupplier {
		factors = append(factors, ContextualFactor{
			Name: FactorTrustedSupplier, ConfidenceAdjustment: -0.05, FalsePositiveDelta: 0.10,
			Detail: "supplier is marked trusted",
		})
	}

	for _, c := range set.TemporalClusters {
		if c.InvoiceCount >= recurringMinInvoices && c.Regular {
			factors = append(factors, ContextualFactor{
				Name: FactorRecurringPattern, ConfidenceAdjustment: -0.10, FalsePositiveDelta: 0.20,
				Detail: fmt.Sprintf("%d invoices from %s at regular intervals", c.InvoiceCount, c.SupplierName),
			})
			break
		}
	}

	if len(set.Fuzzy) > 0 {
		bestAmount := 0.0
		for _, m := range set.Fuzzy {
			if m.Field == FieldAmount && m.Confidence > bestAmount {
				bestAmount = m.Confidence
			}
		}
		if bestAmount < lowAmountConfidence {
			factors = append(factors, ContextualFactor{
				Name: FactorLowAmountConfidence, ConfidenceAdjustment: -0.08, FalsePositiveDelta: 0.15,
				Detail: fmt.Sprintf("best amount match %.2f", bestAmount),
			})
		}
	}

	if id, po, ok := poMismatch(in, set.Fuzzy); ok {
		factors = append(factors, ContextualFactor{
			Name: FactorPOMismatch, ConfidenceAdjustment: -0.05, FalsePositiveDelta: 0.10,
			Detail: fmt.Sprintf("PO %s differs from %s on %s", in.poNumber, po, id),
		})
	}

	var risk []string
	if strings.EqualFold(in.cctx.SupplierCategory, types.SupplierCategoryHighRisk) {
		risk = append(risk, "supplier category "+types.SupplierCategoryHighRisk)
	}
	if strings.EqualFold(in.cctx.UserRiskProfile, types.UserRiskProfileHigh) {
		risk = append(risk, "user risk profile "+types.UserRiskProfileHigh)
	}
	if len(risk) > 0 {
		factors = append(factors, ContextualFactor{
			Name: FactorHighRisk, ConfidenceAdjustment: 0.05, FalsePositiveDelta: -0.10,
			Detail: strings.Join(risk, ", "),
		})
	}

	for _, rule := range in.cctx.CustomRules {
		if rule.Matches(in.candidate) {
			factors = append(factors, ContextualFactor{
				Name:                 customFactorPrefix + rule.Name,
				ConfidenceAdjustment: rule.ConfidenceAdjustment,
				FalsePositiveDelta:   rule.FalsePositiveDelta,
				Detail:               fmt.Sprintf("%s %s %q", rule.Field, rule.Operator, rule.Value),
			})
		}
	}

	var adjustment, fpp float64
	for _, f := range factors {
		adjustment += f.ConfidenceAdjustment
		fpp += f.FalsePositiveDelta
	}
	limit := in.cfg.MaxContextualAdjustment
	adjustment = math.Max(-limit, math.Min(limit, adjustment))
	fpp = clamp01(fpp)

	return &ContextualAnalysis{
		FalsePositiveProbability: fpp,
		ConfidenceAdjustment:     adjustment,
		Factors:                  factors,
		Recommendation:           recommend(fpp, adjustment, len(evidence)),
		MatchCount:               len(evidence),
	}, nil
}

// poMismatch finds the first fuzzy-matched historical invoice carrying a PO
// number different from the candidate's.
func poMismatch(in *analysisInput, fuzzy []*FuzzyMatch) (string, string, bool) {
	if in.poNumber == "" {
		return "", "", false
	}
	seen := make(map[string]bool)
	for _, m := range fuzzy {
		if seen[m.HistoricalID] {
			continue
		}
		seen[m.HistoricalID] = true
		h, ok := in.byID[m.HistoricalID]
		if !ok {
			continue
		}
		if po := normalize.PONumber(h.PONumber); po != "" && po != in.poNumber {
			return h.ID, po, true
		}
	}
	return "", "", false
}

func recommend(fpp, adjustment float64, matches int) types.Recommendation {
	switch {
	case matches == 0:
		return types.RecommendProceed
	case fpp <= blockMaxFalsePositive && adjustment >= blockMinAdjustment:
		return types.RecommendBlock
	case fpp < reviewMaxFalsePositive && matches >= reviewMinMatches:
		return types.RecommendManualReview
	case fpp >= proceedMinFalsePositive:
		return types.RecommendProceed
	}
	return types.RecommendProceedWithCaution
}
