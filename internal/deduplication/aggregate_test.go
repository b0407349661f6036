package deduplication

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/dupcheck/internal/events"
	"github.com/steveyegge/dupcheck/internal/types"
)

func TestScoreEvidenceClamps(t *testing.T) {
	cfg := DefaultConfig()
	evidence := []MatchEvidence{
		&FuzzyMatch{HistoricalID: "a", Field: FieldSupplierName, Confidence: 1.0},
		&FuzzyMatch{HistoricalID: "a", Field: FieldAmount, Confidence: 0.4},
		&TemporalCluster{HistoricalIDs: []string{"a"}, Confidence: 0.9},
		&SupplierCluster{HistoricalIDs: []string{"a"}, Confidence: 0.85},
		&LineItemMatch{HistoricalID: "a", Confidence: 1.0},
	}

	b := scoreEvidence(evidence, &ContextualAnalysis{ConfidenceAdjustment: 0.3}, cfg)
	assert.InDelta(t, 0.40, b.Fuzzy, 1e-9, "best fuzzy record counts once")
	assert.InDelta(t, 0.18, b.Temporal, 1e-9)
	assert.InDelta(t, 0.17, b.Supplier, 1e-9)
	assert.InDelta(t, 0.20, b.LineItem, 1e-9)
	assert.InDelta(t, 1.25, b.Unclamped, 1e-9)
	assert.Equal(t, 1.0, b.Overall)

	b = scoreEvidence(nil, &ContextualAnalysis{ConfidenceAdjustment: -0.3}, cfg)
	assert.Equal(t, 0.0, b.Overall)
	assert.InDelta(t, -0.3, b.Unclamped, 1e-9)
}

func TestClassify(t *testing.T) {
	cfg := DefaultConfig()
	invoiceMatch := func(c float64) *FuzzyMatch {
		return &FuzzyMatch{Field: FieldInvoiceNumber, Confidence: c}
	}
	temporal := []*TemporalCluster{{Confidence: 0.8}}
	supplier := []*SupplierCluster{{Confidence: 0.85}}

	tests := []struct {
		name    string
		overall float64
		set     evidenceSet
		want    types.DuplicateType
	}{
		{"definitive near-exact invoice number", 0.97, evidenceSet{Fuzzy: []*FuzzyMatch{invoiceMatch(0.96)}}, types.DuplicateFuzzy},
		{"definitive fuzzy invoice number", 0.97, evidenceSet{Fuzzy: []*FuzzyMatch{invoiceMatch(0.86)}, TemporalClusters: temporal}, types.DuplicateFuzzy},
		{"definitive temporal", 0.97, evidenceSet{Fuzzy: []*FuzzyMatch{invoiceMatch(0.5)}, TemporalClusters: temporal, SupplierClusters: supplier}, types.DuplicateTemporal},
		{"definitive supplier cluster", 0.96, evidenceSet{SupplierClusters: supplier}, types.DuplicateSupplierCluster},
		{"definitive without specific signal", 0.95, evidenceSet{}, types.DuplicateFuzzy},
		{"review band temporal and supplier", 0.6, evidenceSet{TemporalClusters: temporal, SupplierClusters: supplier}, types.DuplicateTemporal},
		{"review band temporal only", 0.6, evidenceSet{TemporalClusters: temporal}, types.DuplicatePartial},
		{"review band lower edge", 0.5, evidenceSet{}, types.DuplicatePartial},
		{"below review band", 0.49, evidenceSet{TemporalClusters: temporal, SupplierClusters: supplier}, types.DuplicateNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.overall, tt.set, cfg))
		})
	}
}

func TestRiskFor(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		dupType types.DuplicateType
		overall float64
		want    types.RiskLevel
	}{
		{types.DuplicateFuzzy, 0.97, types.RiskCritical},
		{types.DuplicateFuzzy, 0.80, types.RiskHigh},
		{types.DuplicateTemporal, 0.60, types.RiskMedium},
		{types.DuplicateTemporal, 0.97, types.RiskHigh},
		{types.DuplicateSupplierCluster, 0.96, types.RiskCritical},
		{types.DuplicatePartial, 0.60, types.RiskLow},
		{types.DuplicatePartial, 0.80, types.RiskMedium},
		{types.DuplicateLineItem, 0.97, types.RiskMedium},
		{types.DuplicateCrossSupplier, 0.97, types.RiskSevere},
		{types.DuplicateNone, 0.30, types.RiskLow},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%.2f", tt.dupType, tt.overall), func(t *testing.T) {
			assert.Equal(t, tt.want, riskFor(tt.dupType, tt.overall, cfg))
		})
	}
}

func TestMitigationFor(t *testing.T) {
	assert.Nil(t, mitigationFor(types.RiskLow, types.DuplicateNone))
	assert.Equal(t, []types.MitigationAction{types.ActionFlagForReview, types.ActionMonitor},
		mitigationFor(types.RiskLow, types.DuplicatePartial))
	assert.Equal(t, []types.MitigationAction{
		types.ActionBlockPayment, types.ActionFraudInvestigation, types.ActionImmediateEscalation,
		types.ActionLawEnforcement, types.ActionRegulatoryReporting,
	}, mitigationFor(types.RiskSevere, types.DuplicateCrossSupplier))

	for _, r := range []types.RiskLevel{types.RiskLow, types.RiskMedium, types.RiskHigh, types.RiskCritical, types.RiskSevere} {
		actions := mitigationFor(r, types.DuplicateFuzzy)
		require.NotEmpty(t, actions, r)
		for i := 1; i < len(actions); i++ {
			assert.Less(t, string(actions[i-1]), string(actions[i]), "actions for %s must be sorted and unique", r)
		}
	}

	assert.Equal(t, []types.MitigationAction{
		types.ActionBlockPayment, types.ActionImmediateEscalation, types.ActionSystemAdminNotification,
	}, actionSet(failSafeActions()))
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, types.PriorityImmediate, priorityFor(types.RiskSevere, 0.1))
	assert.Equal(t, types.PriorityImmediate, priorityFor(types.RiskCritical, 0.96))
	assert.Equal(t, types.PriorityUrgent, priorityFor(types.RiskHigh, 0.92))
	assert.Equal(t, types.PriorityHigh, priorityFor(types.RiskHigh, 0.75))
	assert.Equal(t, types.PriorityMedium, priorityFor(types.RiskMedium, 0.85))
	assert.Equal(t, types.PriorityLow, priorityFor(types.RiskMedium, 0.72))
	assert.Equal(t, types.PriorityLow, priorityFor(types.RiskLow, 0.99))
}

func TestRankPotentialDuplicates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPotentialDuplicates = 3
	var history []types.HistoricalInvoice
	for i := 0; i < 6; i++ {
		history = append(history, historical(fmt.Sprintf("h%d", i), "X", "Rho", "10.00", "2024-01-01"))
	}
	in := testInput(t, invoice("Y", "Rho", "10.00", "2024-01-02"), history, cfg)

	evidence := []MatchEvidence{
		&FuzzyMatch{HistoricalID: "h0", Field: FieldAmount, Confidence: 0.5},
		&FuzzyMatch{HistoricalID: "h1", Field: FieldInvoiceNumber, Confidence: 0.9},
		&TemporalCluster{HistoricalIDs: []string{"h1", "h2", "h3"}, Confidence: 0.9},
		&SupplierCluster{HistoricalIDs: []string{"h4"}, Confidence: 0.85},
		&LineItemMatch{HistoricalID: "h5", Confidence: 0.9},
	}

	ranked := rankPotentialDuplicates(in, evidence)
	require.Len(t, ranked, 3)

	assert.Equal(t, "h1", ranked[0].HistoricalID)
	assert.Equal(t, types.DuplicateFuzzy, ranked[0].MatchType)
	assert.InDelta(t, 0.9*0.4+0.9*0.2, ranked[0].Score, 1e-9)
	assert.Len(t, ranked[0].Evidence, 2)

	// h0, h2, h3 and h5 all score 0.18-0.20; h0 leads on 0.5*0.4
	assert.Equal(t, "h0", ranked[1].HistoricalID)
	assert.Equal(t, types.DuplicatePartial, ranked[1].MatchType)
	assert.Equal(t, "h2", ranked[2].HistoricalID, "ties keep history order")
	assert.Equal(t, types.DuplicateTemporal, ranked[2].MatchType)
}

func TestResultValidate(t *testing.T) {
	valid := func() *Result {
		return &Result{
			CheckID:                "c1",
			IsDuplicate:            true,
			DuplicateType:          types.DuplicateFuzzy,
			Confidence:             0.8,
			RiskLevel:              types.RiskHigh,
			MitigationActions:      mitigationFor(types.RiskHigh, types.DuplicateFuzzy),
			DuplicateThreshold:     0.7,
			LowConfidenceThreshold: 0.7,
			PotentialDuplicates:    []PotentialDuplicate{{HistoricalID: "a", Score: 0.8}, {HistoricalID: "b", Score: 0.5}},
			AuditTrail:             []events.AuditEntry{{Stage: events.StageInitialized}, {Stage: events.StageCompleted}},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name    string
		mutate  func(r *Result)
		wantErr string
	}{
		{"confidence out of range", func(r *Result) { r.Confidence = 1.2 }, "confidence must be between"},
		{"duplicate flag disagrees", func(r *Result) { r.IsDuplicate = false }, "does not match confidence"},
		{"low risk for typed result", func(r *Result) { r.RiskLevel = types.RiskLow }, "cannot be LOW"},
		{"unranked", func(r *Result) { r.PotentialDuplicates[1].Score = 0.9 }, "not ranked"},
		{"unsorted actions", func(r *Result) {
			r.MitigationActions = []types.MitigationAction{types.ActionMonitor, types.ActionFlagForReview}
		}, "sorted and unique"},
		{"empty trail", func(r *Result) { r.AuditTrail = nil }, "cannot be empty"},
		{"open trail", func(r *Result) { r.AuditTrail = r.AuditTrail[:1] }, "terminal stage"},
		{"fail-safe without FAILED entry", func(r *Result) { r.FailSafe = true }, "does not match final stage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := r.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
