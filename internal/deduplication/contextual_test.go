package deduplication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/dupcheck/internal/types"
)

func contextInput(t *testing.T, cctx *CheckContext, candidate *types.InvoiceCandidate) *analysisInput {
	t.Helper()
	if candidate == nil {
		candidate = invoice("C-1", "Epsilon", "250.00", "2024-06-01")
	}
	in := testInput(t, candidate, cctx.HistoricalInvoices, DefaultConfig())
	in.cctx = cctx
	return in
}

func amountMatch(id string, confidence float64) *FuzzyMatch {
	return &FuzzyMatch{HistoricalID: id, Field: FieldAmount, Algorithm: AlgorithmPercentageTolerance, Confidence: confidence}
}

func factorNames(ca *ContextualAnalysis) []string {
	var names []string
	for _, f := range ca.Factors {
		names = append(names, f.Name)
	}
	return names
}

func TestAnalyzeContextNoEvidence(t *testing.T) {
	ca, err := analyzeContext(contextInput(t, &CheckContext{}, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, types.RecommendProceed, ca.Recommendation)
	assert.Equal(t, 0, ca.MatchCount)
	assert.Empty(t, ca.Factors)
	assert.Equal(t, 0.0, ca.ConfidenceAdjustment)
}

func TestAnalyzeContextTrustedRecurringSupplier(t *testing.T) {
	cluster := &TemporalCluster{SupplierName: "Epsilon", HistoricalIDs: []string{"a", "b"}, InvoiceCount: 3,
		IntervalDays: []float64{30, 30}, Regular: true, Confidence: 0.8}

	ca, err := analyzeContext(contextInput(t, &CheckContext{TrustedSupplier: true}, nil),
		[]MatchEvidence{cluster, amountMatch("a", 0.9)})
	require.NoError(t, err)

	assert.Equal(t, []string{FactorTrustedSupplier, FactorRecurringPattern}, factorNames(ca))
	assert.InDelta(t, -0.15, ca.ConfidenceAdjustment, 1e-9)
	assert.InDelta(t, 0.30, ca.FalsePositiveProbability, 1e-9)
	assert.Equal(t, types.RecommendProceedWithCaution, ca.Recommendation)
	assert.Equal(t, 2, ca.MatchCount)
}

func TestAnalyzeContextIrregularClusterIsNotRecurring(t *testing.T) {
	cluster := &TemporalCluster{SupplierName: "Epsilon", InvoiceCount: 4, IntervalDays: []float64{1, 20, 2}, Confidence: 0.9}
	ca, err := analyzeContext(contextInput(t, &CheckContext{}, nil), []MatchEvidence{cluster})
	require.NoError(t, err)
	assert.NotContains(t, factorNames(ca), FactorRecurringPattern)
}

func TestAnalyzeContextLowAmountConfidence(t *testing.T) {
	invoiceMatch := &FuzzyMatch{HistoricalID: "a", Field: FieldInvoiceNumber, Confidence: 0.9}

	ca, err := analyzeContext(contextInput(t, &CheckContext{}, nil), []MatchEvidence{invoiceMatch, amountMatch("a", 0.3)})
	require.NoError(t, err)
	assert.Equal(t, []string{FactorLowAmountConfidence}, factorNames(ca))
	assert.InDelta(t, -0.08, ca.ConfidenceAdjustment, 1e-9)
	assert.InDelta(t, 0.15, ca.FalsePositiveProbability, 1e-9)
	assert.Equal(t, types.RecommendManualReview, ca.Recommendation)

	ca, err = analyzeContext(contextInput(t, &CheckContext{}, nil), []MatchEvidence{invoiceMatch, amountMatch("a", 0.6)})
	require.NoError(t, err)
	assert.Empty(t, ca.Factors)
}

func TestAnalyzeContextPOMismatch(t *testing.T) {
	h := historical("h1", "C-0", "Epsilon", "250.00", "2024-05-01")
	h.PONumber = "PO-779"
	same := historical("h2", "C-2", "Epsilon", "250.00", "2024-05-01")
	same.PONumber = "po 778"
	candidate := invoice("C-1", "Epsilon", "250.00", "2024-06-01")
	candidate.PONumber = "PO-778"
	cctx := &CheckContext{HistoricalInvoices: []types.HistoricalInvoice{h, same}}

	ca, err := analyzeContext(contextInput(t, cctx, candidate), []MatchEvidence{amountMatch("h2", 1), amountMatch("h1", 1)})
	require.NoError(t, err)
	require.Equal(t, []string{FactorPOMismatch}, factorNames(ca))
	assert.Contains(t, ca.Factors[0].Detail, "h1")

	ca, err = analyzeContext(contextInput(t, cctx, candidate), []MatchEvidence{amountMatch("h2", 1)})
	require.NoError(t, err)
	assert.Empty(t, ca.Factors)
}

func TestAnalyzeContextHighRiskBlocks(t *testing.T) {
	cctx := &CheckContext{SupplierCategory: "high_risk", UserRiskProfile: types.UserRiskProfileHigh}

	ca, err := analyzeContext(contextInput(t, cctx, nil), []MatchEvidence{amountMatch("a", 0.9)})
	require.NoError(t, err)
	require.Equal(t, []string{FactorHighRisk}, factorNames(ca), "category and user profile share one factor")
	assert.InDelta(t, 0.05, ca.ConfidenceAdjustment, 1e-9)
	assert.Equal(t, 0.0, ca.FalsePositiveProbability)
	assert.Equal(t, types.RecommendBlock, ca.Recommendation)
}

func TestAnalyzeContextClampsCustomRules(t *testing.T) {
	rules := []CustomRule{
		{Name: "one", Field: types.FieldSupplierName, Operator: OpContains, Value: "psil", ConfidenceAdjustment: -0.4, FalsePositiveDelta: 0.8},
		{Name: "two", Field: types.FieldInvoiceDate, Operator: OpLessThan, Value: "2024-12-31", ConfidenceAdjustment: -0.4, FalsePositiveDelta: 0.8},
		{Name: "miss", Field: types.FieldPONumber, Operator: OpEquals, Value: "PO-1", ConfidenceAdjustment: 0.9},
	}

	ca, err := analyzeContext(contextInput(t, &CheckContext{CustomRules: rules}, nil), []MatchEvidence{amountMatch("a", 0.9)})
	require.NoError(t, err)
	assert.Equal(t, []string{"custom:one", "custom:two"}, factorNames(ca))
	assert.InDelta(t, -0.30, ca.ConfidenceAdjustment, 1e-9)
	assert.Equal(t, 1.0, ca.FalsePositiveProbability)
	assert.Equal(t, types.RecommendProceed, ca.Recommendation)
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name       string
		fpp        float64
		adjustment float64
		matches    int
		want       types.Recommendation
	}{
		{"no matches", 0, 0.3, 0, types.RecommendProceed},
		{"confident and boosted", 0.05, 0.05, 1, types.RecommendBlock},
		{"low fpp several matches", 0.15, 0, 2, types.RecommendManualReview},
		{"low fpp single match", 0.15, 0, 1, types.RecommendProceedWithCaution},
		{"likely false positive", 0.5, -0.2, 5, types.RecommendProceed},
		{"in between", 0.3, 0, 3, types.RecommendProceedWithCaution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, recommend(tt.fpp, tt.adjustment, tt.matches))
		})
	}
}

func TestCustomRuleMatches(t *testing.T) {
	c := invoice("INV-77", "Omicron Freight", "1200.50", "2024-02-10")
	c.PONumber = "PO-5"

	tests := []struct {
		rule CustomRule
		want bool
	}{
		{CustomRule{Field: types.FieldSupplierName, Operator: OpEquals, Value: "omicron freight"}, true},
		{CustomRule{Field: types.FieldSupplierName, Operator: OpPrefix, Value: "OMI"}, true},
		{CustomRule{Field: types.FieldInvoiceNumber, Operator: OpContains, Value: "-7"}, true},
		{CustomRule{Field: types.FieldTotalAmount, Operator: OpGreaterThan, Value: "999.99"}, true},
		{CustomRule{Field: types.FieldTotalAmount, Operator: OpLessThan, Value: "1200.50"}, false},
		{CustomRule{Field: types.FieldInvoiceDate, Operator: OpGreaterThan, Value: "2024-01-31"}, true},
		{CustomRule{Field: types.FieldSupplierTaxID, Operator: OpEquals, Value: ""}, false},
		{CustomRule{Field: types.FieldPONumber, Operator: OpEquals, Value: "po-5"}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.rule.Matches(c), "%s %s %q", tt.rule.Field, tt.rule.Operator, tt.rule.Value)
	}
}

func TestCustomRuleValidate(t *testing.T) {
	valid := CustomRule{Name: "n", Field: types.FieldTotalAmount, Operator: OpGreaterThan, Value: "10"}
	require.NoError(t, valid.Validate())

	bad := []CustomRule{
		{Field: types.FieldTotalAmount, Operator: OpEquals},
		{Name: "n", Field: types.FieldLineItems, Operator: OpEquals},
		{Name: "n", Field: types.FieldPONumber, Operator: "like"},
		{Name: "n", Field: types.FieldTotalAmount, Operator: OpLessThan, Value: "ten"},
		{Name: "n", Field: types.FieldPONumber, Operator: OpEquals, ConfidenceAdjustment: 1.5},
		{Name: "n", Field: types.FieldPONumber, Operator: OpEquals, FalsePositiveDelta: -2},
	}
	for i, r := range bad {
		assert.Error(t, r.Validate(), "rule %d", i)
	}
}
