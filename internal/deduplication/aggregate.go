package deduplication

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/steveyegge/dupcheck/internal/types"
)

// exactInvoiceNumberScore is the invoice-number similarity treated as an
// exact-confidence fuzzy match by the classifier.
const exactInvoiceNumberScore = 0.95

// ConfidenceBreakdown keeps the weighted components of the overall confidence.
type ConfidenceBreakdown struct {
	Fuzzy                float64 `json:"fuzzy"`
	Temporal             float64 `json:"temporal"`
	Supplier             float64 `json:"supplier"`
	LineItem             float64 `json:"line_item"`
	ContextualAdjustment float64 `json:"contextual_adjustment"`
	// Unclamped is the plain sum before clamping to [0,1].
	Unclamped float64 `json:"unclamped"`
	Overall   float64 `json:"overall"`
}

// PotentialDuplicate is one ranked historical invoice with the evidence
// that points at it.
type PotentialDuplicate struct {
	HistoricalID  string              `json:"historical_id"`
	InvoiceNumber string              `json:"invoice_number"`
	SupplierName  string              `json:"supplier_name"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	InvoiceDate   time.Time           `json:"invoice_date"`
	Score         float64             `json:"score"`
	MatchType     types.DuplicateType `json:"match_type"`
	Evidence      []EvidenceSummary   `json:"evidence"`
}

// scoreEvidence computes the weighted confidence: the best record of each
// kind times its weight, plus the contextual adjustment, clamped to [0,1].
// A kind with no records contributes 0.
func scoreEvidence(evidence []MatchEvidence, ca *ContextualAnalysis, cfg Config) ConfidenceBreakdown {
	var fuzzy, temporal, supplier, lineItem float64
	for _, ev := range evidence {
		s := ev.Score()
		switch ev.Kind() {
		case KindFuzzy:
			fuzzy = math.Max(fuzzy, s)
		case KindTemporal:
			temporal = math.Max(temporal, s)
		case KindSupplierCluster:
			supplier = math.Max(supplier, s)
		case KindLineItem:
			lineItem = math.Max(lineItem, s)
		}
	}

	b := ConfidenceBreakdown{
		Fuzzy:    fuzzy * cfg.FuzzyWeight,
		Temporal: temporal * cfg.TemporalWeight,
		Supplier: supplier * cfg.SupplierWeight,
		LineItem: lineItem * cfg.LineItemWeight,
	}
	if ca != nil {
		b.ContextualAdjustment = ca.ConfidenceAdjustment
	}
	b.Unclamped = b.Fuzzy + b.Temporal + b.Supplier + b.LineItem + b.ContextualAdjustment
	b.Overall = clamp01(b.Unclamped)
	return b
}

// classify picks the duplicate type for an overall confidence.
func classify(overall float64, set evidenceSet, cfg Config) types.DuplicateType {
	hasTemporal := len(set.TemporalClusters) > 0
	hasSupplier := len(set.SupplierClusters) > 0

	switch {
	case overall >= cfg.DefinitiveThreshold:
		best := 0.0
		for _, m := range set.Fuzzy {
			if m.Field == FieldInvoiceNumber {
				best = math.Max(best, m.Confidence)
			}
		}
		switch {
		case best >= exactInvoiceNumberScore:
			return types.DuplicateFuzzy
		case best >= cfg.JaroWinklerThreshold:
			return types.DuplicateFuzzy
		case hasTemporal:
			return types.DuplicateTemporal
		case hasSupplier:
			return types.DuplicateSupplierCluster
		}
		return types.DuplicateFuzzy
	case overall >= cfg.ManualReviewThreshold:
		if hasTemporal && hasSupplier {
			return types.DuplicateTemporal
		}
		return types.DuplicatePartial
	}
	return types.DuplicateNone
}

// riskFor looks up the type's risk, upgrades it one tier for definitive
// confidence, and never leaves a typed result above the low-confidence
// threshold at LOW.
func riskFor(t types.DuplicateType, overall float64, cfg Config) types.RiskLevel {
	r := baseRisk(t)
	if t == types.DuplicateNone {
		return r
	}
	if overall >= cfg.DefinitiveThreshold {
		r = r.Upgrade()
	}
	if r == types.RiskLow && overall >= cfg.LowConfidenceThreshold {
		r = types.RiskMedium
	}
	return r
}

type candidateScore struct {
	fuzzy, invoiceNumber, temporal, supplier, lineItem float64
	evidence                                           []EvidenceSummary
}

// rankPotentialDuplicates scores every historical invoice referenced by any
// evidence with the component weights, tags it with its strongest signal,
// and returns the best cfg.MaxPotentialDuplicates in descending order. Ties
// keep history order.
func rankPotentialDuplicates(in *analysisInput, evidence []MatchEvidence) []PotentialDuplicate {
	scores := make(map[string]*candidateScore)
	get := func(id string) *candidateScore {
		s, ok := scores[id]
		if !ok {
			s = &candidateScore{}
			scores[id] = s
		}
		return s
	}

	for _, ev := range evidence {
		summary := summarize(ev)
		for _, id := range ev.Related() {
			s := get(id)
			s.evidence = append(s.evidence, summary)
			switch e := ev.(type) {
			case *FuzzyMatch:
				s.fuzzy = math.Max(s.fuzzy, e.Confidence)
				if e.Field == FieldInvoiceNumber {
					s.invoiceNumber = math.Max(s.invoiceNumber, e.Confidence)
				}
			case *TemporalCluster:
				s.temporal = math.Max(s.temporal, e.Confidence)
			case *SupplierCluster:
				s.supplier = math.Max(s.supplier, e.Confidence)
			case *LineItemMatch:
				s.lineItem = math.Max(s.lineItem, e.Confidence)
			}
		}
	}

	cfg := in.cfg
	var out []PotentialDuplicate
	for i := range in.history {
		h := &in.history[i]
		s, ok := scores[h.ID]
		if !ok {
			continue
		}
		delete(scores, h.ID) // repeated IDs in history are listed once

		matchType := types.DuplicatePartial
		switch {
		case s.invoiceNumber >= cfg.JaroWinklerThreshold:
			matchType = types.DuplicateFuzzy
		case s.lineItem > 0:
			matchType = types.DuplicateLineItem
		case s.temporal > 0:
			matchType = types.DuplicateTemporal
		case s.supplier > 0:
			matchType = types.DuplicateSupplierCluster
		}

		out = append(out, PotentialDuplicate{
			HistoricalID:  h.ID,
			InvoiceNumber: h.InvoiceNumber,
			SupplierName:  h.SupplierName,
			TotalAmount:   h.TotalAmount,
			InvoiceDate:   h.InvoiceDate,
			Score: clamp01(s.fuzzy*cfg.FuzzyWeight + s.temporal*cfg.TemporalWeight +
				s.supplier*cfg.SupplierWeight + s.lineItem*cfg.LineItemWeight),
			MatchType: matchType,
			Evidence:  s.evidence,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > cfg.MaxPotentialDuplicates {
		out = out[:cfg.MaxPotentialDuplicates]
	}
	return out
}

// exactPotentialDuplicates lists exact matches, all scored 1.0, in history order.
func exactPotentialDuplicates(in *analysisInput, matches []ExactMatch) []PotentialDuplicate {
	var out []PotentialDuplicate
	for _, m := range matches {
		h, ok := in.byID[m.HistoricalID]
		if !ok {
			continue
		}
		detail := "normalized invoice number, supplier name and amount match"
		if m.ContentHashMatch {
			detail = "content hash match"
		}
		out = append(out, PotentialDuplicate{
			HistoricalID:  h.ID,
			InvoiceNumber: h.InvoiceNumber,
			SupplierName:  h.SupplierName,
			TotalAmount:   h.TotalAmount,
			InvoiceDate:   h.InvoiceDate,
			Score:         1.0,
			MatchType:     types.DuplicateExact,
			Evidence:      []EvidenceSummary{{Kind: KindExact, Confidence: 1.0, Detail: detail}},
		})
		if len(out) == in.cfg.MaxPotentialDuplicates {
			break
		}
	}
	return out
}
