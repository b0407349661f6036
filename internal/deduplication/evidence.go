package deduplication

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/steveyegge/dupcheck/internal/types"
)

// EvidenceKind tags a MatchEvidence variant.
type EvidenceKind string

const (
	KindFuzzy           EvidenceKind = "FUZZY"
	KindTemporal        EvidenceKind = "TEMPORAL"
	KindSupplierCluster EvidenceKind = "SUPPLIER_CLUSTER"
	KindLineItem        EvidenceKind = "LINE_ITEM"

	// KindExact only appears in summaries; exact matches are not MatchEvidence.
	KindExact EvidenceKind = "EXACT"
)

// MatchEvidence is the closed set of per-analyzer findings the aggregator
// folds over: *FuzzyMatch, *TemporalCluster, *SupplierCluster, *LineItemMatch.
type MatchEvidence interface {
	Kind() EvidenceKind
	// Score is the per-record confidence in [0,1].
	Score() float64
	// Related returns the historical invoice IDs the record refers to.
	Related() []string
	// Summary is a one-line description for result explanations.
	Summary() string

	sealed()
}

// FuzzyField names what a fuzzy matcher compared.
type FuzzyField string

const (
	FieldInvoiceNumber FuzzyField = "INVOICE_NUMBER"
	FieldSupplierName  FuzzyField = "SUPPLIER_NAME"
	FieldAmount        FuzzyField = "AMOUNT"
)

// Algorithm names the measure that produced a fuzzy score.
type Algorithm string

const (
	AlgorithmLevenshtein         Algorithm = "levenshtein"
	AlgorithmJaroWinkler         Algorithm = "jaro_winkler"
	AlgorithmPhonetic            Algorithm = "phonetic"
	AlgorithmAbsoluteTolerance   Algorithm = "absolute_tolerance"
	AlgorithmPercentageTolerance Algorithm = "percentage_tolerance"
)

// ExactMatch is a historical invoice with the same normalized invoice number
// and supplier name and an amount within one cent.
type ExactMatch struct {
	HistoricalID     string          `json:"historical_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	SupplierName     string          `json:"supplier_name"`
	AmountDifference decimal.Decimal `json:"amount_difference"`
	// ContentHashMatch is set when every hashed field agrees, not only the three compared.
	ContentHashMatch bool `json:"content_hash_match"`
}

// FuzzyMatch is one matcher firing against one historical invoice.
type FuzzyMatch struct {
	HistoricalID string     `json:"historical_id"`
	Field        FuzzyField `json:"field"`
	Algorithm    Algorithm  `json:"algorithm"`
	Confidence   float64    `json:"confidence"`

	CandidateValue  string `json:"candidate_value"`
	HistoricalValue string `json:"historical_value"`

	LevenshteinSimilarity float64 `json:"levenshtein_similarity,omitempty"`
	JaroWinkler           float64 `json:"jaro_winkler,omitempty"`

	CandidateSoundex    string `json:"candidate_soundex,omitempty"`
	HistoricalSoundex   string `json:"historical_soundex,omitempty"`
	CandidateMetaphone  string `json:"candidate_metaphone,omitempty"`
	HistoricalMetaphone string `json:"historical_metaphone,omitempty"`
	PhoneticMatch       bool   `json:"phonetic_match,omitempty"`

	AmountDifference  *decimal.Decimal `json:"amount_difference,omitempty"`
	PercentDifference float64          `json:"percent_difference,omitempty"`
}

func (m *FuzzyMatch) Kind() EvidenceKind { return KindFuzzy }
func (m *FuzzyMatch) Score() float64     { return m.Confidence }
func (m *FuzzyMatch) Related() []string  { return []string{m.HistoricalID} }
func (m *FuzzyMatch) Summary() string {
	return fmt.Sprintf("%s %s %.2f (%s vs %s)", m.Field, m.Algorithm, m.Confidence, m.CandidateValue, m.HistoricalValue)
}
func (m *FuzzyMatch) sealed() {}

// TemporalCluster groups same-supplier invoices dated inside the window
// around the candidate. InvoiceCount includes the candidate.
type TemporalCluster struct {
	SupplierName  string    `json:"supplier_name"`
	HistoricalIDs []string  `json:"historical_ids"`
	InvoiceCount  int       `json:"invoice_count"`
	WindowDays    int       `json:"window_days"`
	Earliest      time.Time `json:"earliest"`
	Latest        time.Time `json:"latest"`
	// IntervalDays are the gaps between consecutive invoice dates, candidate included.
	IntervalDays []float64 `json:"interval_days"`
	// Regular is set when the gaps are near-constant, as with a subscription.
	Regular    bool    `json:"regular"`
	Confidence float64 `json:"confidence"`
}

func (c *TemporalCluster) Kind() EvidenceKind { return KindTemporal }
func (c *TemporalCluster) Score() float64     { return c.Confidence }
func (c *TemporalCluster) Related() []string  { return c.HistoricalIDs }
func (c *TemporalCluster) Summary() string {
	return fmt.Sprintf("TEMPORAL %d invoices from %s within %d days (%.2f)", c.InvoiceCount, c.SupplierName, c.WindowDays, c.Confidence)
}
func (c *TemporalCluster) sealed() {}

// SupplierCluster is a tax ID shared by differently named suppliers.
// HistoricalIDs holds the invoices whose name differs from the candidate's.
type SupplierCluster struct {
	TaxID         string   `json:"tax_id"`
	SupplierNames []string `json:"supplier_names"`
	HistoricalIDs []string `json:"historical_ids"`
	Confidence    float64  `json:"confidence"`
}

func (c *SupplierCluster) Kind() EvidenceKind { return KindSupplierCluster }
func (c *SupplierCluster) Score() float64     { return c.Confidence }
func (c *SupplierCluster) Related() []string  { return c.HistoricalIDs }
func (c *SupplierCluster) Summary() string {
	return fmt.Sprintf("SUPPLIER_CLUSTER tax ID %s shared by %d names (%.2f)", c.TaxID, len(c.SupplierNames), c.Confidence)
}
func (c *SupplierCluster) sealed() {}

// LineItemPair is one matched (candidate, historical) line item pair.
type LineItemPair struct {
	CandidateIndex     int     `json:"candidate_index"`
	HistoricalIndex    int     `json:"historical_index"`
	Similarity         float64 `json:"similarity"`
	QuantityDifference string  `json:"quantity_difference"`
	PriceDifferencePct float64 `json:"price_difference_pct"`
}

// LineItemMatch is line-item overlap with one historical invoice.
// MatchType is EXACT when the mean similarity exceeds 0.95, FUZZY otherwise.
type LineItemMatch struct {
	HistoricalID string              `json:"historical_id"`
	Pairs        []LineItemPair      `json:"pairs"`
	Confidence   float64             `json:"confidence"`
	MatchType    types.DuplicateType `json:"match_type"`
}

func (m *LineItemMatch) Kind() EvidenceKind { return KindLineItem }
func (m *LineItemMatch) Score() float64     { return m.Confidence }
func (m *LineItemMatch) Related() []string  { return []string{m.HistoricalID} }
func (m *LineItemMatch) Summary() string {
	return fmt.Sprintf("LINE_ITEM %d pairs %s (%.2f)", len(m.Pairs), m.MatchType, m.Confidence)
}
func (m *LineItemMatch) sealed() {}

var (
	_ MatchEvidence = (*FuzzyMatch)(nil)
	_ MatchEvidence = (*TemporalCluster)(nil)
	_ MatchEvidence = (*SupplierCluster)(nil)
	_ MatchEvidence = (*LineItemMatch)(nil)
)

// EvidenceSummary is the serializable view of a MatchEvidence record kept on
// potential duplicates.
type EvidenceSummary struct {
	Kind       EvidenceKind `json:"kind"`
	Confidence float64      `json:"confidence"`
	Detail     string       `json:"detail"`
}

func summarize(ev MatchEvidence) EvidenceSummary {
	return EvidenceSummary{Kind: ev.Kind(), Confidence: ev.Score(), Detail: ev.Summary()}
}

// evidenceSet splits a flat evidence list by variant for snapshots.
type evidenceSet struct {
	Fuzzy            []*FuzzyMatch      `json:"fuzzy_matches"`
	TemporalClusters []*TemporalCluster `json:"temporal_clusters"`
	SupplierClusters []*SupplierCluster `json:"supplier_clusters"`
	LineItemMatches  []*LineItemMatch   `json:"line_item_matches"`
}

func splitEvidence(evidence []MatchEvidence) evidenceSet {
	var set evidenceSet
	for _, ev := range evidence {
		switch e := ev.(type) {
		case *FuzzyMatch:
			set.Fuzzy = append(set.Fuzzy, e)
		case *TemporalCluster:
			set.TemporalClusters = append(set.TemporalClusters, e)
		case *SupplierCluster:
			set.SupplierClusters = append(set.SupplierClusters, e)
		case *LineItemMatch:
			set.LineItemMatches = append(set.LineItemMatches, e)
		}
	}
	return set
}
