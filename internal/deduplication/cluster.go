package deduplication

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/steveyegge/dupcheck/internal/normalize"
)

const (
	temporalBaseConfidence = 0.5
	temporalStepConfidence = 0.1
	temporalMaxConfidence  = 0.9
	supplierClusterScore   = 0.85

	// regularIntervalMaxCV is the largest coefficient of variation of the
	// gaps between invoice dates that still counts as a regular pattern.
	regularIntervalMaxCV = 0.2
)

// findTemporalClusters groups historical invoices from the candidate's
// supplier (case-insensitive name equality) dated within the window either
// side of the candidate. A cluster needs at least one such invoice, so that
// it holds two or more invoices counting the candidate.
func findTemporalClusters(in *analysisInput) ([]MatchEvidence, error) {
	supplier := strings.TrimSpace(in.candidate.SupplierName)
	if supplier == "" {
		return nil, nil
	}
	window := in.cfg.TemporalWindow
	candDate := day(in.candidate.InvoiceDate)

	var ids []string
	dates := []time.Time{candDate}
	for i := range in.history {
		h := &in.history[i]
		if !strings.EqualFold(strings.TrimSpace(h.SupplierName), supplier) || h.InvoiceDate.IsZero() {
			continue
		}
		d := day(h.InvoiceDate)
		if absDuration(d.Sub(candDate)) > window {
			continue
		}
		ids = append(ids, h.ID)
		dates = append(dates, d)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	intervals := make([]float64, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		intervals = append(intervals, dates[i].Sub(dates[i-1]).Hours()/24)
	}

	count := len(dates)
	return []MatchEvidence{&TemporalCluster{
		SupplierName:  supplier,
		HistoricalIDs: ids,
		InvoiceCount:  count,
		WindowDays:    int(window / (24 * time.Hour)),
		Earliest:      dates[0],
		Latest:        dates[len(dates)-1],
		IntervalDays:  intervals,
		Regular:       isRegular(intervals),
		Confidence:    math.Min(temporalMaxConfidence, temporalBaseConfidence+temporalStepConfidence*float64(count)),
	}}, nil
}

// isRegular reports whether at least two gaps exist and they are all
// positive and close to their mean.
func isRegular(intervals []float64) bool {
	if len(intervals) < 2 {
		return false
	}
	var sum float64
	for _, v := range intervals {
		if v <= 0 {
			return false
		}
		sum += v
	}
	mean := sum / float64(len(intervals))
	var variance float64
	for _, v := range intervals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(intervals))
	return math.Sqrt(variance)/mean <= regularIntervalMaxCV
}

// findSupplierClusters looks for the candidate's tax ID on historical
// invoices filed under other supplier names. Names are compared trimmed and
// upper-cased, so "Gamma Supplies" and "Gamma Supplies (Pty) Ltd" are distinct.
func findSupplierClusters(in *analysisInput) ([]MatchEvidence, error) {
	if in.taxID == "" {
		return nil, nil
	}
	candName := strings.ToUpper(strings.TrimSpace(in.candidate.SupplierName))

	names := map[string]struct{}{candName: {}}
	var ids []string
	for i := range in.history {
		h := &in.history[i]
		if normalize.TaxID(h.SupplierTaxID) != in.taxID {
			continue
		}
		name := strings.ToUpper(strings.TrimSpace(h.SupplierName))
		if name == "" {
			continue
		}
		names[name] = struct{}{}
		if name != candName {
			ids = append(ids, h.ID)
		}
	}
	if len(names) < 2 {
		return nil, nil
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	return []MatchEvidence{&SupplierCluster{
		TaxID:         in.taxID,
		SupplierNames: sorted,
		HistoricalIDs: ids,
		Confidence:    supplierClusterScore,
	}}, nil
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
