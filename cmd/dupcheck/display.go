package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/dupcheck/internal/deduplication"
	"github.com/steveyegge/dupcheck/internal/events"
	"github.com/steveyegge/dupcheck/internal/types"
)

// maxShownDuplicates caps the potential duplicates printed per result.
const maxShownDuplicates = 5

func riskColor(level types.RiskLevel) *color.Color {
	switch level {
	case types.RiskSevere:
		return color.New(color.FgHiRed, color.Bold)
	case types.RiskCritical:
		return color.New(color.FgRed, color.Bold)
	case types.RiskHigh:
		return color.New(color.FgRed)
	case types.RiskMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func severityColor(severity events.EventSeverity) *color.Color {
	switch severity {
	case events.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case events.SeverityError:
		return color.New(color.FgRed)
	case events.SeverityWarning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgWhite)
	}
}

// verdict is the one-word headline for a result.
func verdict(r *deduplication.Result) string {
	switch {
	case r.FailSafe:
		return "FAIL-SAFE"
	case r.IsDuplicate:
		return "DUPLICATE"
	case r.RequiresAttention:
		return "REVIEW"
	default:
		return "CLEAR"
	}
}

func describeCandidate(c *types.InvoiceCandidate) string {
	return fmt.Sprintf("%s from %s, %s on %s",
		c.InvoiceNumber, c.SupplierName, c.TotalAmount.StringFixed(2), c.InvoiceDate.Format("2006-01-02"))
}

// renderResult prints a human-readable summary of one check.
func renderResult(w io.Writer, c *types.InvoiceCandidate, r *deduplication.Result) {
	rc := riskColor(r.RiskLevel)
	gray := color.New(color.FgHiBlack)

	fmt.Fprintf(w, "%s  %s\n", rc.Sprint(verdict(r)), describeCandidate(c))
	fmt.Fprintf(w, "  check:       %s\n", r.CheckID)
	fmt.Fprintf(w, "  type:        %s\n", r.DuplicateType)
	fmt.Fprintf(w, "  confidence:  %.0f%% (threshold %.0f%%)\n", r.Confidence*100, r.DuplicateThreshold*100)
	fmt.Fprintf(w, "  risk:        %s, priority %s\n", rc.Sprint(r.RiskLevel), r.InvestigationPriority)
	if r.FailSafe {
		fmt.Fprintf(w, "  failure:     %s\n", color.RedString(r.FailureReason))
	}
	if r.Contextual != nil {
		fmt.Fprintf(w, "  advice:      %s (false-positive probability %.0f%%)\n",
			r.Contextual.Recommendation, r.Contextual.FalsePositiveProbability*100)
		for _, f := range r.Contextual.Factors {
			fmt.Fprintf(w, "               %s\n", gray.Sprintf("%s: %s", f.Name, f.Detail))
		}
	}
	if len(r.MitigationActions) > 0 {
		actions := make([]string, len(r.MitigationActions))
		for i, a := range r.MitigationActions {
			actions[i] = string(a)
		}
		fmt.Fprintf(w, "  actions:     %s\n", strings.Join(actions, ", "))
	}

	if len(r.PotentialDuplicates) > 0 {
		fmt.Fprintf(w, "  matches (%d of %d compared):\n", len(r.PotentialDuplicates), r.ComparedCount)
		for i, pd := range r.PotentialDuplicates {
			if i == maxShownDuplicates {
				fmt.Fprintf(w, "    %s\n", gray.Sprintf("... %d more", len(r.PotentialDuplicates)-i))
				break
			}
			fmt.Fprintf(w, "    %3.0f%%  %-16s %s  %s %s %s\n",
				pd.Score*100, pd.MatchType, pd.HistoricalID, pd.InvoiceNumber,
				pd.SupplierName, pd.TotalAmount.StringFixed(2))
		}
	}
	fmt.Fprintf(w, "  %s\n", gray.Sprintf("%d ms, %d audit entries", r.Timing.DurationMs, len(r.AuditTrail)))
}

// renderBatch prints one line per candidate followed by the batch totals.
func renderBatch(w io.Writer, candidates []*types.InvoiceCandidate, b *deduplication.BatchResult) {
	gray := color.New(color.FgHiBlack)
	fmt.Fprintf(w, "Batch %s\n", b.BatchID)

	for i, c := range candidates {
		if reason, ok := b.Invalid[i]; ok {
			fmt.Fprintf(w, "  %3d  %s  %s\n", i, color.YellowString("INVALID"), reason)
			continue
		}
		r := b.Results[i]
		line := fmt.Sprintf("  %3d  %-9s %3.0f%%  %s", i, verdict(r), r.Confidence*100, describeCandidate(c))
		switch {
		case hasKey(b.WithinBatchDuplicates, i):
			line += gray.Sprintf("  (same as #%d)", b.WithinBatchDuplicates[i])
		case b.DuplicatePairs[i] != "":
			line += gray.Sprintf("  (matches %s)", b.DuplicatePairs[i])
		}
		fmt.Fprintln(w, riskColor(r.RiskLevel).Sprint(line))
	}

	s := b.Stats
	fmt.Fprintf(w, "\n  %s candidates: %d unique, %d duplicate, %d within batch, %d invalid, %d fail-safe\n",
		formatNumber(s.TotalCandidates), s.UniqueCount, s.DuplicateCount,
		s.WithinBatchDuplicateCount, s.InvalidCount, s.FailSafeCount)
	fmt.Fprintf(w, "  %s\n", gray.Sprintf("%s comparisons in %d ms", formatNumber(s.ComparisonsMade), s.ProcessingTimeMs))
}

func hasKey(m map[int]int, k int) bool {
	_, ok := m[k]
	return ok
}

// renderAuditEntry prints one audit entry in a two-line format: the stage
// line, then the snapshot keys.
func renderAuditEntry(w io.Writer, e events.AuditEntry) {
	label := string(e.Stage)
	if label == "" {
		label = string(e.Type)
	}
	fmt.Fprintf(w, "%3d [%s] %s %s\n",
		e.Sequence,
		e.Timestamp.Format("15:04:05.000"),
		color.New(color.FgMagenta).Sprintf("%-15s", label),
		severityColor(e.Severity).Sprint(e.Message),
	)
	if len(e.Data) > 0 {
		fmt.Fprintf(w, "    %s\n", color.New(color.FgHiBlack).Sprint(summarizeData(e.Data)))
	}
}

// summarizeData lists snapshot fields in key order, showing scalars inline
// and collections by size.
func summarizeData(data map[string]interface{}) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := data[k].(type) {
		case []interface{}:
			parts = append(parts, fmt.Sprintf("%s=[%d]", k, len(v)))
		case map[string]interface{}:
			parts = append(parts, fmt.Sprintf("%s={%d}", k, len(v)))
		case float64:
			parts = append(parts, fmt.Sprintf("%s=%s", k, formatFloat(v)))
		case nil:
			parts = append(parts, k+"=null")
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return strings.Join(parts, " | ")
}

func formatFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.4g", v)
}

// formatNumber formats a number with thousand separators
func formatNumber(n int) string {
	if n < 0 {
		return fmt.Sprintf("-%s", formatNumber(-n))
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", formatNumber(n/1000), n%1000)
}
