package deduplication

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/steveyegge/dupcheck/internal/normalize"
)

// exactAmountTolerance is the largest amount difference treated as equal.
var exactAmountTolerance = decimal.New(1, -2)

// findExactMatches returns every historical invoice whose normalized invoice
// number and supplier name equal the candidate's and whose amount is within
// one cent, in history order.
func findExactMatches(in *analysisInput) ([]ExactMatch, error) {
	if in.invoiceNumber == "" || in.supplierName == "" {
		return nil, nil
	}

	var matches []ExactMatch
	for i := range in.history {
		h := &in.history[i]
		if normalize.InvoiceNumber(h.InvoiceNumber) != in.invoiceNumber {
			continue
		}
		if normalize.SupplierName(h.SupplierName) != in.supplierName {
			continue
		}
		diff := in.candidate.TotalAmount.Sub(h.TotalAmount).Abs()
		if !diff.LessThan(exactAmountTolerance) {
			continue
		}

		hash, err := normalize.ContentHash(&h.InvoiceCandidate)
		if err != nil {
			return nil, fmt.Errorf("hashing historical invoice %s: %w", h.ID, err)
		}
		matches = append(matches, ExactMatch{
			HistoricalID:     h.ID,
			InvoiceNumber:    h.InvoiceNumber,
			SupplierName:     h.SupplierName,
			AmountDifference: diff,
			ContentHashMatch: hash == in.contentHash,
		})
	}
	return matches, nil
}
