package deduplication

import (
	"github.com/shopspring/decimal"

	"github.com/steveyegge/dupcheck/internal/similarity"
	"github.com/steveyegge/dupcheck/internal/types"
)

const lineItemExactMean = 0.95

var quantityTolerance = decimal.New(1, -2)

// matchLineItems pairs each candidate line item with its most similar
// qualifying line on every historical invoice. A pair qualifies when the
// description token similarity exceeds the threshold and either the
// quantities differ by less than 0.01 or the unit prices by less than the
// price tolerance. Lines whose description carries no token are ignored.
func matchLineItems(in *analysisInput) ([]MatchEvidence, error) {
	items := in.candidate.LineItems
	if len(items) == 0 {
		return nil, nil
	}

	var out []MatchEvidence
	for i := range in.history {
		h := &in.history[i]
		if len(h.LineItems) == 0 {
			continue
		}

		var pairs []LineItemPair
		var total float64
		for ci, item := range items {
			if len(similarity.Tokens(item.Description)) == 0 {
				continue
			}
			best := -1
			var bestPair LineItemPair
			for hi, other := range h.LineItems {
				sim := similarity.TokenSimilarity(item.Description, other.Description)
				if sim <= in.cfg.LineItemSimilarityThreshold {
					continue
				}
				qtyDiff := item.Quantity.Sub(other.Quantity).Abs()
				pricePct := priceDifferencePct(item, other)
				if !qtyDiff.LessThan(quantityTolerance) && pricePct >= in.cfg.LineItemPriceTolerance {
					continue
				}
				if best < 0 || sim > bestPair.Similarity {
					best = hi
					bestPair = LineItemPair{
						CandidateIndex:     ci,
						HistoricalIndex:    hi,
						Similarity:         sim,
						QuantityDifference: qtyDiff.String(),
						PriceDifferencePct: pricePct,
					}
				}
			}
			if best >= 0 {
				pairs = append(pairs, bestPair)
				total += bestPair.Similarity
			}
		}
		if len(pairs) == 0 {
			continue
		}

		mean := total / float64(len(pairs))
		matchType := types.DuplicateFuzzy
		if mean > lineItemExactMean {
			matchType = types.DuplicateExact
		}
		out = append(out, &LineItemMatch{
			HistoricalID: h.ID,
			Pairs:        pairs,
			Confidence:   mean,
			MatchType:    matchType,
		})
	}
	return out, nil
}

// priceDifferencePct is the unit price difference in percent of the
// historical price. Two zero prices differ by 0%; a zero historical price
// against a non-zero one differs by 100%.
func priceDifferencePct(candidate, historical types.LineItem) float64 {
	diff := candidate.UnitPrice.Sub(historical.UnitPrice).Abs()
	if historical.UnitPrice.IsZero() {
		if diff.IsZero() {
			return 0
		}
		return 100
	}
	return diff.Div(historical.UnitPrice.Abs()).Mul(hundred).InexactFloat64()
}
