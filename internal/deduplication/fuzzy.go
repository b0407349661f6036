package deduplication

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/steveyegge/dupcheck/internal/normalize"
	"github.com/steveyegge/dupcheck/internal/similarity"
)

var hundred = decimal.NewFromInt(100)

// matchInvoiceNumbers scores each historical invoice number with both
// Levenshtein and Jaro-Winkler similarity on the normalized form and keeps the
// better score. Noise words such as INV or INVOICE never contribute unless
// the number consists of nothing else.
func matchInvoiceNumbers(in *analysisInput) ([]MatchEvidence, error) {
	candidate := in.invoiceNumber
	if candidate == "" {
		return nil, nil
	}

	var out []MatchEvidence
	for i := range in.history {
		h := &in.history[i]
		other := normalize.InvoiceNumber(h.InvoiceNumber)
		if other == "" {
			continue
		}
		lev := similarity.LevenshteinSimilarity(candidate, other)
		jw := similarity.JaroWinkler(candidate, other)
		score, algo := lev, AlgorithmLevenshtein
		if jw > lev {
			score, algo = jw, AlgorithmJaroWinkler
		}
		if score < in.cfg.JaroWinklerThreshold {
			continue
		}
		out = append(out, &FuzzyMatch{
			HistoricalID:          h.ID,
			Field:                 FieldInvoiceNumber,
			Algorithm:             algo,
			Confidence:            score,
			CandidateValue:        candidate,
			HistoricalValue:       other,
			LevenshteinSimilarity: lev,
			JaroWinkler:           jw,
		})
	}
	return out, nil
}

// matchSupplierNames compares normalized supplier names by Jaro-Winkler and
// by phonetic codes. Agreement of both Soundex and Metaphone is worth
// Config.PhoneticConfidence.
func matchSupplierNames(in *analysisInput) ([]MatchEvidence, error) {
	if in.supplierName == "" {
		return nil, nil
	}
	candSoundex := similarity.Soundex(in.supplierName)
	candMetaphone := similarity.Metaphone(in.supplierName)

	var out []MatchEvidence
	for i := range in.history {
		h := &in.history[i]
		name := normalize.SupplierName(h.SupplierName)
		if name == "" {
			continue
		}

		jw := similarity.JaroWinkler(in.supplierName, name)
		soundex := similarity.Soundex(name)
		metaphone := similarity.Metaphone(name)
		phonetic := candSoundex != "" && candSoundex == soundex && candMetaphone != "" && candMetaphone == metaphone

		confidence, algo := jw, AlgorithmJaroWinkler
		if phonetic && in.cfg.PhoneticConfidence > jw {
			confidence, algo = in.cfg.PhoneticConfidence, AlgorithmPhonetic
		}
		if confidence < in.cfg.SupplierNameThreshold {
			continue
		}
		out = append(out, &FuzzyMatch{
			HistoricalID:        h.ID,
			Field:               FieldSupplierName,
			Algorithm:           algo,
			Confidence:          confidence,
			CandidateValue:      in.supplierName,
			HistoricalValue:     name,
			JaroWinkler:         jw,
			CandidateSoundex:    candSoundex,
			HistoricalSoundex:   soundex,
			CandidateMetaphone:  candMetaphone,
			HistoricalMetaphone: metaphone,
			PhoneticMatch:       phonetic,
		})
	}
	return out, nil
}

// matchAmounts matches amounts within the absolute or the percentage
// tolerance. The percentage is relative to the candidate amount.
//
// Confidence is 1 - min(pct/tolerance, 1). A match that only passes the
// absolute tolerance scores 1 - diff/(2*absTolerance) instead, which keeps
// small-amount matches between 0.5 and 1.
func matchAmounts(in *analysisInput) ([]MatchEvidence, error) {
	amount := in.candidate.TotalAmount
	if !amount.IsPositive() {
		return nil, nil
	}
	absTol := in.cfg.AmountAbsoluteTolerance
	pctTol := in.cfg.AmountPercentTolerance

	var out []MatchEvidence
	for i := range in.history {
		h := &in.history[i]
		diff := amount.Sub(h.TotalAmount).Abs()
		pct := diff.Div(amount).Mul(hundred).InexactFloat64()

		absMatch := diff.LessThanOrEqual(absTol)
		pctMatch := pct <= pctTol
		if !absMatch && !pctMatch {
			continue
		}

		confidence := 1 - math.Min(pct/pctTol, 1)
		algo := AlgorithmPercentageTolerance
		if absMatch && absTol.IsPositive() {
			absConf := 1 - diff.Div(absTol.Mul(decimal.NewFromInt(2))).InexactFloat64()
			if absConf > confidence || !pctMatch {
				confidence, algo = absConf, AlgorithmAbsoluteTolerance
			}
		} else if absMatch {
			// zero absolute tolerance: only identical amounts get here
			confidence, algo = 1, AlgorithmAbsoluteTolerance
		}

		d := diff
		out = append(out, &FuzzyMatch{
			HistoricalID:      h.ID,
			Field:             FieldAmount,
			Algorithm:         algo,
			Confidence:        clamp01(confidence),
			CandidateValue:    normalize.Amount(amount),
			HistoricalValue:   normalize.Amount(h.TotalAmount),
			AmountDifference:  &d,
			PercentDifference: pct,
		})
	}
	return out, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
