package prefilter

import (
	"sort"

	"github.com/steveyegge/dupcheck/internal/normalize"
	"github.com/steveyegge/dupcheck/internal/similarity"
	"github.com/steveyegge/dupcheck/internal/types"
)

const (
	defaultFalsePositiveRate  = 0.01
	defaultMaxSimHashDistance = 3
)

// Options tunes an Index.
type Options struct {
	// FalsePositiveRate is the Bloom filter target rate.
	FalsePositiveRate float64
	// MaxSimHashDistance is the largest Hamming distance at which two invoice
	// fingerprints are still considered near duplicates.
	MaxSimHashDistance int
}

// DefaultOptions returns the options used by NewIndex when none are given.
func DefaultOptions() Options {
	return Options{
		FalsePositiveRate:  defaultFalsePositiveRate,
		MaxSimHashDistance: defaultMaxSimHashDistance,
	}
}

// Index keeps blocking keys and SimHash fingerprints for a historical set so
// that Narrow can drop invoices that share nothing with a candidate.
//
// A historical invoice survives Narrow when it shares a normalized supplier
// name, supplier phonetic code, tax ID, invoice number or PO number with the
// candidate, or when its fingerprint is within MaxSimHashDistance. Fuzzy
// invoice-number matches across unrelated suppliers can be lost; callers that
// need those must pass the full set.
//
// Candidate keys go through the Bloom filter before the bucket map, so a
// candidate from an unseen supplier is rejected without touching the map.
type Index struct {
	opts         Options
	invoices     []types.HistoricalInvoice
	filter       *BloomFilter
	buckets      map[string][]int
	fingerprints []uint64
	hasPrint     []bool
}

// NewIndex builds an index over invoices. The slice is not copied; callers
// must not modify it while the index is in use.
func NewIndex(invoices []types.HistoricalInvoice, opts Options) (*Index, error) {
	if opts.FalsePositiveRate == 0 {
		opts.FalsePositiveRate = defaultFalsePositiveRate
	}
	if opts.MaxSimHashDistance == 0 {
		opts.MaxSimHashDistance = defaultMaxSimHashDistance
	}

	filter, err := NewBloomFilter(len(invoices)*5, opts.FalsePositiveRate)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		opts:         opts,
		invoices:     invoices,
		filter:       filter,
		buckets:      make(map[string][]int),
		fingerprints: make([]uint64, len(invoices)),
		hasPrint:     make([]bool, len(invoices)),
	}
	for i := range invoices {
		inv := &invoices[i].InvoiceCandidate
		for _, key := range blockingKeys(inv) {
			filter.Add(key)
			idx.buckets[key] = append(idx.buckets[key], i)
		}
		idx.fingerprints[i], idx.hasPrint[i] = SimHash(fingerprintTokens(inv))
	}
	return idx, nil
}

// Len returns the number of indexed invoices.
func (x *Index) Len() int { return len(x.invoices) }

// Narrow returns the indexed invoices worth comparing against candidate, in
// their original order.
func (x *Index) Narrow(candidate *types.InvoiceCandidate) []types.HistoricalInvoice {
	selected := make(map[int]struct{})
	for _, key := range x.passingKeys(candidate) {
		for _, i := range x.buckets[key] {
			selected[i] = struct{}{}
		}
	}

	if fp, ok := SimHash(fingerprintTokens(candidate)); ok {
		for i, other := range x.fingerprints {
			if x.hasPrint[i] && HammingDistance(fp, other) <= x.opts.MaxSimHashDistance {
				selected[i] = struct{}{}
			}
		}
	}

	order := make([]int, 0, len(selected))
	for i := range selected {
		order = append(order, i)
	}
	sort.Ints(order)

	out := make([]types.HistoricalInvoice, 0, len(order))
	for _, i := range order {
		out = append(out, x.invoices[i])
	}
	return out
}

// MayShareKey reports whether candidate might share a blocking key with any
// indexed invoice, using the Bloom filter alone. False is definite; true can
// be a false positive. SimHash neighbours are not considered.
func (x *Index) MayShareKey(candidate *types.InvoiceCandidate) bool {
	return len(x.passingKeys(candidate)) > 0
}

// passingKeys returns the candidate's blocking keys that pass the Bloom
// filter. Only these reach the bucket map, which stays authoritative: a
// filter false positive costs one empty map lookup.
func (x *Index) passingKeys(candidate *types.InvoiceCandidate) []string {
	keys := blockingKeys(candidate)
	out := keys[:0]
	for _, key := range keys {
		if x.filter.MayContain(key) {
			out = append(out, key)
		}
	}
	return out
}

// blockingKeys returns the exact-lookup keys for an invoice, prefixed by kind
// so values from different fields never collide.
func blockingKeys(c *types.InvoiceCandidate) []string {
	var keys []string
	if s := normalize.SupplierName(c.SupplierName); s != "" {
		keys = append(keys, "s:"+s)
		if code := similarity.Metaphone(s); code != "" {
			keys = append(keys, "m:"+code)
		}
	}
	if t := normalize.TaxID(c.SupplierTaxID); t != "" {
		keys = append(keys, "t:"+t)
	}
	if n := normalize.InvoiceNumber(c.InvoiceNumber); n != "" {
		keys = append(keys, "i:"+n)
	}
	if p := normalize.PONumber(c.PONumber); p != "" {
		keys = append(keys, "p:"+p)
	}
	return keys
}

func fingerprintTokens(c *types.InvoiceCandidate) []string {
	var tokens []string
	if n := normalize.InvoiceNumber(c.InvoiceNumber); n != "" {
		tokens = append(tokens, n)
	}
	tokens = append(tokens, similarity.Tokens(c.SupplierName)...)
	for _, item := range c.LineItems {
		tokens = append(tokens, similarity.Tokens(item.Description)...)
	}
	return tokens
}
