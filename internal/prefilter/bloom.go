// Package prefilter narrows a large historical-invoice set before it is handed
// to the duplicate detector. It is optional: the detector never calls it, and
// callers that compare against small windows can skip it entirely.
package prefilter

import (
	"fmt"
	"hash/fnv"
	"math"
)

// BloomFilter is a fixed-size probabilistic set. MayContain never returns
// false for an added key; it may return true for a key that was never added.
type BloomFilter struct {
	bits   []uint64
	m      uint64
	k      uint64
	length int
}

// NewBloomFilter sizes a filter for expectedItems keys at the target false
// positive rate fpRate, which must be in (0, 1).
func NewBloomFilter(expectedItems int, fpRate float64) (*BloomFilter, error) {
	if expectedItems <= 0 {
		expectedItems = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		return nil, fmt.Errorf("false positive rate must be between 0 and 1 exclusive (got %.4f)", fpRate)
	}

	n := float64(expectedItems)
	m := math.Ceil(-n * math.Log(fpRate) / (math.Ln2 * math.Ln2))
	k := math.Round(m / n * math.Ln2)
	if k < 1 {
		k = 1
	}
	words := (uint64(m) + 63) / 64
	return &BloomFilter{
		bits: make([]uint64, words),
		m:    words * 64,
		k:    uint64(k),
	}, nil
}

// Add inserts key into the filter.
func (b *BloomFilter) Add(key string) {
	h1, h2 := bloomHashes(key)
	for i := uint64(0); i < b.k; i++ {
		bit := (h1 + i*h2) % b.m
		b.bits[bit/64] |= 1 << (bit % 64)
	}
	b.length++
}

// MayContain reports whether key might have been added.
func (b *BloomFilter) MayContain(key string) bool {
	h1, h2 := bloomHashes(key)
	for i := uint64(0); i < b.k; i++ {
		bit := (h1 + i*h2) % b.m
		if b.bits[bit/64]&(1<<(bit%64)) == 0 {
			return false
		}
	}
	return true
}

// Len returns the number of Add calls, counting repeats.
func (b *BloomFilter) Len() int { return b.length }

// Bits returns the size of the filter in bits.
func (b *BloomFilter) Bits() uint64 { return b.m }

// Hashes returns the number of hash functions applied per key.
func (b *BloomFilter) Hashes() uint64 { return b.k }

// bloomHashes derives the two base hashes for double hashing (Kirsch-Mitzenmacher).
func bloomHashes(key string) (uint64, uint64) {
	a := fnv.New64a()
	_, _ = a.Write([]byte(key))
	f := fnv.New64()
	_, _ = f.Write([]byte(key))
	// h2 must be odd so it cycles through every bit position when m is a power of two.
	return a.Sum64(), f.Sum64() | 1
}
