package prefilter

import (
	"hash/fnv"
	"math/bits"
)

// SimHash returns a 64-bit locality-sensitive fingerprint of tokens: similar
// token multisets yield fingerprints with a small Hamming distance. The second
// return value is false when tokens is empty.
func SimHash(tokens []string) (uint64, bool) {
	if len(tokens) == 0 {
		return 0, false
	}

	var weights [64]int
	for _, token := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()
		for bit := 0; bit < 64; bit++ {
			if sum&(1<<bit) != 0 {
				weights[bit]++
			} else {
				weights[bit]--
			}
		}
	}

	var fp uint64
	for bit := 0; bit < 64; bit++ {
		if weights[bit] > 0 {
			fp |= 1 << bit
		}
	}
	return fp, true
}

// HammingDistance counts the differing bits of two fingerprints.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
