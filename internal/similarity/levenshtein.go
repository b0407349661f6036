// Package similarity implements the string-similarity measures used by the
// duplicate detector: edit distance, Jaro-Winkler, Soundex, Metaphone and
// token overlap. Every function is pure and safe on empty input.
package similarity

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// LevenshteinDistance returns the minimum number of single-rune edits needed
// to turn a into b.
func LevenshteinDistance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// LevenshteinSimilarity returns 1 - distance/max(len(a), len(b)) in runes.
// Two empty strings score 0.
func LevenshteinSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	return 1 - float64(LevenshteinDistance(a, b))/float64(maxLen)
}
