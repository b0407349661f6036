package similarity

const (
	winklerPrefixScale = 0.1
	winklerMaxPrefix   = 4
)

// Jaro returns the Jaro similarity of a and b.
// Empty input scores 0; identical strings score 1.
func Jaro(a, b string) float64 {
	// Greedy matching depends on argument order; fix the order so Jaro(a, b) == Jaro(b, a).
	if a > b {
		a, b = b, a
	}
	s1, s2 := []rune(a), []rune(b)
	if len(s1) == 0 || len(s2) == 0 {
		return 0
	}
	if a == b {
		return 1
	}

	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	window := maxLen/2 - 1
	if window < 0 {
		window = 0
	}

	matched1 := make([]bool, len(s1))
	matched2 := make([]bool, len(s2))
	matches := 0
	for i := range s1 {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > len(s2) {
			hi = len(s2)
		}
		for j := lo; j < hi; j++ {
			if matched2[j] || s1[i] != s2[j] {
				continue
			}
			matched1[i] = true
			matched2[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	// Half the number of matched runes that appear in a different order.
	transpositions := 0
	k := 0
	for i := range s1 {
		if !matched1[i] {
			continue
		}
		for !matched2[k] {
			k++
		}
		if s1[i] != s2[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(len(s1)) + m/float64(len(s2)) + (m-float64(transpositions)/2)/m) / 3
}

// JaroWinkler returns the Jaro similarity boosted by 0.1 for each shared
// leading rune, up to four, scaled by (1 - Jaro).
func JaroWinkler(a, b string) float64 {
	jaro := Jaro(a, b)
	if jaro == 0 || jaro == 1 {
		return jaro
	}

	s1, s2 := []rune(a), []rune(b)
	prefix := 0
	for prefix < winklerMaxPrefix && prefix < len(s1) && prefix < len(s2) && s1[prefix] == s2[prefix] {
		prefix++
	}
	return jaro + float64(prefix)*winklerPrefixScale*(1-jaro)
}
