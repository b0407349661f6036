package similarity

import "strings"

// Metaphone returns a simplified Metaphone code for s. It covers the common
// consonant reductions (silent letters, CH/SH/TH/PH digraphs, soft C and G)
// and is not a full implementation of the original rule set. Non-letters are
// ignored; the result is "" when s has no ASCII letters. TH is encoded as '0'.
func Metaphone(s string) string {
	w := []byte(strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r - ('a' - 'A')
		}
		if r >= 'A' && r <= 'Z' {
			return r
		}
		return -1
	}, s))
	if len(w) == 0 {
		return ""
	}

	at := func(i int) byte {
		if i < 0 || i >= len(w) {
			return 0
		}
		return w[i]
	}

	// Initial-letter exceptions.
	start := 0
	switch {
	case len(w) > 1 && (string(w[:2]) == "KN" || string(w[:2]) == "GN" || string(w[:2]) == "PN" ||
		string(w[:2]) == "AE" || string(w[:2]) == "WR"):
		start = 1
	case w[0] == 'X':
		w[0] = 'S'
	case len(w) > 1 && string(w[:2]) == "WH":
		w = append([]byte{'W'}, w[2:]...)
	}

	var b strings.Builder
	for i := start; i < len(w); i++ {
		c := w[i]
		// Doubled letters collapse, except CC which can be "KS".
		if c != 'C' && i > start && c == at(i-1) {
			continue
		}

		switch c {
		case 'A', 'E', 'I', 'O', 'U':
			if i == start {
				b.WriteByte(c)
			}
		case 'B':
			if !(i == len(w)-1 && at(i-1) == 'M') {
				b.WriteByte('B')
			}
		case 'C':
			switch {
			case at(i+1) == 'I' && at(i+2) == 'A':
				b.WriteByte('X')
			case at(i+1) == 'H':
				if at(i-1) == 'S' {
					b.WriteByte('K')
				} else {
					b.WriteByte('X')
				}
				i++
			case isFrontVowel(at(i + 1)):
				if at(i-1) != 'S' {
					b.WriteByte('S')
				}
			default:
				b.WriteByte('K')
			}
		case 'D':
			if at(i+1) == 'G' && isFrontVowel(at(i+2)) {
				b.WriteByte('J')
				i++
			} else {
				b.WriteByte('T')
			}
		case 'G':
			switch {
			case at(i+1) == 'H' && i+2 < len(w) && !isVowel(at(i+2)):
				// silent, as in "night"
			case at(i+1) == 'H' && i+2 >= len(w):
				// silent at the end, as in "high"
			case at(i+1) == 'N' && (i+2 == len(w) || (at(i+2) == 'E' && at(i+3) == 'D' && i+4 == len(w))):
				// silent, as in "sign" or "signed"
			case isFrontVowel(at(i + 1)):
				b.WriteByte('J')
			default:
				b.WriteByte('K')
			}
		case 'H':
			if isVowel(at(i+1)) && !strings.ContainsRune("CSPTG", rune(at(i-1))) {
				b.WriteByte('H')
			}
		case 'K':
			if at(i-1) != 'C' {
				b.WriteByte('K')
			}
		case 'P':
			if at(i+1) == 'H' {
				b.WriteByte('F')
				i++
			} else {
				b.WriteByte('P')
			}
		case 'Q':
			b.WriteByte('K')
		case 'S':
			switch {
			case at(i+1) == 'H':
				b.WriteByte('X')
				i++
			case at(i+1) == 'I' && (at(i+2) == 'O' || at(i+2) == 'A'):
				b.WriteByte('X')
			default:
				b.WriteByte('S')
			}
		case 'T':
			switch {
			case at(i+1) == 'I' && (at(i+2) == 'O' || at(i+2) == 'A'):
				b.WriteByte('X')
			case at(i+1) == 'H':
				b.WriteByte('0')
				i++
			case at(i+1) == 'C' && at(i+2) == 'H':
				// silent, the CH that follows is encoded
			default:
				b.WriteByte('T')
			}
		case 'V':
			b.WriteByte('F')
		case 'W', 'Y':
			if isVowel(at(i + 1)) {
				b.WriteByte(c)
			}
		case 'X':
			b.WriteString("KS")
		case 'Z':
			b.WriteByte('S')
		default:
			// F, J, L, M, N, R
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isVowel(c byte) bool {
	switch c {
	case 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}

func isFrontVowel(c byte) bool {
	return c == 'E' || c == 'I' || c == 'Y'
}
