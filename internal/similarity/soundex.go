package similarity

import "strings"

// soundexCodes maps A..Z to their Soundex digit; 0 marks letters that are not coded.
var soundexCodes = [26]byte{
	// A  B    C    D    E  F    G    H  I  J    K    L    M    N    O  P    Q    R    S    T    U  V    W  X    Y  Z
	0, '1', '2', '3', 0, '1', '2', 0, 0, '2', '2', '4', '5', '5', 0, '1', '2', '6', '2', '3', 0, '1', 0, '2', 0, '2',
}

// Soundex returns the four-character American Soundex code of s, or "" when s
// contains no ASCII letters. Vowels separate repeated codes; H and W do not.
func Soundex(s string) string {
	letters := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c >= 'A' && c <= 'Z' {
			letters = append(letters, c)
		}
	}
	if len(letters) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteByte(letters[0])
	last := soundexCodes[letters[0]-'A']
	for _, c := range letters[1:] {
		if b.Len() == 4 {
			break
		}
		code := soundexCodes[c-'A']
		switch {
		case code != 0 && code != last:
			b.WriteByte(code)
			last = code
		case code == 0 && c != 'H' && c != 'W':
			last = 0
		}
	}
	for b.Len() < 4 {
		b.WriteByte('0')
	}
	return b.String()
}
