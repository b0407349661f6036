package similarity

import "strings"

const (
	tokenJaccardWeight = 0.7
	tokenOrderWeight   = 0.3
	tokenMinLen        = 3
)

// Tokens lower-cases s and splits it on anything that is not a letter or
// digit, dropping tokens shorter than three characters.
func Tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= tokenMinLen {
			out = append(out, f)
		}
	}
	return out
}

// TokenSimilarity scores two free-text descriptions as 0.7 times the Jaccard
// index of their token sets plus 0.3 times the share of positions holding the
// same token. Text without any token scores 0 against everything.
func TokenSimilarity(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		setB[t] = struct{}{}
	}
	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	jaccard := float64(inter) / float64(union)

	longest := len(ta)
	if len(tb) > longest {
		longest = len(tb)
	}
	same := 0
	for i := 0; i < len(ta) && i < len(tb); i++ {
		if ta[i] == tb[i] {
			same++
		}
	}
	order := float64(same) / float64(longest)

	return tokenJaccardWeight*jaccard + tokenOrderWeight*order
}
