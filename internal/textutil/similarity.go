package textutil

import "strings"

// Similarity scores two comparison keys: 1.0 when equal, 0.9 when one contains
// the other, otherwise the share of words from a found in b relative to the
// longer word count. Empty keys only match each other.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.9
	}

	wordsA := Words(a)
	wordsB := Words(b)
	present := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		present[w] = struct{}{}
	}
	common := 0
	for _, w := range wordsA {
		if _, ok := present[w]; ok {
			common++
		}
	}
	longest := max(len(wordsA), len(wordsB))
	if longest == 0 {
		return 0
	}
	return float64(common) / float64(longest)
}
