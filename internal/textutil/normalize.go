package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ComparisonKey reduces text to the form used for equality and similarity checks.
func ComparisonKey(text string) string {
	if text == "" {
		return ""
	}
	folded := cases.Fold().String(norm.NFKC.String(text))
	return strings.Join(strings.Fields(stripPunctuation(folded)), " ")
}

// StripPunctuation removes every rune that is not a letter, digit, underscore or
// whitespace, keeping the original casing.
func StripPunctuation(text string) string {
	return stripPunctuation(text)
}

// Words splits a comparison key into its words.
func Words(key string) []string {
	return strings.Fields(key)
}

func stripPunctuation(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', unicode.IsSpace(r):
			return r
		default:
			return -1
		}
	}, text)
}
