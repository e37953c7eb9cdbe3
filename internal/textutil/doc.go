// Package textutil provides the comparison form of caption text and the
// similarity score used to detect near-duplicate phrases.
//
// Comparison keys are NFKC-normalized, case-folded, stripped of every rune
// that is not a letter, digit, underscore or space, and whitespace-collapsed.
// They are never stored; storage text keeps its casing and punctuation.
package textutil
