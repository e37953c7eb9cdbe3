package subtitles

import (
	"strings"
	"time"

	"phraseindex/internal/textutil"
)

// MergeOptions tunes fragment merging.
type MergeOptions struct {
	// Leeway is how far past the accumulator's end a fragment may start and still merge.
	Leeway time.Duration
	// OverlapWords bounds the suffix/prefix overlap checked when stitching.
	OverlapWords int
}

// DefaultMergeOptions returns the production merge tuning.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{Leeway: 2 * time.Second, OverlapWords: 3}
}

type mergeRule int

const (
	ruleNone mergeRule = iota
	ruleMarkerRepeat
	ruleReveal
	rulePunctuationEqual
	rulePunctuationReveal
	ruleStitch
)

func (r mergeRule) String() string {
	switch r {
	case ruleMarkerRepeat:
		return "marker_repeat"
	case ruleReveal:
		return "reveal"
	case rulePunctuationEqual:
		return "punctuation_equal"
	case rulePunctuationReveal:
		return "punctuation_reveal"
	case ruleStitch:
		return "stitch"
	default:
		return "none"
	}
}

// decision is the outcome of comparing the accumulator with the next fragment.
type decision struct {
	rule mergeRule
	text string
}

func (d decision) merged() bool { return d.rule != ruleNone }

// accumulator is the fold state. It is passed and returned by value.
type accumulator struct {
	current Fragment
	started bool
	merges  int
	emitted []Fragment
}

// Merge collapses overlapping and progressively revealed fragments into phrases.
// Passes repeat until one makes no merge, so Merge(Merge(x)) == Merge(x).
// The input is copied; the caller's slice is left untouched.
func Merge(fragments []Fragment, opts MergeOptions) []Fragment {
	if len(fragments) == 0 {
		return nil
	}
	if opts.OverlapWords <= 0 {
		opts.OverlapWords = DefaultMergeOptions().OverlapWords
	}
	if opts.Leeway < 0 {
		opts.Leeway = 0
	}

	phrases := append([]Fragment(nil), fragments...)
	for {
		next, merges := mergePass(phrases, opts)
		phrases = next
		if merges == 0 {
			return phrases
		}
	}
}

func mergePass(fragments []Fragment, opts MergeOptions) ([]Fragment, int) {
	SortFragments(fragments)
	acc := accumulator{emitted: make([]Fragment, 0, len(fragments))}
	for _, next := range fragments {
		acc = foldStep(acc, next, opts)
	}
	if acc.started {
		acc.emitted = append(acc.emitted, acc.current)
	}
	return acc.emitted, acc.merges
}

func foldStep(acc accumulator, next Fragment, opts MergeOptions) accumulator {
	if !acc.started {
		acc.current = next
		acc.started = true
		return acc
	}
	d := decide(acc.current, next, opts)
	if !d.merged() {
		acc.emitted = append(acc.emitted, acc.current)
		acc.current = next
		return acc
	}
	acc.current.Text = d.text
	acc.current.End = max(acc.current.End, next.End)
	acc.merges++
	return acc
}

// decide applies the merge rule table. The first matching rule wins.
func decide(current, next Fragment, opts MergeOptions) decision {
	if next.Start > current.End+opts.Leeway.Seconds() {
		return decision{}
	}

	currentMarker := isBracketed(current.Text)
	nextMarker := isBracketed(next.Text)
	switch {
	case currentMarker && nextMarker:
		if current.Text == next.Text {
			return decision{rule: ruleMarkerRepeat, text: current.Text}
		}
		return decision{}
	case currentMarker || nextMarker:
		return decision{}
	}

	return mergeText(current.Text, next.Text, opts.OverlapWords)
}

func mergeText(a, b string, overlapWords int) decision {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if b == "" {
		return decision{rule: ruleReveal, text: a}
	}
	if a == "" {
		return decision{rule: ruleReveal, text: b}
	}

	if text, ok := keepLonger(strings.ToLower(a), strings.ToLower(b), a, b); ok {
		return decision{rule: ruleReveal, text: text}
	}

	bareA := strings.Join(strings.Fields(strings.ToLower(textutil.StripPunctuation(a))), " ")
	bareB := strings.Join(strings.Fields(strings.ToLower(textutil.StripPunctuation(b))), " ")
	if bareA != "" && bareA == bareB {
		if len(b) > len(a) {
			return decision{rule: rulePunctuationEqual, text: b}
		}
		return decision{rule: rulePunctuationEqual, text: a}
	}
	if bareA != "" && bareB != "" {
		if text, ok := keepLonger(bareA, bareB, a, b); ok {
			return decision{rule: rulePunctuationReveal, text: text}
		}
	}

	if text, ok := stitch(a, b, overlapWords); ok {
		return decision{rule: ruleStitch, text: text}
	}
	return decision{}
}

// keepLonger returns the original text whose comparison form extends the other's.
func keepLonger(formA, formB, a, b string) (string, bool) {
	if strings.HasPrefix(formB, formA) && len(formB) > len(formA) {
		return b, true
	}
	if strings.HasPrefix(formA, formB) {
		return a, true
	}
	return "", false
}

// stitch joins b onto a when the last k words of a equal the first k words of b,
// for the largest k up to limit. Word comparison ignores case and punctuation.
func stitch(a, b string, limit int) (string, bool) {
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	maxK := min(len(wordsA), len(wordsB), limit)
	for k := maxK; k > 0; k-- {
		if overlapMatches(wordsA[len(wordsA)-k:], wordsB[:k]) {
			rest := wordsB[k:]
			if len(rest) == 0 {
				return strings.Join(wordsA, " "), true
			}
			return strings.Join(wordsA, " ") + " " + strings.Join(rest, " "), true
		}
	}
	return "", false
}

func overlapMatches(suffix, prefix []string) bool {
	for i := range suffix {
		left := comparableWord(suffix[i])
		if left == "" || left != comparableWord(prefix[i]) {
			return false
		}
	}
	return true
}

func comparableWord(word string) string {
	return strings.ToLower(textutil.StripPunctuation(word))
}
