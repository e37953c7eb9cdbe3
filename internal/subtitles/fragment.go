package subtitles

import (
	"sort"
	"strings"
)

// Fragment is one timed caption cue. Times are seconds from the start of the video.
type Fragment struct {
	Start float64
	End   float64
	Text  string
}

// Bracketed reports whether the text is a non-speech marker such as "[Music]".
func (f Fragment) Bracketed() bool {
	return isBracketed(f.Text)
}

func isBracketed(text string) bool {
	return strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]")
}

// SortFragments orders fragments by start time, then end time. The sort is stable
// so cues with identical timing keep their source order.
func SortFragments(fragments []Fragment) {
	sort.SliceStable(fragments, func(i, j int) bool {
		if fragments[i].Start != fragments[j].Start {
			return fragments[i].Start < fragments[j].Start
		}
		return fragments[i].End < fragments[j].End
	})
}
