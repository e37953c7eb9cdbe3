package subtitles

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var markupPattern = regexp.MustCompile(`<[^>]*>`)

// CleanText prepares caption text for storage: markup is stripped, character
// entities are decoded, and whitespace is collapsed. Casing and punctuation are kept.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	stripped := markupPattern.ReplaceAllString(text, "")
	decoded := html.UnescapeString(stripped)
	return strings.Join(strings.Fields(decoded), " ")
}

// CleanFragments applies CleanText to every fragment and drops those left empty.
func CleanFragments(fragments []Fragment) []Fragment {
	out := make([]Fragment, 0, len(fragments))
	for _, f := range fragments {
		f.Text = CleanText(f.Text)
		if f.Text == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}
