package captions

import (
	"strings"

	"phraseindex/internal/language"
)

// Track is one caption track advertised by a caption source.
type Track struct {
	ID       string
	Language string
	Kind     string
	Name     string
	BaseURL  string
}

// Generated reports whether the track is speech-recognised.
func (t Track) Generated() bool {
	return strings.EqualFold(t.Kind, "asr")
}

// pickOfficialTrack prefers manual English, then generated English, then any
// generated track, then whatever comes first.
func pickOfficialTrack(tracks []Track) (Track, bool) {
	rules := []func(Track) bool{
		func(t Track) bool { return language.IsEnglish(t.Language) && !t.Generated() },
		func(t Track) bool { return language.IsEnglish(t.Language) && t.Generated() },
		func(t Track) bool { return t.Generated() },
		func(Track) bool { return true },
	}
	for _, rule := range rules {
		for _, track := range tracks {
			if rule(track) {
				return track, true
			}
		}
	}
	return Track{}, false
}

// pickLanguageTrack returns the first track matching the preferred languages in
// order. Exact tags win over regional variants; with no match the first track
// is returned.
func pickLanguageTrack(tracks []Track, languages []string) (Track, bool) {
	if len(tracks) == 0 {
		return Track{}, false
	}
	for _, match := range []func(a, b string) bool{strings.EqualFold, language.SameBase} {
		for _, lang := range languages {
			for _, track := range tracks {
				if match(track.Language, lang) {
					return track, true
				}
			}
		}
	}
	return tracks[0], true
}
