package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
)

type entry struct {
	code2   string
	code3   string
	alt3    string
	display string
	words   []string
}

var languages = []entry{
	{"en", "eng", "", "English", []string{"english"}},
	{"es", "spa", "", "Spanish", []string{"spanish", "español"}},
	{"fr", "fra", "fre", "French", []string{"french", "français"}},
	{"de", "deu", "ger", "German", []string{"german", "deutsch"}},
	{"it", "ita", "", "Italian", []string{"italian"}},
	{"pt", "por", "", "Portuguese", []string{"portuguese"}},
	{"ja", "jpn", "", "Japanese", []string{"japanese"}},
	{"ko", "kor", "", "Korean", []string{"korean"}},
	{"zh", "zho", "chi", "Chinese", []string{"chinese"}},
	{"ru", "rus", "", "Russian", []string{"russian"}},
	{"ar", "ara", "", "Arabic", []string{"arabic"}},
	{"hi", "hin", "", "Hindi", []string{"hindi"}},
	{"nl", "nld", "dut", "Dutch", []string{"dutch"}},
	{"pl", "pol", "", "Polish", []string{"polish"}},
	{"sv", "swe", "", "Swedish", []string{"swedish"}},
}

var (
	byCode map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode = make(map[string]*entry, len(languages)*3)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode[e.code2] = e
		byCode[e.code3] = e
		if e.alt3 != "" {
			byCode[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

// Base returns the primary ISO 639-1 subtag of a language tag, or the
// lowercased primary subtag when it is not recognised. Empty input returns "".
func Base(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return ""
	}
	if e, ok := byWord[tag]; ok {
		return e.code2
	}
	tag = strings.ReplaceAll(tag, "_", "-")
	primary, _, _ := strings.Cut(tag, "-")
	if e, ok := byCode[primary]; ok {
		return e.code2
	}
	if parsed, err := xlanguage.Parse(tag); err == nil {
		if base, conf := parsed.Base(); conf != xlanguage.No {
			return base.String()
		}
	}
	return primary
}

// IsEnglish reports whether tag names English in any regional variant.
func IsEnglish(tag string) bool {
	return Base(tag) == "en"
}

// SameBase reports whether two tags share a primary language.
func SameBase(a, b string) bool {
	base := Base(a)
	return base != "" && base == Base(b)
}

// DisplayName returns a human-readable language name for a tag.
// Returns "Unknown" for empty input, or the uppercased tag for unrecognized input.
func DisplayName(tag string) string {
	if strings.TrimSpace(tag) == "" {
		return "Unknown"
	}
	if e, ok := byCode[Base(tag)]; ok {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(tag))
}

// NormalizeList trims and deduplicates a preference list case-insensitively,
// keeping the first spelling of each tag and the caller's order.
func NormalizeList(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(strings.ReplaceAll(trimmed, "_", "-"))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
