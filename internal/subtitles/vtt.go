package subtitles

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var vttSkipLine = regexp.MustCompile(`^(WEBVTT|NOTE|STYLE|REGION|Kind:|Language:)`)

// Parse converts a caption payload into fragments in source order. WebVTT is the
// expected format; YouTube timedtext XML is recognised and decoded as well.
func Parse(payload string) []Fragment {
	trimmed := strings.TrimSpace(strings.TrimPrefix(payload, "\ufeff"))
	if trimmed == "" {
		return nil
	}
	if looksLikeTimedTextXML(trimmed) {
		if fragments, err := parseTimedTextXML([]byte(trimmed)); err == nil {
			return fragments
		}
	}
	return ParseVTT(trimmed)
}

// ParseVTT reads WebVTT cues. A timing line opens a cue and the next non-blank
// line becomes its text; further lines of the same cue are ignored.
func ParseVTT(content string) []Fragment {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	fragments := make([]Fragment, 0, len(lines)/3)

	var pending *Fragment
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		// Header and block keywords only count outside a cue.
		if pending == nil && vttSkipLine.MatchString(line) {
			continue
		}
		if strings.Contains(line, "-->") {
			start, end := parseTimingLine(line)
			pending = &Fragment{Start: start, End: end}
			continue
		}
		if pending == nil {
			// cue identifiers and stray block content
			continue
		}
		pending.Text = line
		fragments = append(fragments, *pending)
		pending = nil
	}
	return fragments
}

func parseTimingLine(line string) (float64, float64) {
	left, right, _ := strings.Cut(line, "-->")
	start := ParseTimecode(left)
	endField := strings.Fields(right)
	end := 0.0
	if len(endField) > 0 {
		end = ParseTimecode(endField[0])
	}
	if end < start {
		end = start
	}
	return start, end
}

// ParseTimecode converts HH:MM:SS.mmm, MM:SS.mmm or bare seconds into seconds.
// A comma decimal separator is accepted. Anything malformed yields 0.
func ParseTimecode(value string) float64 {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
	if value == "" {
		return 0
	}
	parts := strings.Split(value, ":")
	var hours, minutes int
	var secondsText string
	switch len(parts) {
	case 3:
		h, errH := strconv.Atoi(parts[0])
		m, errM := strconv.Atoi(parts[1])
		if errH != nil || errM != nil {
			return 0
		}
		hours, minutes, secondsText = h, m, parts[2]
	case 2:
		m, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0
		}
		minutes, secondsText = m, parts[1]
	case 1:
		secondsText = parts[0]
	default:
		return 0
	}
	seconds, err := strconv.ParseFloat(secondsText, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	if hours < 0 || minutes < 0 || seconds < 0 {
		return 0
	}
	if len(parts) > 1 && seconds >= 60 {
		return 0
	}
	if len(parts) == 3 && minutes >= 60 {
		return 0
	}
	return float64(hours*3600+minutes*60) + seconds
}
