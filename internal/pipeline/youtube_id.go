package pipeline

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"phraseindex/internal/services"
)

var youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseYouTubeID accepts a bare video ID or a watch, short or embed URL.
func ParseYouTubeID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if youtubeIDPattern.MatchString(input) {
		return input, nil
	}
	parsed, err := url.Parse(input)
	if err == nil && parsed.Host != "" {
		host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
		host = strings.TrimPrefix(host, "m.")
		var candidate string
		switch host {
		case "youtu.be":
			candidate = strings.Trim(parsed.Path, "/")
		case "youtube.com", "music.youtube.com":
			switch {
			case parsed.Path == "/watch":
				candidate = parsed.Query().Get("v")
			case strings.HasPrefix(parsed.Path, "/embed/"),
				strings.HasPrefix(parsed.Path, "/shorts/"),
				strings.HasPrefix(parsed.Path, "/live/"):
				parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
				if len(parts) >= 2 {
					candidate = parts[1]
				}
			}
		}
		if youtubeIDPattern.MatchString(candidate) {
			return candidate, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "resolve", "", fmt.Sprintf("not a youtube video id or url: %q", input), nil)
}
