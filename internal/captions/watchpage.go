package captions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const playerResponseMarker = "ytInitialPlayerResponse"

type playerResponse struct {
	Captions struct {
		Renderer struct {
			CaptionTracks []struct {
				BaseURL      string `json:"baseUrl"`
				LanguageCode string `json:"languageCode"`
				Kind         string `json:"kind"`
				VssID        string `json:"vssId"`
				Name         struct {
					SimpleText string `json:"simpleText"`
				} `json:"name"`
			} `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

// watchPage scrapes the player response embedded in the public watch page.
type watchPage struct {
	fetch     *fetcher
	baseURL   string
	languages []string
}

func (s *watchPage) Name() string { return StrategyWatchPage }

func (s *watchPage) Fetch(ctx context.Context, youtubeID string) (string, Track, error) {
	page, err := s.fetch.get(ctx, s.baseURL+"/watch?v="+url.QueryEscape(youtubeID))
	if err != nil {
		return "", Track{}, fmt.Errorf("fetch watch page: %w", err)
	}
	tracks, err := ExtractPlayerTracks(page)
	if err != nil {
		return "", Track{}, err
	}
	track, ok := pickLanguageTrack(tracks, s.languages)
	if !ok || track.BaseURL == "" {
		return "", Track{}, fmt.Errorf("%w: watch page lists no caption tracks", errAbsent)
	}
	trackURL, err := resolveTrackURL(s.baseURL, track.BaseURL)
	if err != nil {
		return "", track, fmt.Errorf("%w: %v", errAbsent, err)
	}
	payload, err := s.fetch.get(ctx, withFormat(trackURL))
	if err != nil {
		return "", track, fmt.Errorf("download track %s: %w", track.Language, err)
	}
	return payload, track, nil
}

// ExtractPlayerTracks finds the player response in a watch page and returns
// its caption tracks.
func ExtractPlayerTracks(page string) ([]Track, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w: parse watch page: %v", errAbsent, err)
	}

	var raw string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if raw != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "script" {
			if text := scriptText(n); strings.Contains(text, playerResponseMarker) {
				raw = extractJSONObject(text, playerResponseMarker)
				if raw != "" {
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if raw == "" {
		return nil, fmt.Errorf("%w: player response not found", errAbsent)
	}

	var player playerResponse
	if err := json.Unmarshal([]byte(raw), &player); err != nil {
		return nil, fmt.Errorf("%w: decode player response: %v", errAbsent, err)
	}
	tracks := make([]Track, 0, len(player.Captions.Renderer.CaptionTracks))
	for _, t := range player.Captions.Renderer.CaptionTracks {
		tracks = append(tracks, Track{
			ID:       t.VssID,
			Language: t.LanguageCode,
			Kind:     t.Kind,
			Name:     t.Name.SimpleText,
			BaseURL:  t.BaseURL,
		})
	}
	return tracks, nil
}

func scriptText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// extractJSONObject returns the balanced JSON object that follows marker,
// skipping braces inside string literals.
func extractJSONObject(text, marker string) string {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return ""
	}
	start := strings.IndexByte(text[idx+len(marker):], '{')
	if start < 0 {
		return ""
	}
	start += idx + len(marker)

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func resolveTrackURL(base, track string) (string, error) {
	ref, err := url.Parse(track)
	if err != nil {
		return "", fmt.Errorf("parse track url: %w", err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	root, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return root.ResolveReference(ref).String(), nil
}
