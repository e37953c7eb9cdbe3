package captions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

type captionListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Language  string `json:"language"`
			TrackKind string `json:"trackKind"`
			Name      string `json:"name"`
		} `json:"snippet"`
	} `json:"items"`
}

// officialAPI lists tracks through the Data API and downloads the preferred one.
type officialAPI struct {
	fetch   *fetcher
	baseURL string
	apiKey  string
}

func (s *officialAPI) Name() string { return StrategyOfficialAPI }

func (s *officialAPI) Fetch(ctx context.Context, youtubeID string) (string, Track, error) {
	if s.apiKey == "" {
		return "", Track{}, fmt.Errorf("%w: youtube api key missing", errNotConfigured)
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("videoId", youtubeID)
	params.Set("key", s.apiKey)
	body, err := s.fetch.get(ctx, s.baseURL+"/captions?"+params.Encode())
	if err != nil {
		return "", Track{}, fmt.Errorf("list captions: %w", err)
	}

	var listing captionListResponse
	if err := json.Unmarshal([]byte(body), &listing); err != nil {
		return "", Track{}, fmt.Errorf("%w: decode caption listing: %v", errAbsent, err)
	}
	tracks := make([]Track, 0, len(listing.Items))
	for _, item := range listing.Items {
		tracks = append(tracks, Track{
			ID:       item.ID,
			Language: item.Snippet.Language,
			Kind:     item.Snippet.TrackKind,
			Name:     item.Snippet.Name,
		})
	}
	track, ok := pickOfficialTrack(tracks)
	if !ok || track.ID == "" {
		return "", Track{}, fmt.Errorf("%w: no caption tracks listed", errAbsent)
	}

	download := url.Values{}
	download.Set("tfmt", "vtt")
	download.Set("key", s.apiKey)
	payload, err := s.fetch.get(ctx, s.baseURL+"/captions/"+url.PathEscape(track.ID)+"?"+download.Encode())
	if err != nil {
		return "", track, fmt.Errorf("download track %s: %w", track.ID, err)
	}
	return payload, track, nil
}
