package captions

import (
	"context"
	"fmt"

	"github.com/kkdai/youtube/v2"
)

// VideoLookup is the slice of the innertube client used to list caption tracks.
type VideoLookup interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
}

// innertube lists tracks through the innertube player API.
type innertube struct {
	fetch     *fetcher
	lookup    VideoLookup
	languages []string
}

func (s *innertube) Name() string { return StrategyInnertube }

func (s *innertube) Fetch(ctx context.Context, youtubeID string) (string, Track, error) {
	if err := s.fetch.limiter.Wait(ctx); err != nil {
		return "", Track{}, err
	}
	video, err := s.lookup.GetVideoContext(ctx, youtubeID)
	if err != nil {
		return "", Track{}, fmt.Errorf("innertube lookup: %w", err)
	}
	tracks := make([]Track, 0, len(video.CaptionTracks))
	for _, t := range video.CaptionTracks {
		tracks = append(tracks, Track{
			ID:       t.VssID,
			Language: t.LanguageCode,
			Kind:     t.Kind,
			Name:     t.Name.SimpleText,
			BaseURL:  t.BaseURL,
		})
	}
	track, ok := pickLanguageTrack(tracks, s.languages)
	if !ok || track.BaseURL == "" {
		return "", Track{}, fmt.Errorf("%w: innertube lists no caption tracks", errAbsent)
	}
	payload, err := s.fetch.get(ctx, withFormat(track.BaseURL))
	if err != nil {
		return "", track, fmt.Errorf("download track %s: %w", track.Language, err)
	}
	return payload, track, nil
}
