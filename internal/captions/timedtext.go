package captions

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"phraseindex/internal/subtitles"
)

// timedText probes the legacy timedtext endpoint directly.
type timedText struct {
	fetch   *fetcher
	baseURL string
}

func (s *timedText) Name() string { return StrategyTimedText }

func (s *timedText) Fetch(ctx context.Context, youtubeID string) (string, Track, error) {
	var errs []error
	for _, lang := range []string{"en", "en-US", ""} {
		params := url.Values{}
		params.Set("v", youtubeID)
		if lang != "" {
			params.Set("lang", lang)
		}
		params.Set("fmt", "vtt")

		payload, err := s.fetch.get(ctx, s.baseURL+"/api/timedtext?"+params.Encode())
		if err != nil {
			if ctx.Err() != nil {
				return "", Track{}, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("lang %q: %w", lang, err))
			continue
		}
		if strings.TrimSpace(payload) == "" {
			errs = append(errs, fmt.Errorf("lang %q: %w: empty body", lang, errAbsent))
			continue
		}
		// Header-only tracks come back 200 for languages the video lacks.
		if len(subtitles.Parse(payload)) == 0 {
			errs = append(errs, fmt.Errorf("lang %q: %w: no cues", lang, errAbsent))
			continue
		}
		return payload, Track{Language: lang}, nil
	}
	return "", Track{}, worstOf(errs)
}

// worstOf returns the most severe probe error so classification reflects it.
func worstOf(errs []error) error {
	if len(errs) == 0 {
		return errAbsent
	}
	worst := errs[0]
	for _, err := range errs[1:] {
		if classify(err) > classify(worst) {
			worst = err
		}
	}
	return fmt.Errorf("%d timedtext probes failed: %w", len(errs), worst)
}
