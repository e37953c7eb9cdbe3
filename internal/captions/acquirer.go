package captions

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kkdai/youtube/v2"

	"phraseindex/internal/budget"
	"phraseindex/internal/config"
	"phraseindex/internal/logging"
	"phraseindex/internal/services"
	"phraseindex/internal/subtitles"
)

// Strategy names reported in results and logs.
const (
	StrategyOfficialAPI = "official_api"
	StrategyWatchPage   = "watch_page"
	StrategyInnertube   = "innertube"
	StrategyTimedText   = "timedtext"
)

type strategy interface {
	Name() string
	Fetch(ctx context.Context, youtubeID string) (string, Track, error)
}

// Attempt records the outcome of one strategy.
type Attempt struct {
	Strategy string
	Failure  string
	Err      error
}

// Result is a successful acquisition.
type Result struct {
	Fragments []subtitles.Fragment
	Strategy  string
	Language  string
	Attempts  []Attempt
}

// Acquirer walks the configured strategies in order.
type Acquirer struct {
	strategies []strategy
	logger     *slog.Logger
	httpClient *http.Client
	lookup     VideoLookup
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithHTTPClient overrides the HTTP client used for every caption request.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Acquirer) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// WithVideoLookup overrides the innertube client.
func WithVideoLookup(lookup VideoLookup) Option {
	return func(a *Acquirer) {
		if lookup != nil {
			a.lookup = lookup
		}
	}
}

// New builds an Acquirer from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Acquirer {
	a := &Acquirer{
		logger:     logging.NewComponentLogger(logger, "captions"),
		httpClient: &http.Client{Timeout: cfg.RequestTimeout()},
	}
	for _, opt := range opts {
		opt(a)
	}

	fetch := &fetcher{
		client:    a.httpClient,
		limiter:   newLimiter(cfg.YouTube.RequestsPerSecond),
		userAgent: cfg.YouTube.UserAgent,
	}
	languages := cfg.YouTube.Languages

	a.strategies = []strategy{
		&officialAPI{fetch: fetch, baseURL: cfg.YouTube.APIBaseURL, apiKey: cfg.YouTube.APIKey},
		&watchPage{fetch: fetch, baseURL: cfg.YouTube.WatchBaseURL, languages: languages},
	}
	if cfg.YouTube.InnertubeEnabled || a.lookup != nil {
		lookup := a.lookup
		if lookup == nil {
			lookup = &youtube.Client{HTTPClient: a.httpClient}
		}
		a.strategies = append(a.strategies, &innertube{fetch: fetch, lookup: lookup, languages: languages})
	}
	a.strategies = append(a.strategies, &timedText{fetch: fetch, baseURL: cfg.YouTube.TimedTextBaseURL})
	return a
}

// Strategies returns the strategy names in the order they are tried.
func (a *Acquirer) Strategies() []string {
	names := make([]string, len(a.strategies))
	for i, s := range a.strategies {
		names[i] = s.Name()
	}
	return names
}

// Acquire returns the fragments of the first strategy that yields any. When
// every strategy fails the error carries services.ErrTransient if any failure
// was transient, else services.ErrQuota if any hit quota or auth limits, else
// services.ErrNoCaptions. The tracker is consulted between strategies.
func (a *Acquirer) Acquire(ctx context.Context, youtubeID string, tracker *budget.Tracker) (Result, error) {
	logger := logging.WithContext(ctx, a.logger).With(logging.String(logging.FieldYouTubeID, youtubeID))
	var (
		result Result
		worst  = failureAbsent
	)

	for i, s := range a.strategies {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if i > 0 {
			if err := tracker.Check(); err != nil {
				return result, services.Wrap(services.ErrTransient, "acquire", s.Name(), "budget exhausted before strategy", err)
			}
		}

		payload, track, err := s.Fetch(ctx, youtubeID)
		if err == nil {
			fragments := subtitles.Parse(payload)
			if len(fragments) > 0 {
				result.Fragments = fragments
				result.Strategy = s.Name()
				result.Language = track.Language
				logger.Info("captions acquired",
					logging.String("strategy", s.Name()),
					logging.String("language", track.Language),
					logging.Int("fragments", len(fragments)),
				)
				return result, nil
			}
			err = fmt.Errorf("%w: payload parsed to zero fragments", errAbsent)
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		kind := classify(err)
		worst = max(worst, kind)
		result.Attempts = append(result.Attempts, Attempt{Strategy: s.Name(), Failure: kind.String(), Err: err})
		logger.Debug("caption strategy failed",
			logging.String("strategy", s.Name()),
			logging.String("failure", kind.String()),
			logging.Error(err),
		)
	}

	return result, exhaustedError(worst, result.Attempts)
}

func exhaustedError(worst failureKind, attempts []Attempt) error {
	var last error
	if len(attempts) > 0 {
		last = attempts[len(attempts)-1].Err
	}
	msg := fmt.Sprintf("%d strategies exhausted", len(attempts))
	switch worst {
	case failureTransient:
		return services.Wrap(services.ErrTransient, "acquire", "", msg, firstOfKind(attempts, failureTransient, last))
	case failureQuota:
		return services.Wrap(services.ErrQuota, "acquire", "", msg, firstOfKind(attempts, failureQuota, last))
	default:
		return services.Wrap(services.ErrNoCaptions, "acquire", "", msg, nil)
	}
}

func firstOfKind(attempts []Attempt, kind failureKind, fallback error) error {
	for _, attempt := range attempts {
		if attempt.Failure == kind.String() {
			return fmt.Errorf("%s: %w", attempt.Strategy, attempt.Err)
		}
	}
	return fallback
}
