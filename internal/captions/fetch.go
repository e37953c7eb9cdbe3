package captions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

const maxPayloadBytes = 16 << 20

// StatusError reports a non-2xx response from a caption endpoint.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// errAbsent marks a response that succeeded but carried no usable captions.
var errAbsent = errors.New("captions absent")

// errNotConfigured marks a strategy that cannot run with the current config.
var errNotConfigured = errors.New("strategy not configured")

type failureKind int

const (
	failureAbsent failureKind = iota
	failureConfig
	failureQuota
	failureTransient
)

func (k failureKind) String() string {
	switch k {
	case failureConfig:
		return "configuration"
	case failureQuota:
		return "quota"
	case failureTransient:
		return "transient"
	default:
		return "absent"
	}
}

// classify maps a strategy error onto the failure taxonomy.
func classify(err error) failureKind {
	var statusErr *StatusError
	var netErr net.Error
	switch {
	case err == nil:
		return failureAbsent
	case errors.Is(err, errNotConfigured):
		return failureConfig
	case errors.As(err, &statusErr):
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized,
			statusErr.StatusCode == http.StatusForbidden,
			statusErr.StatusCode == http.StatusTooManyRequests:
			return failureQuota
		case statusErr.StatusCode >= 500:
			return failureTransient
		default:
			return failureAbsent
		}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return failureTransient
	default:
		return failureAbsent
	}
}

type fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// get issues a paced GET and returns the body of a 2xx response.
func (f *fetcher) get(ctx context.Context, rawURL string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = redactKey(urlErr.URL)
		}
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: redactKey(rawURL), StatusCode: resp.StatusCode, Body: snippet(string(body))}
	}
	return string(body), nil
}

func snippet(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		return body[:200] + "..."
	}
	return body
}

// redactKey hides API keys before URLs reach logs or error messages.
func redactKey(rawURL string) string {
	idx := strings.Index(rawURL, "key=")
	if idx < 0 {
		return rawURL
	}
	end := strings.IndexByte(rawURL[idx:], '&')
	if end < 0 {
		return rawURL[:idx] + "key=REDACTED"
	}
	return rawURL[:idx] + "key=REDACTED" + rawURL[idx+end:]
}

// withFormat appends fmt=vtt to a caption track URL.
func withFormat(baseURL string) string {
	if strings.Contains(baseURL, "?") {
		return baseURL + "&fmt=vtt"
	}
	return baseURL + "?fmt=vtt"
}
