package services_test

import (
	"errors"
	"strings"
	"testing"

	"phraseindex/internal/queue"
	"phraseindex/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "acquire", "watch_page", "fetch failed", base)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"acquire", "watch_page", "fetch failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestVideoStatusMapping(t *testing.T) {
	noCaptions := services.Wrap(services.ErrNoCaptions, "acquire", "", "all strategies exhausted", nil)
	if status := services.VideoStatusFor(noCaptions); status != queue.VideoNoSubtitles {
		t.Fatalf("expected no_subtitles, got %s", status)
	}
	quota := services.Wrap(services.ErrQuota, "acquire", "official_api", "403", nil)
	if status := services.VideoStatusFor(quota); status != queue.VideoFailed {
		t.Fatalf("expected failed for quota error, got %s", status)
	}
	if services.Retryable(noCaptions) {
		t.Fatal("missing captions should not be retryable")
	}
	if !services.Retryable(quota) {
		t.Fatal("quota failure should be retryable")
	}
}
