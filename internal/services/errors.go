package services

import (
	"errors"
	"fmt"
	"strings"

	"phraseindex/internal/queue"
)

var (
	// ErrNoCaptions marks a video for which every acquisition strategy found nothing.
	ErrNoCaptions = errors.New("no captions available")
	// ErrQuota marks quota or authorization refusals from the caption source.
	ErrQuota = errors.New("caption source quota or authorization failure")
	// ErrTransient marks network errors and upstream 5xx responses.
	ErrTransient = errors.New("transient failure")
	// ErrWriteExhausted marks a write in which no row could be persisted.
	ErrWriteExhausted = errors.New("write fallback exhausted")
	ErrValidation     = errors.New("validation error")
	ErrConfiguration  = errors.New("configuration error")
	ErrNotFound       = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// VideoStatusFor maps a run-terminal error to the status persisted on the video.
// Missing captions are terminal; everything else is left retryable.
func VideoStatusFor(err error) queue.VideoStatus {
	if errors.Is(err, ErrNoCaptions) {
		return queue.VideoNoSubtitles
	}
	return queue.VideoFailed
}

// Retryable reports whether a later run of the same video may succeed.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNoCaptions), errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return false
	default:
		return true
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{stage, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
