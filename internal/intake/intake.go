// Package intake consumes video discovery messages from RabbitMQ and
// registers each announced video as pending.
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"phraseindex/internal/logging"
	"phraseindex/internal/pipeline"
	"phraseindex/internal/queue"
	"phraseindex/internal/services"
)

// Message is the discovery payload. VideoID is the publisher's own identifier
// and is only logged; videos are keyed by their YouTube ID.
type Message struct {
	VideoID        int64  `json:"video_id"`
	YouTubeVideoID string `json:"youtube_video_id"`
	Title          string `json:"title,omitempty"`
}

// Registrar stores discovered videos.
type Registrar interface {
	EnsureVideo(ctx context.Context, youtubeID, title string) (*queue.Video, bool, error)
}

// Acknowledger settles one delivery.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Handler decodes discovery messages and registers their videos.
type Handler struct {
	registrar Registrar
	logger    *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(registrar Registrar, logger *slog.Logger) *Handler {
	return &Handler{registrar: registrar, logger: logging.NewComponentLogger(logger, "intake")}
}

// Decode parses and validates a message body.
func Decode(body []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, services.Wrap(services.ErrValidation, "intake", "decode", "malformed message", err)
	}
	if strings.TrimSpace(msg.YouTubeVideoID) == "" {
		return Message{}, services.Wrap(services.ErrValidation, "intake", "decode", "youtube_video_id is required", nil)
	}
	id, err := pipeline.ParseYouTubeID(msg.YouTubeVideoID)
	if err != nil {
		return Message{}, err
	}
	msg.YouTubeVideoID = id
	msg.Title = strings.TrimSpace(msg.Title)
	return msg, nil
}

// Handle registers the video described by body.
func (h *Handler) Handle(ctx context.Context, body []byte) (*queue.Video, bool, error) {
	msg, err := Decode(body)
	if err != nil {
		return nil, false, err
	}
	video, created, err := h.registrar.EnsureVideo(ctx, msg.YouTubeVideoID, msg.Title)
	if err != nil {
		return nil, false, fmt.Errorf("register video %s: %w", msg.YouTubeVideoID, err)
	}
	h.logger.Info("video discovered",
		logging.Int64(logging.FieldVideoID, video.ID),
		logging.String(logging.FieldYouTubeID, video.YouTubeID),
		logging.Int64("source_video_id", msg.VideoID),
		logging.Bool("created", created),
	)
	return video, created, nil
}

// Settle handles one delivery and acknowledges it. Malformed messages are
// dropped without requeue; store failures are requeued.
func (h *Handler) Settle(ctx context.Context, body []byte, ack Acknowledger) error {
	_, _, err := h.Handle(ctx, body)
	switch {
	case err == nil:
		return ack.Ack(false)
	case !services.Retryable(err):
		h.logger.Warn("discarding malformed discovery message", logging.Error(err))
		return ack.Nack(false, false)
	default:
		h.logger.Warn("discovery message requeued", logging.Error(err))
		return ack.Nack(false, true)
	}
}
