package logging

import (
	"context"
	"log/slog"

	"phraseindex/internal/services"
)

const (
	// FieldComponent is the structured logging key for component names.
	FieldComponent = "component"
	// FieldVideoID is the key for internal video identifiers.
	FieldVideoID = "video_id"
	// FieldYouTubeID is the key for upstream video identifiers.
	FieldYouTubeID = "youtube_id"
	// FieldStage is the key for pipeline stage names.
	FieldStage = "stage"
	// FieldRunToken is the key for the per-run token stamped on a claimed video.
	FieldRunToken = "run_token"
	// FieldChunkIndex is the key for queue chunk positions.
	FieldChunkIndex = "chunk_index"
	// FieldCorrelationID is the key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.VideoIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldVideoID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if token, ok := services.RunTokenFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunToken, token))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return logger.With(args...)
}
