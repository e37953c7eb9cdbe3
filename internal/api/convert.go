package api

import (
	"time"

	"phraseindex/internal/pipeline"
	"phraseindex/internal/queue"
	"phraseindex/internal/workflow"
)

// FromVideo converts a stored video to its API representation.
func FromVideo(video *queue.Video) Video {
	if video == nil {
		return Video{}
	}
	return Video{
		ID:              video.ID,
		YouTubeID:       video.YouTubeID,
		Title:           video.Title,
		Status:          string(video.Status),
		Stage:           video.ProgressStage,
		ErrorMessage:    video.ErrorMessage,
		LastProcessedAt: formatTimePtr(video.LastProcessedAt),
		CreatedAt:       formatTime(video.CreatedAt),
		UpdatedAt:       formatTime(video.UpdatedAt),
	}
}

// FromQueueStatus converts aggregated chunk counts.
func FromQueueStatus(status queue.QueueStatus) QueueStatus {
	return QueueStatus{
		VideoID:         status.VideoID,
		Total:           status.Total,
		Pending:         status.Pending,
		Completed:       status.Completed,
		Failed:          status.Failed,
		FirstCreated:    formatTimePtr(status.FirstCreated),
		LastProcessedAt: formatTimePtr(status.LastProcessedAt),
	}
}

// FromRunResult converts a pipeline result.
func FromRunResult(result pipeline.Result) RunResult {
	return RunResult{
		VideoID:        result.VideoID,
		Status:         string(result.Status),
		PhrasesIndexed: result.PhrasesIndexed,
		Strategy:       result.Strategy,
		Duplicates:     result.Duplicates,
		ChunksQueued:   result.ChunksQueued,
		ChunksFailed:   result.ChunksFailed,
		Pending:        result.Pending,
		Message:        result.Message,
	}
}

// FromStatusSummary converts workflow diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	out := WorkflowStatus{
		Running:   summary.Running,
		Ticks:     summary.Ticks,
		LastTick:  formatTime(summary.LastTick),
		LastError: summary.LastError,
		Videos:    make(map[string]int, len(summary.VideoStats)),
		Chunks:    FromQueueStatus(summary.Chunks),
	}
	for status, count := range summary.VideoStats {
		out.Videos[string(status)] = count
	}
	if summary.LastResult != nil {
		result := FromRunResult(*summary.LastResult)
		out.LastResult = &result
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
