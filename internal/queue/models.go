package queue

import (
	"fmt"
	"strings"
	"time"
)

// VideoStatus represents where a video is in the ingestion lifecycle.
type VideoStatus string

const (
	VideoPending     VideoStatus = "pending"
	VideoProcessing  VideoStatus = "processing"
	VideoProcessed   VideoStatus = "processed"
	VideoPartial     VideoStatus = "partial"
	VideoNoSubtitles VideoStatus = "no_subtitles"
	VideoFailed      VideoStatus = "failed"
)

var allVideoStatuses = []VideoStatus{
	VideoPending,
	VideoProcessing,
	VideoProcessed,
	VideoPartial,
	VideoNoSubtitles,
	VideoFailed,
}

// AllVideoStatuses returns every known video status in lifecycle order.
func AllVideoStatuses() []VideoStatus {
	out := make([]VideoStatus, len(allVideoStatuses))
	copy(out, allVideoStatuses)
	return out
}

// ParseVideoStatus converts user input into a VideoStatus.
func ParseVideoStatus(value string) (VideoStatus, error) {
	normalized := VideoStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allVideoStatuses {
		if status == normalized {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown video status %q", value)
}

// Terminal reports whether no further pipeline work is expected without an explicit retry.
func (s VideoStatus) Terminal() bool {
	switch s {
	case VideoProcessed, VideoNoSubtitles, VideoFailed:
		return true
	default:
		return false
	}
}

// ChunkStatus represents the lifecycle of one queue chunk.
type ChunkStatus string

const (
	ChunkPending   ChunkStatus = "pending"
	ChunkCompleted ChunkStatus = "completed"
	ChunkFailed    ChunkStatus = "failed"
)

// Video is a caption ingestion target.
type Video struct {
	ID              int64
	YouTubeID       string
	Title           string
	Status          VideoStatus
	ErrorMessage    string
	RunToken        string
	ProgressStage   string
	LastProcessedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Phrase is one searchable caption segment. Times are seconds.
type Phrase struct {
	VideoID int64   `json:"video_id"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Chunk is a persisted slice of phrases awaiting insertion.
type Chunk struct {
	ID           int64
	VideoID      int64
	ChunkIndex   int
	Payload      []Phrase
	PhraseCount  int
	Status       ChunkStatus
	ErrorMessage string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
	// PayloadErr is set when the stored payload could not be decoded.
	PayloadErr error
}

// QueueStatus aggregates chunk state for one video, or for all videos when VideoID is zero.
type QueueStatus struct {
	VideoID         int64
	Total           int
	Pending         int
	Completed       int
	Failed          int
	FirstCreated    *time.Time
	LastProcessedAt *time.Time
}

// HasPending reports whether any chunk still awaits draining.
func (q QueueStatus) HasPending() bool {
	return q.Pending > 0
}

// DatabaseHealth describes the state of the SQLite file and schema.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	TotalVideos      int
	TotalPhrases     int
	Error            string
}
