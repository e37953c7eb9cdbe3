package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// timestampLayout is fixed-width so stored timestamps compare correctly as text.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

const videoColumns = "id, youtube_video_id, title, status, error_message, run_token, progress_stage, last_processed_at, created_at, updated_at"

const chunkColumns = "id, video_id, chunk_index, payload, phrase_count, status, error_message, created_at, processed_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(scanner rowScanner) (*Video, error) {
	var (
		video         Video
		title         sql.NullString
		status        string
		errorMessage  sql.NullString
		runToken      sql.NullString
		progressStage sql.NullString
		lastProcessed sql.NullString
		createdRaw    string
		updatedRaw    string
	)
	if err := scanner.Scan(
		&video.ID,
		&video.YouTubeID,
		&title,
		&status,
		&errorMessage,
		&runToken,
		&progressStage,
		&lastProcessed,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	video.Title = title.String
	video.Status = VideoStatus(status)
	video.ErrorMessage = errorMessage.String
	video.RunToken = runToken.String
	video.ProgressStage = progressStage.String
	video.LastProcessedAt = parseNullableTime(lastProcessed)
	if created, err := parseTime(createdRaw); err == nil {
		video.CreatedAt = created
	}
	if updated, err := parseTime(updatedRaw); err == nil {
		video.UpdatedAt = updated
	}
	return &video, nil
}

func scanChunk(scanner rowScanner) (*Chunk, error) {
	var (
		chunk        Chunk
		payload      string
		status       string
		errorMessage sql.NullString
		createdRaw   string
		processedRaw sql.NullString
	)
	if err := scanner.Scan(
		&chunk.ID,
		&chunk.VideoID,
		&chunk.ChunkIndex,
		&payload,
		&chunk.PhraseCount,
		&status,
		&errorMessage,
		&createdRaw,
		&processedRaw,
	); err != nil {
		return nil, err
	}
	chunk.Status = ChunkStatus(status)
	chunk.ErrorMessage = errorMessage.String
	chunk.ProcessedAt = parseNullableTime(processedRaw)
	if created, err := parseTime(createdRaw); err == nil {
		chunk.CreatedAt = created
	}
	phrases, err := decodePayload(payload)
	if err != nil {
		// Keep the row visible so the scheduler can fail it with a reason.
		chunk.PayloadErr = err
		return &chunk, nil
	}
	chunk.Payload = phrases
	return &chunk, nil
}

// ErrCorruptPayload marks a chunk whose stored phrases cannot be decoded.
var ErrCorruptPayload = errors.New("corrupt chunk payload")

func encodePayload(phrases []Phrase) (string, error) {
	data, err := json.Marshal(phrases)
	if err != nil {
		return "", fmt.Errorf("encode chunk payload: %w", err)
	}
	return string(data), nil
}

func decodePayload(raw string) ([]Phrase, error) {
	var phrases []Phrase
	if err := json.Unmarshal([]byte(raw), &phrases); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	return phrases, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timestampLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
