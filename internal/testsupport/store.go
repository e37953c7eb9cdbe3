package testsupport

import (
	"context"
	"database/sql"
	"strconv"
	"testing"

	_ "modernc.org/sqlite"

	"phraseindex/internal/config"
	"phraseindex/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewVideo registers a pending video for tests using the provided store.
func NewVideo(t testing.TB, store *queue.Store, youtubeID string) *queue.Video {
	t.Helper()

	video, err := store.AddVideo(context.Background(), youtubeID, "")
	if err != nil {
		t.Fatalf("store.AddVideo: %v", err)
	}
	return video
}

// Phrases builds count consecutive one-second phrases for a video.
func Phrases(videoID int64, count int) []queue.Phrase {
	phrases := make([]queue.Phrase, count)
	for i := range phrases {
		phrases[i] = queue.Phrase{
			VideoID: videoID,
			Text:    "phrase " + strconv.Itoa(i),
			Start:   float64(i),
			End:     float64(i) + 1,
		}
	}
	return phrases
}

// CorruptChunk overwrites a chunk payload with undecodable text through a
// separate connection.
func CorruptChunk(t testing.TB, store *queue.Store, videoID int64, chunkIndex int) {
	t.Helper()

	db, err := sql.Open("sqlite", store.Path())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		t.Fatalf("busy timeout: %v", err)
	}
	if _, err := db.Exec(
		`UPDATE processing_queue SET payload = '{not json' WHERE video_id = ? AND chunk_index = ?`,
		videoID, chunkIndex,
	); err != nil {
		t.Fatalf("corrupt chunk: %v", err)
	}
}
