package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnqueueChunks persists every payload as a pending chunk in one transaction.
// Chunk indexes continue after the highest index already recorded for the video.
func (s *Store) EnqueueChunks(ctx context.Context, videoID int64, payloads [][]Phrase) ([]Chunk, error) {
	if len(payloads) == 0 {
		return nil, nil
	}
	encoded := make([]string, len(payloads))
	for i, payload := range payloads {
		data, err := encodePayload(payload)
		if err != nil {
			return nil, err
		}
		encoded[i] = data
	}

	var chunks []Chunk
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		chunks = chunks[:0]
		var base sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			`SELECT MAX(chunk_index) FROM processing_queue WHERE video_id = ?`, videoID,
		).Scan(&base); err != nil {
			return fmt.Errorf("read chunk index: %w", err)
		}
		next := 0
		if base.Valid {
			next = int(base.Int64) + 1
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO processing_queue (video_id, chunk_index, payload, phrase_count, status, created_at)
             VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare chunk insert: %w", err)
		}
		defer stmt.Close()

		now := s.now()
		for i, payload := range payloads {
			index := next + i
			res, err := stmt.ExecContext(ctx, videoID, index, encoded[i], len(payload), ChunkPending, formatTime(now))
			if err != nil {
				return fmt.Errorf("insert chunk %d: %w", index, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("chunk id: %w", err)
			}
			chunks = append(chunks, Chunk{
				ID:          id,
				VideoID:     videoID,
				ChunkIndex:  index,
				Payload:     payload,
				PhraseCount: len(payload),
				Status:      ChunkPending,
				CreatedAt:   now.UTC(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue chunks: %w", err)
	}
	return chunks, nil
}

// PendingChunks returns up to limit pending chunks of a video in ascending chunk index.
func (s *Store) PendingChunks(ctx context.Context, videoID int64, limit int) ([]Chunk, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM processing_queue
         WHERE video_id = ? AND status = ? ORDER BY chunk_index LIMIT ?`,
		videoID, ChunkPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pending chunks: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

// ListChunks returns every chunk of a video in chunk index order.
func (s *Store) ListChunks(ctx context.Context, videoID int64) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM processing_queue WHERE video_id = ? ORDER BY chunk_index`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

func collectChunks(rows *sql.Rows) ([]Chunk, error) {
	var chunks []Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, rows.Err()
}

// VideosWithPendingChunks lists videos that still have chunks to drain, oldest chunk first.
func (s *Store) VideosWithPendingChunks(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id FROM processing_queue WHERE status = ?
         GROUP BY video_id ORDER BY MIN(created_at), video_id`,
		ChunkPending,
	)
	if err != nil {
		return nil, fmt.Errorf("videos with pending chunks: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountPendingChunks returns how many chunks of a video are still pending.
func (s *Store) CountPendingChunks(ctx context.Context, videoID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM processing_queue WHERE video_id = ? AND status = ?`, videoID, ChunkPending,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending chunks: %w", err)
	}
	return count, nil
}

// CompleteChunk marks a pending chunk as completed.
func (s *Store) CompleteChunk(ctx context.Context, id int64) error {
	return s.finishChunk(ctx, id, ChunkCompleted, "")
}

// FailChunk marks a pending chunk as failed with a reason.
func (s *Store) FailChunk(ctx context.Context, id int64, reason string) error {
	return s.finishChunk(ctx, id, ChunkFailed, reason)
}

func (s *Store) finishChunk(ctx context.Context, id int64, status ChunkStatus, reason string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE processing_queue SET status = ?, error_message = ?, processed_at = ?
         WHERE id = ? AND status = ?`,
		status, nullableString(reason), s.timestamp(), id, ChunkPending,
	)
	if err != nil {
		return fmt.Errorf("mark chunk %s: %w", status, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("mark chunk %d %s: chunk is not pending", id, status)
	}
	return nil
}

// ReplaceChunkPayload shrinks a pending chunk to the phrases that remain unwritten.
func (s *Store) ReplaceChunkPayload(ctx context.Context, id int64, remaining []Phrase) error {
	data, err := encodePayload(remaining)
	if err != nil {
		return err
	}
	if _, err := s.execWithRetry(ctx,
		`UPDATE processing_queue SET payload = ?, phrase_count = ? WHERE id = ? AND status = ?`,
		data, len(remaining), id, ChunkPending,
	); err != nil {
		return fmt.Errorf("replace chunk payload: %w", err)
	}
	return nil
}

// PurgeChunks deletes completed and failed chunks processed before cutoff.
func (s *Store) PurgeChunks(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM processing_queue WHERE status IN (?, ?) AND processed_at IS NOT NULL AND processed_at < ?`,
		ChunkCompleted, ChunkFailed, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("purge chunks: %w", err)
	}
	return res.RowsAffected()
}

// ResetFailedChunks moves failed chunks back to pending. A zero videoID resets every video.
func (s *Store) ResetFailedChunks(ctx context.Context, videoID int64) (int64, error) {
	query := `UPDATE processing_queue SET status = ?, error_message = NULL, processed_at = NULL WHERE status = ?`
	args := []any{ChunkPending, ChunkFailed}
	if videoID != 0 {
		query += ` AND video_id = ?`
		args = append(args, videoID)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset failed chunks: %w", err)
	}
	return res.RowsAffected()
}

// DiscardFailedChunks deletes the failed chunks of one video.
func (s *Store) DiscardFailedChunks(ctx context.Context, videoID int64) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM processing_queue WHERE video_id = ? AND status = ?`, videoID, ChunkFailed)
	if err != nil {
		return 0, fmt.Errorf("discard failed chunks: %w", err)
	}
	return res.RowsAffected()
}

// ClearChunks deletes every chunk of a video regardless of status.
func (s *Store) ClearChunks(ctx context.Context, videoID int64) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM processing_queue WHERE video_id = ?`, videoID)
	if err != nil {
		return 0, fmt.Errorf("clear chunks: %w", err)
	}
	return res.RowsAffected()
}

// ChunkStatus aggregates chunk counts for one video, or every video when videoID is zero.
func (s *Store) ChunkStatus(ctx context.Context, videoID int64) (QueueStatus, error) {
	query := `SELECT COUNT(1),
            COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
            MIN(created_at), MAX(processed_at)
        FROM processing_queue`
	args := []any{ChunkPending, ChunkCompleted, ChunkFailed}
	if videoID != 0 {
		query += ` WHERE video_id = ?`
		args = append(args, videoID)
	}

	status := QueueStatus{VideoID: videoID}
	var firstCreated, lastProcessed sql.NullString
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&status.Total, &status.Pending, &status.Completed, &status.Failed, &firstCreated, &lastProcessed,
	); err != nil {
		return QueueStatus{}, fmt.Errorf("chunk status: %w", err)
	}
	status.FirstCreated = parseNullableTime(firstCreated)
	status.LastProcessedAt = parseNullableTime(lastProcessed)
	return status, nil
}

// ChunkStatusByVideo aggregates chunk counts per video that has any chunk.
func (s *Store) ChunkStatusByVideo(ctx context.Context) ([]QueueStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id, COUNT(1),
            SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
            SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
            SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
            MIN(created_at), MAX(processed_at)
        FROM processing_queue GROUP BY video_id ORDER BY video_id`,
		ChunkPending, ChunkCompleted, ChunkFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("chunk status by video: %w", err)
	}
	defer rows.Close()

	var out []QueueStatus
	for rows.Next() {
		var (
			status                      QueueStatus
			firstCreated, lastProcessed sql.NullString
		)
		if err := rows.Scan(&status.VideoID, &status.Total, &status.Pending, &status.Completed, &status.Failed,
			&firstCreated, &lastProcessed); err != nil {
			return nil, fmt.Errorf("scan chunk status: %w", err)
		}
		status.FirstCreated = parseNullableTime(firstCreated)
		status.LastProcessedAt = parseNullableTime(lastProcessed)
		out = append(out, status)
	}
	return out, rows.Err()
}
