package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDuplicateVideo is returned when a video with the same upstream ID already exists.
var ErrDuplicateVideo = errors.New("video already exists")

// AddVideo registers a new pending video. It fails with ErrDuplicateVideo when
// the upstream identifier is already known.
func (s *Store) AddVideo(ctx context.Context, youtubeID, title string) (*Video, error) {
	youtubeID = strings.TrimSpace(youtubeID)
	if youtubeID == "" {
		return nil, errors.New("youtube id is required")
	}
	now := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO videos (youtube_video_id, title, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		youtubeID, nullableString(title), VideoPending, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateVideo, youtubeID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("video id: %w", err)
	}
	return s.GetVideo(ctx, id)
}

// EnsureVideo returns the video for youtubeID, creating it as pending when absent.
// The boolean reports whether a row was created.
func (s *Store) EnsureVideo(ctx context.Context, youtubeID, title string) (*Video, bool, error) {
	video, err := s.AddVideo(ctx, youtubeID, title)
	if err == nil {
		return video, true, nil
	}
	if !errors.Is(err, ErrDuplicateVideo) {
		return nil, false, err
	}
	video, err = s.VideoByYouTubeID(ctx, youtubeID)
	if err != nil {
		return nil, false, err
	}
	if video == nil {
		return nil, false, fmt.Errorf("video %s vanished after insert conflict", youtubeID)
	}
	return video, false, nil
}

// GetVideo fetches a video by internal ID. It returns nil when absent.
func (s *Store) GetVideo(ctx context.Context, id int64) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// VideoByYouTubeID fetches a video by upstream identifier. It returns nil when absent.
func (s *Store) VideoByYouTubeID(ctx context.Context, youtubeID string) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE youtube_video_id = ?`, strings.TrimSpace(youtubeID))
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find video: %w", err)
	}
	return video, nil
}

// ListVideos returns videos filtered by status (all when none given), oldest first.
func (s *Store) ListVideos(ctx context.Context, statuses ...VideoStatus) ([]*Video, error) {
	return s.listVideos(ctx, 0, statuses...)
}

// NextVideos returns up to limit videos in the given statuses, least recently updated first.
func (s *Store) NextVideos(ctx context.Context, limit int, statuses ...VideoStatus) ([]*Video, error) {
	if limit <= 0 {
		limit = 1
	}
	return s.listVideos(ctx, limit, statuses...)
}

func (s *Store) listVideos(ctx context.Context, limit int, statuses ...VideoStatus) ([]*Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY updated_at, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

// ClaimVideo marks a video as processing under the given run token.
func (s *Store) ClaimVideo(ctx context.Context, id int64, runToken string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE videos SET status = ?, run_token = ?, error_message = NULL, progress_stage = 'claimed', updated_at = ?
         WHERE id = ?`,
		VideoProcessing, nullableString(runToken), s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("claim video: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("claim video %d: not found", id)
	}
	return nil
}

// SetVideoStage records the pipeline stage a running video has reached.
func (s *Store) SetVideoStage(ctx context.Context, id int64, stage string) error {
	if _, err := s.execWithRetry(ctx,
		`UPDATE videos SET progress_stage = ?, updated_at = ? WHERE id = ?`,
		nullableString(stage), s.timestamp(), id,
	); err != nil {
		return fmt.Errorf("set video stage: %w", err)
	}
	return nil
}

// FinishVideo records the outcome of a run and releases its run token.
func (s *Store) FinishVideo(ctx context.Context, id int64, status VideoStatus, message string) error {
	now := s.timestamp()
	if _, err := s.execWithRetry(ctx,
		`UPDATE videos
         SET status = ?, error_message = ?, run_token = NULL, progress_stage = ?, last_processed_at = ?, updated_at = ?
         WHERE id = ?`,
		status, nullableString(message), string(status), now, now, id,
	); err != nil {
		return fmt.Errorf("finish video: %w", err)
	}
	return nil
}

// ResetStuckVideos returns videos left in processing longer than timeout to pending.
func (s *Store) ResetStuckVideos(ctx context.Context, timeout time.Duration) (int64, error) {
	cutoff := formatTime(s.now().Add(-timeout))
	res, err := s.execWithRetry(ctx,
		`UPDATE videos
         SET status = ?, run_token = NULL, progress_stage = 'reset from stuck processing',
             error_message = 'Reset from stuck processing', updated_at = ?
         WHERE status = ? AND updated_at < ?`,
		VideoPending, s.timestamp(), VideoProcessing, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck videos: %w", err)
	}
	return res.RowsAffected()
}

// RetryVideos moves failed, partial and no-subtitle videos back to pending.
// With no ids, every retryable video is reset.
func (s *Store) RetryVideos(ctx context.Context, ids ...int64) (int64, error) {
	query := `UPDATE videos SET status = ?, error_message = NULL, progress_stage = 'retry requested', updated_at = ?
        WHERE status IN (?, ?, ?)`
	args := []any{VideoPending, s.timestamp(), VideoFailed, VideoPartial, VideoNoSubtitles}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry videos: %w", err)
	}
	return res.RowsAffected()
}

// VideoStats returns a count of videos grouped by status.
func (s *Store) VideoStats(ctx context.Context) (map[VideoStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM videos GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("video stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[VideoStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[VideoStatus(status)] = count
	}
	return stats, rows.Err()
}
