package queue

import (
	"context"
	"fmt"
	"strings"
)

// InsertPhrases inserts a batch of phrases in one statement, ignoring rows that
// already exist. It returns the number of rows actually added.
func (s *Store) InsertPhrases(ctx context.Context, phrases []Phrase) (int, error) {
	if len(phrases) == 0 {
		return 0, nil
	}
	now := s.timestamp()
	values := make([]string, 0, len(phrases))
	args := make([]any, 0, len(phrases)*5)
	for _, p := range phrases {
		values = append(values, "(?, ?, ?, ?, ?)")
		args = append(args, p.VideoID, p.Text, p.Start, p.End, now)
	}
	query := `INSERT OR IGNORE INTO video_phrases (video_id, phrase_text, start_time_seconds, end_time_seconds, created_at)
        VALUES ` + strings.Join(values, ", ")
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert phrase batch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert phrase batch: %w", err)
	}
	return int(affected), nil
}

// InsertPhrase inserts a single phrase, ignoring an existing identical row.
// The boolean reports whether a row was added.
func (s *Store) InsertPhrase(ctx context.Context, p Phrase) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO video_phrases (video_id, phrase_text, start_time_seconds, end_time_seconds, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		p.VideoID, p.Text, p.Start, p.End, s.timestamp(),
	)
	if err != nil {
		return false, fmt.Errorf("insert phrase: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert phrase: %w", err)
	}
	return affected > 0, nil
}

// PhrasesForVideo returns every persisted phrase of a video in start order.
func (s *Store) PhrasesForVideo(ctx context.Context, videoID int64) ([]Phrase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id, phrase_text, start_time_seconds, end_time_seconds
         FROM video_phrases WHERE video_id = ? ORDER BY start_time_seconds, id`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("load phrases: %w", err)
	}
	defer rows.Close()

	var phrases []Phrase
	for rows.Next() {
		var p Phrase
		if err := rows.Scan(&p.VideoID, &p.Text, &p.Start, &p.End); err != nil {
			return nil, fmt.Errorf("scan phrase: %w", err)
		}
		phrases = append(phrases, p)
	}
	return phrases, rows.Err()
}

// CountPhrases returns the number of persisted phrases for a video.
func (s *Store) CountPhrases(ctx context.Context, videoID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM video_phrases WHERE video_id = ?`, videoID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count phrases: %w", err)
	}
	return count, nil
}

// ClearPhrases deletes every phrase of a video so it can be reprocessed from scratch.
func (s *Store) ClearPhrases(ctx context.Context, videoID int64) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM video_phrases WHERE video_id = ?`, videoID)
	if err != nil {
		return 0, fmt.Errorf("clear phrases: %w", err)
	}
	return res.RowsAffected()
}
