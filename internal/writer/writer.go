// Package writer persists phrases in batches with a per-row fallback and
// stops cleanly when its wall-clock budget runs out.
package writer

import (
	"context"
	"log/slog"
	"slices"

	"phraseindex/internal/budget"
	"phraseindex/internal/logging"
	"phraseindex/internal/queue"
	"phraseindex/internal/services"
)

// PhraseInserter is the storage surface the writer needs. Both methods must
// ignore rows that already exist so retries stay idempotent.
type PhraseInserter interface {
	InsertPhrases(ctx context.Context, phrases []queue.Phrase) (int, error)
	InsertPhrase(ctx context.Context, phrase queue.Phrase) (bool, error)
}

// Options tunes batching.
type Options struct {
	BatchSize int
	// MaxConsecutiveFailures switches the writer to per-row inserts for the
	// rest of the call after this many batch failures in a row.
	MaxConsecutiveFailures int
}

// DefaultOptions returns the batching defaults.
func DefaultOptions() Options {
	return Options{BatchSize: 25, MaxConsecutiveFailures: 2}
}

// Result summarises one Write call.
type Result struct {
	Inserted       int
	Processed      int
	RowFailures    int
	BatchFailures  int
	BudgetExceeded bool
	// Remaining holds the phrases not yet attempted when the call stopped early.
	Remaining []queue.Phrase
}

// Complete reports whether every phrase was attempted.
func (r Result) Complete() bool {
	return len(r.Remaining) == 0
}

// Writer inserts phrases for one video at a time.
type Writer struct {
	store  PhraseInserter
	opts   Options
	logger *slog.Logger
}

// New constructs a Writer.
func New(store PhraseInserter, opts Options, logger *slog.Logger) *Writer {
	defaults := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = defaults.MaxConsecutiveFailures
	}
	return &Writer{
		store:  store,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "writer"),
	}
}

// Write inserts phrases for videoID in order. The budget is consulted before
// every batch or row once at least one row has been handled, so each call
// makes progress. Row
// failures are counted and logged; only a call in which every attempted row
// failed returns services.ErrWriteExhausted.
func (w *Writer) Write(ctx context.Context, videoID int64, phrases []queue.Phrase, tracker *budget.Tracker) (Result, error) {
	logger := logging.WithContext(ctx, w.logger)
	rows := make([]queue.Phrase, len(phrases))
	for i, phrase := range phrases {
		phrase.VideoID = videoID
		rows[i] = phrase
	}

	var (
		result      Result
		succeeded   int
		consecutive int
		perRow      bool
		rowsUntil   int
		pos         int
	)
	for pos < len(rows) {
		if err := ctx.Err(); err != nil {
			result.Remaining = slices.Clone(rows[pos:])
			return result, err
		}
		if result.Processed > 0 {
			if tracker.Exceeded() {
				result.BudgetExceeded = true
				result.Remaining = slices.Clone(rows[pos:])
				logger.Info("write budget exhausted",
					logging.Int("processed", result.Processed),
					logging.Int("remaining", len(result.Remaining)),
					logging.Duration("elapsed", tracker.Elapsed()),
				)
				break
			}
		}

		if perRow || pos < rowsUntil {
			added, err := w.store.InsertPhrase(ctx, rows[pos])
			result.Processed++
			if err != nil {
				result.RowFailures++
				logger.Warn("phrase insert failed",
					logging.Float64("start", rows[pos].Start),
					logging.Error(err),
				)
			} else {
				succeeded++
				if added {
					result.Inserted++
				}
			}
			pos++
			continue
		}

		end := min(pos+w.opts.BatchSize, len(rows))
		added, err := w.store.InsertPhrases(ctx, rows[pos:end])
		if err != nil {
			result.BatchFailures++
			consecutive++
			rowsUntil = end
			if consecutive >= w.opts.MaxConsecutiveFailures && !perRow {
				perRow = true
				logger.Warn("batch inserts keep failing; switching to per-row inserts",
					logging.Int("consecutive_failures", consecutive),
					logging.Error(err),
				)
			} else {
				logger.Warn("batch insert failed; retrying rows individually",
					logging.Int("batch_size", end-pos),
					logging.Error(err),
				)
			}
			continue
		}
		consecutive = 0
		result.Inserted += added
		result.Processed += end - pos
		succeeded += end - pos
		pos = end
	}

	if result.Processed > 0 && succeeded == 0 {
		return result, services.Wrap(services.ErrWriteExhausted, "write", "insert", "every attempted phrase failed", nil)
	}
	logger.Debug("phrases written",
		logging.Int("inserted", result.Inserted),
		logging.Int("processed", result.Processed),
		logging.Int("row_failures", result.RowFailures),
		logging.Int("batch_failures", result.BatchFailures),
	)
	return result, nil
}
