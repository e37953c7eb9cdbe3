// Package scheduler splits large phrase sets into persisted chunks and drains
// them a few at a time, so a video whose write does not fit one invocation
// resumes exactly where the previous one stopped.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"phraseindex/internal/budget"
	"phraseindex/internal/logging"
	"phraseindex/internal/queue"
	"phraseindex/internal/runlock"
	"phraseindex/internal/services"
	"phraseindex/internal/writer"
)

// Options tunes chunking and draining.
type Options struct {
	ChunkSize           int
	ChunksPerInvocation int
	// Pause is the minimum spacing between consecutive chunk writes.
	Pause     time.Duration
	Retention time.Duration
	// Budget bounds one drain invocation when the caller supplies no tracker. Zero is unlimited.
	Budget time.Duration
}

// DefaultOptions returns the chunking defaults.
func DefaultOptions() Options {
	return Options{
		ChunkSize:           25,
		ChunksPerInvocation: 3,
		Pause:               250 * time.Millisecond,
		Retention:           time.Hour,
		Budget:              10 * time.Second,
	}
}

// DrainResult reports one drain invocation for a video.
type DrainResult struct {
	VideoID        int64
	Chunks         int
	Completed      int
	Failed         int
	Inserted       int
	BudgetExceeded bool
	Skipped        bool
	// Pending is the number of chunks still waiting after the invocation.
	Pending int
}

// Scheduler owns the chunk table lifecycle.
type Scheduler struct {
	store  *queue.Store
	writer *writer.Writer
	locker runlock.Locker
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithLocker makes DrainAll take the per-video lock around each drain.
func WithLocker(locker runlock.Locker) Option {
	return func(s *Scheduler) {
		s.locker = locker
	}
}

// WithClock replaces the time source used for retention.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Scheduler.
func New(store *queue.Store, w *writer.Writer, opts Options, logger *slog.Logger, options ...Option) *Scheduler {
	defaults := DefaultOptions()
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaults.ChunkSize
	}
	if opts.ChunksPerInvocation <= 0 {
		opts.ChunksPerInvocation = defaults.ChunksPerInvocation
	}
	if opts.Retention <= 0 {
		opts.Retention = defaults.Retention
	}
	s := &Scheduler{
		store:  store,
		writer: w,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "scheduler"),
		now:    time.Now,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Split partitions phrases into chunks of at most size phrases, preserving order.
func Split(phrases []queue.Phrase, size int) [][]queue.Phrase {
	if size <= 0 {
		size = DefaultOptions().ChunkSize
	}
	chunks := make([][]queue.Phrase, 0, (len(phrases)+size-1)/size)
	for start := 0; start < len(phrases); start += size {
		end := min(start+size, len(phrases))
		chunks = append(chunks, phrases[start:end])
	}
	return chunks
}

// Enqueue persists every chunk of phrases as pending before any of them is written.
func (s *Scheduler) Enqueue(ctx context.Context, videoID int64, phrases []queue.Phrase) ([]queue.Chunk, error) {
	if len(phrases) == 0 {
		return nil, nil
	}
	chunks, err := s.store.EnqueueChunks(ctx, videoID, Split(phrases, s.opts.ChunkSize))
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, s.logger).Info("phrases queued",
		logging.Int("phrases", len(phrases)),
		logging.Int("chunks", len(chunks)),
	)
	return chunks, nil
}

func (s *Scheduler) newLimiter() *rate.Limiter {
	if s.opts.Pause <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(s.opts.Pause), 1)
}

// Drain writes up to ChunksPerInvocation pending chunks of one video in
// ascending chunk order. A nil tracker starts a fresh one from Options.Budget.
// The caller must own the video's run lock.
func (s *Scheduler) Drain(ctx context.Context, videoID int64, tracker *budget.Tracker) (DrainResult, error) {
	if tracker == nil {
		tracker = budget.New(s.opts.Budget)
	}
	ctx = services.WithVideoID(ctx, videoID)
	logger := logging.WithContext(ctx, s.logger)
	result := DrainResult{VideoID: videoID}

	chunks, err := s.store.PendingChunks(ctx, videoID, s.opts.ChunksPerInvocation)
	if err != nil {
		return result, err
	}
	limiter := s.newLimiter()

	for i, chunk := range chunks {
		if i > 0 && tracker.Exceeded() {
			result.BudgetExceeded = true
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			return result, err
		}
		chunkLogger := logger.With(logging.Int(logging.FieldChunkIndex, chunk.ChunkIndex))
		result.Chunks++

		if chunk.PayloadErr != nil {
			if err := s.store.FailChunk(ctx, chunk.ID, chunk.PayloadErr.Error()); err != nil {
				return result, err
			}
			result.Failed++
			chunkLogger.Warn("chunk payload unreadable", logging.Error(chunk.PayloadErr))
			continue
		}

		written, err := s.writer.Write(ctx, videoID, chunk.Payload, tracker)
		result.Inserted += written.Inserted
		switch {
		case errors.Is(err, services.ErrWriteExhausted):
			if failErr := s.store.FailChunk(ctx, chunk.ID, err.Error()); failErr != nil {
				return result, failErr
			}
			result.Failed++
			chunkLogger.Warn("chunk failed", logging.Error(err))
			continue
		case err != nil:
			return result, err
		}

		if written.BudgetExceeded {
			if err := s.store.ReplaceChunkPayload(ctx, chunk.ID, written.Remaining); err != nil {
				return result, err
			}
			result.BudgetExceeded = true
			chunkLogger.Info("chunk checkpointed",
				logging.Int("inserted", written.Inserted),
				logging.Int("remaining", len(written.Remaining)),
			)
			break
		}
		if err := s.store.CompleteChunk(ctx, chunk.ID); err != nil {
			return result, err
		}
		result.Completed++
		chunkLogger.Debug("chunk completed", logging.Int("inserted", written.Inserted))
	}

	pending, err := s.store.CountPendingChunks(ctx, videoID)
	if err != nil {
		return result, err
	}
	result.Pending = pending
	logger.Info("drain finished",
		logging.Int("chunks", result.Chunks),
		logging.Int("completed", result.Completed),
		logging.Int("failed", result.Failed),
		logging.Int("inserted", result.Inserted),
		logging.Int("pending", result.Pending),
		logging.Bool("budget_exceeded", result.BudgetExceeded),
	)
	return result, nil
}

// DrainAll drains every video that has pending chunks under one shared budget.
// With a locker configured, videos owned by another run are skipped.
func (s *Scheduler) DrainAll(ctx context.Context) ([]DrainResult, error) {
	ids, err := s.store.VideosWithPendingChunks(ctx)
	if err != nil {
		return nil, err
	}
	tracker := budget.New(s.opts.Budget)
	results := make([]DrainResult, 0, len(ids))
	for i, id := range ids {
		if i > 0 && tracker.Exceeded() {
			break
		}
		result, err := s.drainLocked(ctx, id, tracker)
		if err != nil {
			return results, fmt.Errorf("drain video %d: %w", id, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *Scheduler) drainLocked(ctx context.Context, videoID int64, tracker *budget.Tracker) (DrainResult, error) {
	if s.locker == nil {
		return s.Drain(ctx, videoID, tracker)
	}
	lease, err := s.locker.TryAcquire(ctx, videoID)
	if errors.Is(err, runlock.ErrHeld) {
		return DrainResult{VideoID: videoID, Skipped: true}, nil
	}
	if err != nil {
		return DrainResult{VideoID: videoID}, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release run lock failed", logging.Int64(logging.FieldVideoID, videoID), logging.Error(err))
		}
	}()
	return s.Drain(ctx, videoID, tracker)
}

// Purge deletes completed and failed chunks older than the retention window.
func (s *Scheduler) Purge(ctx context.Context) (int64, error) {
	removed, err := s.store.PurgeChunks(ctx, s.now().Add(-s.opts.Retention))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("expired chunks purged", logging.Int64("removed", removed))
	}
	return removed, nil
}

// Reset moves failed chunks back to pending. A zero videoID resets all videos.
func (s *Scheduler) Reset(ctx context.Context, videoID int64) (int64, error) {
	return s.store.ResetFailedChunks(ctx, videoID)
}

// Clear deletes every chunk of a video.
func (s *Scheduler) Clear(ctx context.Context, videoID int64) (int64, error) {
	return s.store.ClearChunks(ctx, videoID)
}

// Status aggregates chunk counts for a video, or all videos when videoID is zero.
func (s *Scheduler) Status(ctx context.Context, videoID int64) (queue.QueueStatus, error) {
	return s.store.ChunkStatus(ctx, videoID)
}
