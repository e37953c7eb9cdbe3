package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"phraseindex/internal/budget"
	"phraseindex/internal/captions"
	"phraseindex/internal/config"
	"phraseindex/internal/dedup"
	"phraseindex/internal/logging"
	"phraseindex/internal/queue"
	"phraseindex/internal/runlock"
	"phraseindex/internal/scheduler"
	"phraseindex/internal/services"
	"phraseindex/internal/subtitles"
	"phraseindex/internal/writer"
)

// Status is the outcome reported to the caller of a run.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusNoSubtitles Status = "no_subtitles"
	StatusPartial     Status = "partial"
	StatusSkipped     Status = "skipped"
	StatusFailed      Status = "failed"
)

// Stage names recorded on the video while a run progresses.
const (
	StageAcquire  = "acquire"
	StageMerge    = "merge"
	StageDedup    = "dedup"
	StageWrite    = "write"
	StageEnqueue  = "enqueue"
	StageDrain    = "drain"
	StageFinalize = "finalize"
)

// VideoRef identifies the video to process. ID wins when both are set; a
// YouTubeID alone registers the video if it is unknown.
type VideoRef struct {
	ID        int64
	YouTubeID string
}

// Result summarises one invocation.
type Result struct {
	VideoID        int64
	Status         Status
	PhrasesIndexed int
	Strategy       string
	Fragments      int
	Merged         int
	Duplicates     int
	ChunksQueued   int
	// ChunksFailed counts the video's failed chunks, not just this invocation's.
	ChunksFailed   int
	Pending        int
	Message        string
}

// Acquirer fetches caption fragments for a video.
type Acquirer interface {
	Acquire(ctx context.Context, youtubeID string, tracker *budget.Tracker) (captions.Result, error)
}

// Options tunes the pipeline.
type Options struct {
	Merge           subtitles.MergeOptions
	Dedup           dedup.Options
	InlineThreshold int
	AcquireBudget   time.Duration
	WriteBudget     time.Duration
	DrainBudget     time.Duration
}

// OptionsFromConfig derives pipeline options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Merge: subtitles.MergeOptions{
			Leeway:       cfg.MergeLeeway(),
			OverlapWords: cfg.Merge.OverlapWords,
		},
		Dedup: dedup.Options{
			Window:    cfg.Dedup.WindowSeconds,
			Threshold: cfg.Dedup.SimilarityThreshold,
		},
		InlineThreshold: cfg.Queue.InlineThreshold,
		AcquireBudget:   cfg.AcquireBudget(),
		WriteBudget:     cfg.WriterBudget(),
		DrainBudget:     cfg.DrainBudget(),
	}
}

// Pipeline wires the stages together for a single store.
type Pipeline struct {
	store     *queue.Store
	acquirer  Acquirer
	writer    *writer.Writer
	scheduler *scheduler.Scheduler
	locker    runlock.Locker
	opts      Options
	logger    *slog.Logger
}

// New constructs a Pipeline with a writer and scheduler built from cfg.
func New(cfg *config.Config, store *queue.Store, acquirer Acquirer, locker runlock.Locker, logger *slog.Logger) *Pipeline {
	w := writer.New(store, writer.Options{
		BatchSize:              cfg.Writer.BatchSize,
		MaxConsecutiveFailures: cfg.Writer.MaxConsecutiveFailures,
	}, logger)
	sched := scheduler.New(store, w, scheduler.Options{
		ChunkSize:           cfg.Queue.ChunkSize,
		ChunksPerInvocation: cfg.Queue.ChunksPerInvocation,
		Pause:               cfg.ChunkPause(),
		Retention:           cfg.Retention(),
		Budget:              cfg.DrainBudget(),
	}, logger, scheduler.WithLocker(locker))
	return &Pipeline{
		store:     store,
		acquirer:  acquirer,
		writer:    w,
		scheduler: sched,
		locker:    locker,
		opts:      OptionsFromConfig(cfg),
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Scheduler exposes the chunk scheduler for queue maintenance surfaces.
func (p *Pipeline) Scheduler() *scheduler.Scheduler {
	return p.scheduler
}

// Run processes a video end to end. A video owned by another run yields
// StatusSkipped. Pending chunks from an earlier run are drained instead of
// acquiring captions again. Missing captions are a result, not an error.
func (p *Pipeline) Run(ctx context.Context, ref VideoRef) (Result, error) {
	video, err := p.resolve(ctx, ref)
	if err != nil {
		return Result{VideoID: ref.ID, Status: StatusFailed, Message: err.Error()}, err
	}
	return p.locked(ctx, video, p.process)
}

// Continue drains pending chunks of a video without acquiring captions.
func (p *Pipeline) Continue(ctx context.Context, videoID int64) (Result, error) {
	video, err := p.resolve(ctx, VideoRef{ID: videoID})
	if err != nil {
		return Result{VideoID: videoID, Status: StatusFailed, Message: err.Error()}, err
	}
	return p.locked(ctx, video, p.continueRun)
}

func (p *Pipeline) resolve(ctx context.Context, ref VideoRef) (*queue.Video, error) {
	if ref.ID != 0 {
		video, err := p.store.GetVideo(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if video == nil {
			return nil, services.Wrap(services.ErrNotFound, "resolve", "", fmt.Sprintf("video %d", ref.ID), nil)
		}
		return video, nil
	}
	youtubeID, err := ParseYouTubeID(ref.YouTubeID)
	if err != nil {
		return nil, err
	}
	video, _, err := p.store.EnsureVideo(ctx, youtubeID, "")
	return video, err
}

type runFunc func(ctx context.Context, video *queue.Video, logger *slog.Logger) (Result, error)

func (p *Pipeline) locked(ctx context.Context, video *queue.Video, fn runFunc) (Result, error) {
	ctx = services.WithVideoID(ctx, video.ID)
	logger := logging.WithContext(ctx, p.logger).With(logging.String(logging.FieldYouTubeID, video.YouTubeID))

	lease, err := p.locker.TryAcquire(ctx, video.ID)
	if errors.Is(err, runlock.ErrHeld) {
		logger.Info("video already processing; skipping")
		return Result{VideoID: video.ID, Status: StatusSkipped, Message: "already processing"}, nil
	}
	if err != nil {
		return Result{VideoID: video.ID, Status: StatusFailed, Message: err.Error()}, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release run lock failed", logging.Error(err))
		}
	}()

	ctx = services.WithRunToken(ctx, lease.Token())
	logger = logger.With(logging.String(logging.FieldRunToken, lease.Token()))
	if err := p.store.ClaimVideo(ctx, video.ID, lease.Token()); err != nil {
		return Result{VideoID: video.ID, Status: StatusFailed, Message: err.Error()}, err
	}

	started := time.Now()
	result, err := fn(ctx, video, logger)
	result.VideoID = video.ID
	logger.Info("run finished",
		logging.String("status", string(result.Status)),
		logging.Int("phrases_indexed", result.PhrasesIndexed),
		logging.Int("pending_chunks", result.Pending),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, err
}

func (p *Pipeline) process(ctx context.Context, video *queue.Video, logger *slog.Logger) (Result, error) {
	pending, err := p.store.CountPendingChunks(ctx, video.ID)
	if err != nil {
		return p.fail(ctx, video, Result{}, err)
	}
	if pending > 0 {
		logger.Info("pending chunks found; continuing queued write", logging.Int("pending_chunks", pending))
		return p.continueRun(ctx, video, logger)
	}

	var result Result
	p.stage(ctx, video.ID, StageAcquire)
	acquired, err := p.acquirer.Acquire(services.WithStage(ctx, StageAcquire), video.YouTubeID, budget.New(p.opts.AcquireBudget))
	if err != nil {
		if errors.Is(err, services.ErrNoCaptions) {
			result.Status = StatusNoSubtitles
			result.Message = err.Error()
			p.finish(ctx, video.ID, queue.VideoNoSubtitles, err.Error(), logger)
			return result, nil
		}
		return p.fail(ctx, video, result, err)
	}
	result.Strategy = acquired.Strategy
	result.Fragments = len(acquired.Fragments)

	// A fresh acquisition rebuilds every phrase, so chunks that failed in an
	// earlier run are superseded by this one.
	if discarded, err := p.store.DiscardFailedChunks(ctx, video.ID); err != nil {
		return p.fail(ctx, video, result, err)
	} else if discarded > 0 {
		logger.Info("failed chunks superseded by new acquisition", logging.Int64("discarded", discarded))
	}

	p.stage(ctx, video.ID, StageMerge)
	merged := subtitles.Merge(subtitles.CleanFragments(acquired.Fragments), p.opts.Merge)
	result.Merged = len(merged)
	candidates := make([]queue.Phrase, 0, len(merged))
	for _, fragment := range merged {
		candidates = append(candidates, queue.Phrase{
			VideoID: video.ID,
			Text:    fragment.Text,
			Start:   fragment.Start,
			End:     fragment.End,
		})
	}

	p.stage(ctx, video.ID, StageDedup)
	persisted, err := p.store.PhrasesForVideo(ctx, video.ID)
	if err != nil {
		return p.fail(ctx, video, result, err)
	}
	kept, stats := dedup.Filter(candidates, persisted, p.opts.Dedup)
	result.Duplicates = stats.Dropped()
	logger.Info("phrases prepared",
		logging.Int("fragments", result.Fragments),
		logging.Int("merged", result.Merged),
		logging.Int("kept", stats.Kept),
		logging.Int("persisted_duplicates", stats.Persisted),
		logging.Int("batch_duplicates", stats.InBatch),
	)

	if len(kept) <= p.opts.InlineThreshold {
		p.stage(ctx, video.ID, StageWrite)
		written, err := p.writer.Write(services.WithStage(ctx, StageWrite), video.ID, kept, budget.New(p.opts.WriteBudget))
		result.PhrasesIndexed += written.Inserted
		if err != nil {
			return p.fail(ctx, video, result, err)
		}
		if written.BudgetExceeded {
			p.stage(ctx, video.ID, StageEnqueue)
			chunks, err := p.scheduler.Enqueue(ctx, video.ID, written.Remaining)
			if err != nil {
				return p.fail(ctx, video, result, err)
			}
			result.ChunksQueued = len(chunks)
		}
		return p.finalize(ctx, video, result, logger)
	}

	p.stage(ctx, video.ID, StageEnqueue)
	chunks, err := p.scheduler.Enqueue(ctx, video.ID, kept)
	if err != nil {
		return p.fail(ctx, video, result, err)
	}
	result.ChunksQueued = len(chunks)
	return p.drain(ctx, video, result, logger)
}

func (p *Pipeline) continueRun(ctx context.Context, video *queue.Video, logger *slog.Logger) (Result, error) {
	return p.drain(ctx, video, Result{}, logger)
}

func (p *Pipeline) drain(ctx context.Context, video *queue.Video, result Result, logger *slog.Logger) (Result, error) {
	p.stage(ctx, video.ID, StageDrain)
	drained, err := p.scheduler.Drain(services.WithStage(ctx, StageDrain), video.ID, budget.New(p.opts.DrainBudget))
	result.PhrasesIndexed += drained.Inserted
	if err != nil {
		return p.fail(ctx, video, result, err)
	}
	return p.finalize(ctx, video, result, logger)
}

func (p *Pipeline) finalize(ctx context.Context, video *queue.Video, result Result, logger *slog.Logger) (Result, error) {
	p.stage(ctx, video.ID, StageFinalize)
	chunks, err := p.store.ChunkStatus(ctx, video.ID)
	if err != nil {
		return p.fail(ctx, video, result, err)
	}
	pending := chunks.Pending
	result.Pending = pending
	// Failures from earlier invocations count too.
	result.ChunksFailed = chunks.Failed

	switch {
	case pending > 0:
		result.Status = StatusPartial
		result.Message = fmt.Sprintf("%d chunks pending", pending)
		p.finish(ctx, video.ID, queue.VideoPartial, result.Message, logger)
	case result.ChunksFailed > 0:
		result.Status = StatusFailed
		result.Message = fmt.Sprintf("%d chunks failed", result.ChunksFailed)
		p.finish(ctx, video.ID, queue.VideoFailed, result.Message, logger)
	default:
		result.Status = StatusCompleted
		p.finish(ctx, video.ID, queue.VideoProcessed, "", logger)
	}
	return result, nil
}

func (p *Pipeline) fail(ctx context.Context, video *queue.Video, result Result, err error) (Result, error) {
	result.Status = StatusFailed
	result.Message = err.Error()
	p.finish(ctx, video.ID, services.VideoStatusFor(err), err.Error(), logging.WithContext(ctx, p.logger))
	return result, err
}

func (p *Pipeline) finish(ctx context.Context, videoID int64, status queue.VideoStatus, message string, logger *slog.Logger) {
	if err := p.store.FinishVideo(context.WithoutCancel(ctx), videoID, status, message); err != nil {
		logger.Error("record video outcome failed", logging.String("status", string(status)), logging.Error(err))
	}
}

func (p *Pipeline) stage(ctx context.Context, videoID int64, stage string) {
	if err := p.store.SetVideoStage(ctx, videoID, stage); err != nil {
		logging.WithContext(ctx, p.logger).Debug("record stage failed", logging.String(logging.FieldStage, stage), logging.Error(err))
	}
}
