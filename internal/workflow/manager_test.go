package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"phraseindex/internal/budget"
	"phraseindex/internal/captions"
	"phraseindex/internal/config"
	"phraseindex/internal/logging"
	"phraseindex/internal/pipeline"
	"phraseindex/internal/queue"
	"phraseindex/internal/runlock"
	"phraseindex/internal/subtitles"
	"phraseindex/internal/testsupport"
	"phraseindex/internal/workflow"
)

type recordingProcessor struct {
	store *queue.Store

	mu        sync.Mutex
	runs      []int64
	continues []int64
	runErr    error
}

func (p *recordingProcessor) Run(ctx context.Context, ref pipeline.VideoRef) (pipeline.Result, error) {
	p.mu.Lock()
	p.runs = append(p.runs, ref.ID)
	err := p.runErr
	p.mu.Unlock()
	if err != nil {
		_ = p.store.FinishVideo(ctx, ref.ID, queue.VideoFailed, err.Error())
		return pipeline.Result{VideoID: ref.ID, Status: pipeline.StatusFailed}, err
	}
	_ = p.store.FinishVideo(ctx, ref.ID, queue.VideoProcessed, "")
	return pipeline.Result{VideoID: ref.ID, Status: pipeline.StatusCompleted}, nil
}

func (p *recordingProcessor) Continue(ctx context.Context, videoID int64) (pipeline.Result, error) {
	p.mu.Lock()
	p.continues = append(p.continues, videoID)
	p.mu.Unlock()
	_ = p.store.FinishVideo(ctx, videoID, queue.VideoProcessed, "")
	return pipeline.Result{VideoID: videoID, Status: pipeline.StatusCompleted}, nil
}

type countingPurger struct {
	calls int
}

func (p *countingPurger) Purge(context.Context) (int64, error) {
	p.calls++
	return 0, nil
}

func TestTickRunsPendingAndContinuesPartial(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.VideosPerTick = 2
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewVideo(t, store, "aaaaaaaaaaa")
	second := testsupport.NewVideo(t, store, "bbbbbbbbbbb")
	testsupport.NewVideo(t, store, "ccccccccccc")
	partial := testsupport.NewVideo(t, store, "ddddddddddd")
	if err := store.FinishVideo(ctx, partial.ID, queue.VideoPartial, "2 chunks pending"); err != nil {
		t.Fatalf("FinishVideo: %v", err)
	}

	proc := &recordingProcessor{store: store}
	mgr := workflow.NewManager(cfg, store, proc, &countingPurger{}, logging.NewNop())
	report, err := mgr.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if report.Continued != 1 || report.Processed != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(proc.continues) != 1 || proc.continues[0] != partial.ID {
		t.Fatalf("expected continuation of %d, got %v", partial.ID, proc.continues)
	}
	if len(proc.runs) != 2 || proc.runs[0] != first.ID || proc.runs[1] != second.ID {
		t.Fatalf("expected oldest pending videos first, got %v", proc.runs)
	}

	report, err = mgr.Tick(ctx)
	if err != nil {
		t.Fatalf("second Tick failed: %v", err)
	}
	if report.Processed != 1 || report.Continued != 0 {
		t.Fatalf("unexpected second report: %+v", report)
	}
}

func TestTickRecordsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewVideo(t, store, "aaaaaaaaaaa")

	proc := &recordingProcessor{store: store, runErr: errors.New("caption source unavailable")}
	mgr := workflow.NewManager(cfg, store, proc, nil, logging.NewNop())
	report, err := mgr.Tick(context.Background())
	if err != nil {
		t.Fatalf("per-video failures must not abort the tick: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected one failure, got %+v", report)
	}
	status := mgr.Status(context.Background())
	if status.LastError == "" || status.LastResult == nil || status.LastResult.Status != pipeline.StatusFailed {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.VideoStats[queue.VideoFailed] != 1 {
		t.Fatalf("expected one failed video, got %v", status.VideoStats)
	}
}

func TestTickReclaimsStuckVideos(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.StuckTimeoutMinutes = 0
	cfg.Workflow.VideosPerTick = 0
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	video := testsupport.NewVideo(t, store, "aaaaaaaaaaa")
	if err := store.ClaimVideo(ctx, video.ID, "abandoned"); err != nil {
		t.Fatalf("ClaimVideo: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	proc := &recordingProcessor{store: store}
	mgr := workflow.NewManager(cfg, store, proc, nil, logging.NewNop())
	report, err := mgr.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if report.Reclaimed != 1 {
		t.Fatalf("expected one reclaimed video, got %+v", report)
	}
	// The reclaimed video is picked up in the same pass.
	if len(proc.runs) != 1 || proc.runs[0] != video.ID {
		t.Fatalf("expected reclaimed video to run, got %v", proc.runs)
	}
}

func TestTickPurgesOnInterval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.PurgeInterval = 60
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	purger := &countingPurger{}
	mgr := workflow.NewManager(cfg, store, &recordingProcessor{store: store}, purger, logging.NewNop(),
		workflow.WithClock(func() time.Time { return now }),
	)

	for _, step := range []time.Duration{0, 30 * time.Second, 31 * time.Second} {
		now = now.Add(step)
		if _, err := mgr.Tick(ctx); err != nil {
			t.Fatalf("Tick failed: %v", err)
		}
	}
	if purger.calls != 2 {
		t.Fatalf("expected 2 purges, got %d", purger.calls)
	}
}

func TestManagerStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	video := testsupport.NewVideo(t, store, "aaaaaaaaaaa")

	proc := &recordingProcessor{store: store}
	mgr := workflow.NewManager(cfg, store, proc, nil, logging.NewNop(), workflow.WithPollInterval(10*time.Millisecond))
	ctx := context.Background()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := mgr.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	deadline := time.After(5 * time.Second)
	for {
		got, err := store.GetVideo(ctx, video.ID)
		if err != nil {
			t.Fatalf("GetVideo: %v", err)
		}
		if got.Status == queue.VideoProcessed {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the manager to process the video")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mgr.Stop()
	status := mgr.Status(ctx)
	if status.Running || status.Ticks == 0 {
		t.Fatalf("unexpected status after stop: %+v", status)
	}
	mgr.Stop()
}

type fixedAcquirer struct {
	fragments []subtitles.Fragment
}

func (a fixedAcquirer) Acquire(context.Context, string, *budget.Tracker) (captions.Result, error) {
	return captions.Result{Fragments: a.fragments, Strategy: captions.StrategyTimedText}, nil
}

func TestTickDrivesPipelineToCompletion(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithQueue(3, 2, 1))
	cfg.Queue.DrainBudgetSeconds = 0
	cfg.Writer.BudgetSeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	fragments := make([]subtitles.Fragment, 6)
	for i := range fragments {
		fragments[i] = subtitles.Fragment{Start: float64(i * 10), End: float64(i*10 + 1), Text: fmt.Sprintf("line %d of the talk", i)}
	}
	pipe := newPipeline(t, cfg, store, fixedAcquirer{fragments: fragments})
	video := testsupport.NewVideo(t, store, "aaaaaaaaaaa")

	mgr := workflow.NewManager(cfg, store, pipe, pipe.Scheduler(), logging.NewNop())
	for range 5 {
		if _, err := mgr.Tick(ctx); err != nil {
			t.Fatalf("Tick failed: %v", err)
		}
	}
	got, err := store.GetVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if got.Status != queue.VideoProcessed {
		t.Fatalf("expected processed after continuation ticks, got %s", got.Status)
	}
	count, err := store.CountPhrases(ctx, video.ID)
	if err != nil {
		t.Fatalf("CountPhrases: %v", err)
	}
	if count != 6 {
		t.Fatalf("expected 6 phrases, got %d", count)
	}
}

func newPipeline(t *testing.T, cfg *config.Config, store *queue.Store, acquirer pipeline.Acquirer) *pipeline.Pipeline {
	t.Helper()
	locker, err := runlock.NewFileLocker(cfg.Paths.LockDir)
	if err != nil {
		t.Fatalf("NewFileLocker: %v", err)
	}
	return pipeline.New(cfg, store, acquirer, locker, logging.NewNop())
}
