package scheduler_test

import (
	"context"
	"testing"
	"time"

	"phraseindex/internal/budget"
	"phraseindex/internal/config"
	"phraseindex/internal/logging"
	"phraseindex/internal/queue"
	"phraseindex/internal/runlock"
	"phraseindex/internal/scheduler"
	"phraseindex/internal/testsupport"
	"phraseindex/internal/writer"
)

func newScheduler(t *testing.T, cfg *config.Config, store *queue.Store, opts scheduler.Options, options ...scheduler.Option) *scheduler.Scheduler {
	t.Helper()
	w := writer.New(store, writer.Options{BatchSize: cfg.Writer.BatchSize, MaxConsecutiveFailures: 2}, logging.NewNop())
	return scheduler.New(store, w, opts, logging.NewNop(), options...)
}

func TestSplitPreservesOrder(t *testing.T) {
	chunks := scheduler.Split(testsupport.Phrases(1, 7), 3)
	if len(chunks) != 3 || len(chunks[0]) != 3 || len(chunks[2]) != 1 {
		t.Fatalf("unexpected chunk shapes: %d", len(chunks))
	}
	if chunks[1][0].Start != 3 || chunks[2][0].Start != 6 {
		t.Fatalf("unexpected chunk order: %#v", chunks)
	}
	if got := scheduler.Split(nil, 3); len(got) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(got))
	}
}

func TestDrainToExhaustion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	video := testsupport.NewVideo(t, store, "vid-drain")

	sched := newScheduler(t, cfg, store, scheduler.Options{ChunkSize: 10, ChunksPerInvocation: 2})
	phrases := testsupport.Phrases(video.ID, 55)
	chunks, err := sched.Enqueue(ctx, video.ID, phrases)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if len(chunks) != 6 {
		t.Fatalf("expected 6 chunks, got %d", len(chunks))
	}

	invocations := 0
	for {
		result, err := sched.Drain(ctx, video.ID, nil)
		if err != nil {
			t.Fatalf("Drain failed: %v", err)
		}
		invocations++
		if result.Pending == 0 {
			break
		}
		if invocations > 10 {
			t.Fatal("drain did not converge")
		}
	}
	if invocations != 3 {
		t.Fatalf("expected 3 invocations, got %d", invocations)
	}

	count, err := store.CountPhrases(ctx, video.ID)
	if err != nil {
		t.Fatalf("CountPhrases failed: %v", err)
	}
	if count != 55 {
		t.Fatalf("expected 55 phrases, got %d", count)
	}
	status, err := sched.Status(ctx, video.ID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Pending != 0 || status.Completed != 6 || status.HasPending() {
		t.Fatalf("unexpected status: %#v", status)
	}
}

func TestDrainCheckpointsOnBudget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Writer.BatchSize = 10
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	video := testsupport.NewVideo(t, store, "vid-budget")

	sched := newScheduler(t, cfg, store, scheduler.Options{ChunkSize: 25, ChunksPerInvocation: 3})
	if _, err := sched.Enqueue(ctx, video.ID, testsupport.Phrases(video.ID, 50)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := budget.New(time.Second, budget.WithClock(func() time.Time { return now }))
	now = now.Add(time.Hour)

	result, err := sched.Drain(ctx, video.ID, tracker)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if !result.BudgetExceeded || result.Inserted != 10 || result.Pending != 2 {
		t.Fatalf("unexpected drain result: %#v", result)
	}
	pending, err := store.PendingChunks(ctx, video.ID, 5)
	if err != nil {
		t.Fatalf("PendingChunks failed: %v", err)
	}
	if pending[0].ChunkIndex != 0 || len(pending[0].Payload) != 15 || pending[0].PhraseCount != 15 {
		t.Fatalf("expected first chunk rewritten to its remainder, got %#v", pending[0])
	}

	result, err = sched.Drain(ctx, video.ID, budget.Unlimited())
	if err != nil {
		t.Fatalf("second Drain failed: %v", err)
	}
	if result.Pending != 0 || result.Inserted != 40 {
		t.Fatalf("unexpected resumed drain: %#v", result)
	}
	count, err := store.CountPhrases(ctx, video.ID)
	if err != nil {
		t.Fatalf("CountPhrases failed: %v", err)
	}
	if count != 50 {
		t.Fatalf("expected exactly 50 phrases, got %d", count)
	}
}

func TestDrainFailsCorruptChunk(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	video := testsupport.NewVideo(t, store, "vid-corrupt")

	sched := newScheduler(t, cfg, store, scheduler.Options{ChunkSize: 5})
	if _, err := sched.Enqueue(ctx, video.ID, testsupport.Phrases(video.ID, 10)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	testsupport.CorruptChunk(t, store, video.ID, 0)

	result, err := sched.Drain(ctx, video.ID, nil)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if result.Failed != 1 || result.Completed != 1 || result.Pending != 0 {
		t.Fatalf("unexpected result: %#v", result)
	}

	reset, err := sched.Reset(ctx, video.ID)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 reset chunk, got %d", reset)
	}
	cleared, err := sched.Clear(ctx, video.ID)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cleared != 2 {
		t.Fatalf("expected 2 cleared chunks, got %d", cleared)
	}
}

func TestPurgeUsesRetention(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	video := testsupport.NewVideo(t, store, "vid-purge")

	now := time.Now()
	sched := newScheduler(t, cfg, store, scheduler.Options{ChunkSize: 5, Retention: time.Hour},
		scheduler.WithClock(func() time.Time { return now }))
	if _, err := sched.Enqueue(ctx, video.ID, testsupport.Phrases(video.ID, 5)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := sched.Drain(ctx, video.ID, nil); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	removed, err := sched.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected fresh chunk to be retained, removed %d", removed)
	}

	now = now.Add(2 * time.Hour)
	removed, err = sched.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 purged chunk, got %d", removed)
	}
}

func TestDrainAllSkipsLockedVideos(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	locker, err := runlock.NewFileLocker(cfg.Paths.LockDir)
	if err != nil {
		t.Fatalf("NewFileLocker failed: %v", err)
	}
	sched := newScheduler(t, cfg, store, scheduler.Options{ChunkSize: 5}, scheduler.WithLocker(locker))

	busy := testsupport.NewVideo(t, store, "vid-busy")
	free := testsupport.NewVideo(t, store, "vid-free")
	for _, video := range []*queue.Video{busy, free} {
		if _, err := sched.Enqueue(ctx, video.ID, testsupport.Phrases(video.ID, 5)); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	lease, err := locker.TryAcquire(ctx, busy.ID)
	if err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	defer lease.Release(ctx)

	results, err := sched.DrainAll(ctx)
	if err != nil {
		t.Fatalf("DrainAll failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %#v", results)
	}
	for _, result := range results {
		switch result.VideoID {
		case busy.ID:
			if !result.Skipped {
				t.Fatalf("expected busy video to be skipped, got %#v", result)
			}
		case free.ID:
			if result.Skipped || result.Pending != 0 || result.Inserted != 5 {
				t.Fatalf("unexpected free video result: %#v", result)
			}
		}
	}
}
