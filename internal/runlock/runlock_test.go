package runlock_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"phraseindex/internal/runlock"
	"phraseindex/internal/testsupport"
)

func TestFileLockerExcludesConcurrentRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	locker, err := runlock.New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer locker.Close()
	ctx := context.Background()

	lease, err := locker.TryAcquire(ctx, 1)
	if err != nil {
		t.Fatalf("TryAcquire returned error: %v", err)
	}
	if lease.Token() == "" {
		t.Fatal("expected lease token")
	}
	if _, err := locker.TryAcquire(ctx, 1); !errors.Is(err, runlock.ErrHeld) {
		t.Fatalf("expected ErrHeld for second acquire, got %v", err)
	}

	other, err := locker.TryAcquire(ctx, 2)
	if err != nil {
		t.Fatalf("expected other video to be free, got %v", err)
	}
	defer other.Release(ctx)

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	again, err := locker.TryAcquire(ctx, 1)
	if err != nil {
		t.Fatalf("expected reacquire after release, got %v", err)
	}
	if again.Token() == lease.Token() {
		t.Fatal("expected fresh token per lease")
	}
	_ = again.Release(ctx)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Lock.Backend = "etcd"
	if _, err := runlock.New(cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("PHRASEINDEX_TEST_REDIS")
	if addr == "" {
		t.Skip("PHRASEINDEX_TEST_REDIS not set")
	}
	locker, err := runlock.NewRedisLocker(runlock.RedisOptions{
		Addr:   addr,
		TTL:    time.Minute,
		Prefix: "phraseindex:test:" + time.Now().Format("150405.000000") + ":",
	})
	if err != nil {
		t.Fatalf("NewRedisLocker returned error: %v", err)
	}
	defer locker.Close()
	ctx := context.Background()

	lease, err := locker.TryAcquire(ctx, 9)
	if err != nil {
		t.Fatalf("TryAcquire returned error: %v", err)
	}
	if _, err := locker.TryAcquire(ctx, 9); !errors.Is(err, runlock.ErrHeld) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	if err := lease.Release(ctx); err == nil {
		t.Fatal("expected second release to report a lost lease")
	}
}
