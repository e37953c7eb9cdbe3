package budget_test

import (
	"errors"
	"testing"
	"time"

	"phraseindex/internal/budget"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTrackerExpiresAfterLimit(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	tracker := budget.New(5*time.Second, budget.WithClock(clock.Now))

	if tracker.Exceeded() {
		t.Fatal("fresh tracker should not be exceeded")
	}
	clock.Advance(3 * time.Second)
	if got := tracker.Remaining(); got != 2*time.Second {
		t.Fatalf("unexpected remaining %s", got)
	}
	if err := tracker.Check(); err != nil {
		t.Fatalf("unexpected check error %v", err)
	}
	clock.Advance(2 * time.Second)
	if !tracker.Exceeded() {
		t.Fatal("expected tracker to be exceeded at limit")
	}
	if err := tracker.Check(); !errors.Is(err, budget.ErrExceeded) {
		t.Fatalf("expected ErrExceeded, got %v", err)
	}
	if tracker.Remaining() != 0 {
		t.Fatalf("expected zero remaining, got %s", tracker.Remaining())
	}
}

func TestUnlimitedAndNilTrackersNeverExpire(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	unlimited := budget.New(0, budget.WithClock(clock.Now))
	clock.Advance(24 * time.Hour)
	if unlimited.Exceeded() || unlimited.Check() != nil {
		t.Fatal("unlimited tracker should never expire")
	}
	if unlimited.Remaining() != -1 {
		t.Fatalf("expected -1 remaining for unlimited, got %s", unlimited.Remaining())
	}

	var missing *budget.Tracker
	if missing.Exceeded() || missing.Check() != nil || missing.Elapsed() != 0 {
		t.Fatal("nil tracker should behave as unlimited")
	}
}
