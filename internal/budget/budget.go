// Package budget tracks a wall-clock allowance shared by the long-running
// pipeline stages. Exceeding it is a stopping condition, not a failure.
package budget

import (
	"errors"
	"fmt"
	"time"
)

// ErrExceeded reports that the allowance ran out before the work finished.
var ErrExceeded = errors.New("execution budget exceeded")

// Tracker measures elapsed time against a limit. A zero limit never expires.
// A nil *Tracker behaves like an unlimited one.
type Tracker struct {
	start time.Time
	limit time.Duration
	now   func() time.Time
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// New starts a tracker with the given limit.
func New(limit time.Duration, opts ...Option) *Tracker {
	t := &Tracker{limit: limit, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.now()
	return t
}

// Unlimited returns a tracker that never expires.
func Unlimited() *Tracker {
	return New(0)
}

// Limit returns the configured allowance.
func (t *Tracker) Limit() time.Duration {
	if t == nil {
		return 0
	}
	return t.limit
}

// Elapsed returns time spent since the tracker started.
func (t *Tracker) Elapsed() time.Duration {
	if t == nil {
		return 0
	}
	return t.now().Sub(t.start)
}

// Remaining returns the unspent allowance, or -1 for an unlimited tracker.
func (t *Tracker) Remaining() time.Duration {
	if t == nil || t.limit <= 0 {
		return -1
	}
	left := t.limit - t.Elapsed()
	if left < 0 {
		return 0
	}
	return left
}

// Exceeded reports whether the allowance has run out.
func (t *Tracker) Exceeded() bool {
	if t == nil || t.limit <= 0 {
		return false
	}
	return t.Elapsed() >= t.limit
}

// Check returns ErrExceeded (with elapsed detail) once the allowance has run out.
func (t *Tracker) Check() error {
	if !t.Exceeded() {
		return nil
	}
	return fmt.Errorf("%w: %s elapsed of %s", ErrExceeded, t.Elapsed().Round(time.Millisecond), t.limit)
}
