// Package runlock guarantees a single writer per video. Two backends are
// available: advisory file locks for single-host deployments and Redis keys
// for workers spread over several hosts.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"phraseindex/internal/config"
)

// ErrHeld reports that another run currently owns the video.
var ErrHeld = errors.New("video is already being processed")

// Lease is an acquired per-video lock.
type Lease interface {
	// Token identifies the holder; it is stamped on the video row as its run token.
	Token() string
	Release(ctx context.Context) error
}

// Locker hands out per-video leases without blocking.
type Locker interface {
	// TryAcquire returns ErrHeld when another run owns the video.
	TryAcquire(ctx context.Context, videoID int64) (Lease, error)
	Close() error
}

// New builds the locker selected by cfg.Lock.Backend.
func New(cfg *config.Config) (Locker, error) {
	switch cfg.Lock.Backend {
	case "", "file":
		return NewFileLocker(cfg.Paths.LockDir)
	case "redis":
		return NewRedisLocker(RedisOptions{
			Addr: cfg.Lock.RedisAddr,
			DB:   cfg.Lock.RedisDB,
			TTL:  time.Duration(cfg.Lock.TTLSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend)
	}
}

func lockName(videoID int64) string {
	return fmt.Sprintf("video-%d", videoID)
}
