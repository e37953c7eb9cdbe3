package runlock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// FileLocker uses one flock file per video under a directory.
type FileLocker struct {
	dir string
}

// NewFileLocker ensures dir exists and returns a locker rooted there.
func NewFileLocker(dir string) (*FileLocker, error) {
	if dir == "" {
		return nil, fmt.Errorf("lock directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	return &FileLocker{dir: dir}, nil
}

// TryAcquire takes the video's file lock or returns ErrHeld.
func (l *FileLocker) TryAcquire(_ context.Context, videoID int64) (Lease, error) {
	path := filepath.Join(l.dir, lockName(videoID)+".lock")
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: video %d", ErrHeld, videoID)
	}
	return &fileLease{lock: lock, token: uuid.NewString()}, nil
}

// Close is a no-op; leases release their own files.
func (l *FileLocker) Close() error {
	return nil
}

type fileLease struct {
	lock  *flock.Flock
	token string
}

func (f *fileLease) Token() string {
	return f.token
}

func (f *fileLease) Release(context.Context) error {
	if err := f.lock.Unlock(); err != nil {
		return fmt.Errorf("release %s: %w", f.lock.Path(), err)
	}
	return nil
}
