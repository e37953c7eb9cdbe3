package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"phraseindex/internal/config"
	"phraseindex/internal/logging"
	"phraseindex/internal/queue"
	"phraseindex/internal/workflow"
)

// Workflow is the polling manager driven by the daemon.
type Workflow interface {
	Start(ctx context.Context) error
	Stop()
	Status(ctx context.Context) workflow.StatusSummary
}

// APIServer is the admin HTTP surface.
type APIServer interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Addr() string
}

// Intake consumes discovery messages until its context ends.
type Intake interface {
	Run(ctx context.Context) error
	Close() error
}

// Option configures optional daemon components.
type Option func(*Daemon)

// WithAPIServer serves the admin API alongside the workflow.
func WithAPIServer(server APIServer) Option {
	return func(d *Daemon) {
		d.api = server
	}
}

// WithIntake consumes discovery messages alongside the workflow.
func WithIntake(consumer Intake) Option {
	return func(d *Daemon) {
		d.intake = consumer
	}
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow Workflow
	api      APIServer
	intake   Intake

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	APIAddr      string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf Workflow, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}
	lockPath := cfg.DaemonLockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock and launches every configured component.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another phraseindex daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.api != nil {
		if err := d.api.Start(runCtx); err != nil {
			d.workflow.Stop()
			cancel()
			_ = d.lock.Unlock()
			return fmt.Errorf("start api: %w", err)
		}
	}
	if d.intake != nil {
		d.wg.Add(1)
		go d.runIntake(runCtx)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("phraseindex daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) runIntake(ctx context.Context) {
	defer d.wg.Done()
	if err := d.intake.Run(ctx); err != nil && ctx.Err() == nil {
		d.logger.Error("intake consumer stopped", logging.Error(err))
	}
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := d.api.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("api shutdown failed", logging.Error(err))
		}
		cancel()
	}
	d.workflow.Stop()
	if d.intake != nil {
		if err := d.intake.Close(); err != nil {
			d.logger.Warn("intake close failed", logging.Error(err))
		}
		d.wg.Wait()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("phraseindex daemon stopped")
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if d.api != nil {
		status.APIAddr = d.api.Addr()
	}
	return status
}
