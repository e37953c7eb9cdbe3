package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"phraseindex/internal/config"
	"phraseindex/internal/logging"
	"phraseindex/internal/pipeline"
	"phraseindex/internal/queue"
)

// Processor runs and resumes single videos.
type Processor interface {
	Run(ctx context.Context, ref pipeline.VideoRef) (pipeline.Result, error)
	Continue(ctx context.Context, videoID int64) (pipeline.Result, error)
}

// Purger removes expired chunks.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Manager polls the video table and hands work to the pipeline.
type Manager struct {
	store         *queue.Store
	processor     Processor
	purger        Purger
	logger        *slog.Logger
	pollInterval  time.Duration
	videosPerTick int
	stuckTimeout  time.Duration
	purgeInterval time.Duration
	now           func() time.Time

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastErr    error
	lastResult *pipeline.Result
	lastTick   time.Time
	lastPurge  time.Time
	ticks      int
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock replaces the time source used for purge scheduling.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithPollInterval overrides the configured poll interval.
func WithPollInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		m.pollInterval = interval
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, processor Processor, purger Purger, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:         store,
		processor:     processor,
		purger:        purger,
		logger:        logging.NewComponentLogger(logger, "workflow"),
		pollInterval:  time.Duration(cfg.Workflow.PollInterval) * time.Second,
		videosPerTick: cfg.Workflow.VideosPerTick,
		stuckTimeout:  cfg.StuckTimeout(),
		purgeInterval: time.Duration(cfg.Workflow.PurgeInterval) * time.Second,
		now:           time.Now,
	}
	if m.videosPerTick <= 0 {
		m.videosPerTick = 1
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
