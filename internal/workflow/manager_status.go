package workflow

import (
	"context"
	"time"

	"phraseindex/internal/logging"
	"phraseindex/internal/pipeline"
	"phraseindex/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	LastError  string
	LastResult *pipeline.Result
	LastTick   time.Time
	Ticks      int
	VideoStats map[queue.VideoStatus]int
	Chunks     queue.QueueStatus
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:  m.running,
		LastTick: m.lastTick,
		Ticks:    m.ticks,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastResult != nil {
		copy := *m.lastResult
		summary.LastResult = &copy
	}
	m.mu.RUnlock()

	stats, err := m.store.VideoStats(ctx)
	if err != nil {
		m.logger.Warn("failed to read video stats", logging.Error(err))
	}
	summary.VideoStats = stats
	chunks, err := m.store.ChunkStatus(ctx, 0)
	if err != nil {
		m.logger.Warn("failed to read chunk status", logging.Error(err))
	}
	summary.Chunks = chunks
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastResult(result pipeline.Result) {
	m.mu.Lock()
	m.lastResult = &result
	m.mu.Unlock()
}
