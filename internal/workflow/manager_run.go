package workflow

import (
	"context"
	"errors"
	"time"

	"phraseindex/internal/logging"
	"phraseindex/internal/pipeline"
	"phraseindex/internal/queue"
)

// TickReport summarises one polling pass.
type TickReport struct {
	Reclaimed int64
	Continued int
	Processed int
	Skipped   int
	Failed    int
	Purged    int64
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.loop(runCtx)
	m.logger.Info("workflow started", logging.Duration("poll_interval", m.pollInterval))
	return nil
}

// Stop terminates background processing and waits for the current tick.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()
	for {
		if _, err := m.Tick(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			m.logger.Error("workflow tick failed", logging.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.pollInterval):
		}
	}
}

// Tick performs one polling pass. Per-video failures are recorded on the video
// and logged; only store errors abort the pass.
func (m *Manager) Tick(ctx context.Context) (TickReport, error) {
	var report TickReport
	logger := m.logger

	reclaimed, err := m.store.ResetStuckVideos(ctx, m.stuckTimeout)
	if err != nil {
		return report, err
	}
	report.Reclaimed = reclaimed
	if reclaimed > 0 {
		logger.Warn("reclaimed stuck videos", logging.Int64("count", reclaimed))
	}

	partial, err := m.store.ListVideos(ctx, queue.VideoPartial)
	if err != nil {
		return report, err
	}
	for _, video := range partial {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result, err := m.processor.Continue(ctx, video.ID)
		m.record(&report, result, err)
		if result.Status != pipeline.StatusSkipped {
			report.Continued++
		}
	}

	pending, err := m.store.NextVideos(ctx, m.videosPerTick, queue.VideoPending)
	if err != nil {
		return report, err
	}
	for _, video := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result, err := m.processor.Run(ctx, pipeline.VideoRef{ID: video.ID})
		m.record(&report, result, err)
		if result.Status != pipeline.StatusSkipped {
			report.Processed++
		}
	}

	now := m.now()
	if m.purger != nil && (m.lastPurge.IsZero() || now.Sub(m.lastPurge) >= m.purgeInterval) {
		purged, err := m.purger.Purge(ctx)
		if err != nil {
			logger.Warn("chunk purge failed", logging.Error(err))
		} else {
			report.Purged = purged
		}
		m.mu.Lock()
		m.lastPurge = now
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.ticks++
	m.lastTick = now
	m.mu.Unlock()
	if report.Continued+report.Processed > 0 {
		logger.Info("workflow tick finished",
			logging.Int("continued", report.Continued),
			logging.Int("processed", report.Processed),
			logging.Int("skipped", report.Skipped),
			logging.Int("failed", report.Failed),
		)
	}
	return report, nil
}

func (m *Manager) record(report *TickReport, result pipeline.Result, err error) {
	switch {
	case result.Status == pipeline.StatusSkipped:
		report.Skipped++
	case err != nil || result.Status == pipeline.StatusFailed:
		report.Failed++
	}
	if err != nil {
		m.setLastError(err)
		m.logger.Warn("video run failed",
			logging.Int64(logging.FieldVideoID, result.VideoID),
			logging.Error(err),
		)
	}
	m.setLastResult(result)
}
