package workflow

import (
	"context"

	"trackline/internal/logging"
	"trackline/internal/tracks"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Workers     int
	LiveWorkers int
	QueueDepth  int
	Processed   int
	Failed      int
	LastError   string
	LastTrack   *tracks.Track
	TrackStats  map[tracks.Status]int
	StageHealth []StageHealth
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:   m.running,
		Workers:   m.workers,
		Processed: m.processed,
		Failed:    m.failed,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastTrack != nil {
		copy := *m.lastTrack
		summary.LastTrack = &copy
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read track stats", logging.Error(err))
	}
	summary.TrackStats = stats
	if depth, err := m.queue.Depth(ctx); err == nil {
		summary.QueueDepth = depth
	}
	if live, err := m.queue.Workers(ctx); err == nil {
		summary.LiveWorkers = live
	}
	summary.StageHealth = m.stageHealth()
	return summary
}

func (m *Manager) recordOutcome(track *tracks.Track, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if track != nil {
		copy := *track
		m.lastTrack = &copy
		switch track.Status {
		case tracks.StatusCompleted:
			m.processed++
		case tracks.StatusFailed:
			m.failed++
		}
	}
	if err != nil {
		m.lastErr = err
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
