package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"trackline/internal/jobs"
	"trackline/internal/logging"
	"trackline/internal/services"
	"trackline/internal/tracks"
)

// HeartbeatMonitor keeps a processing track's updated_at fresh and renews
// worker presence in the queue so the monitor can tell live work from stuck
// work.
type HeartbeatMonitor struct {
	store       *tracks.Store
	queue       jobs.Queue
	logger      *slog.Logger
	interval    time.Duration
	presenceTTL time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *tracks.Store, queue jobs.Queue, logger *slog.Logger, interval, presenceTTL time.Duration) *HeartbeatMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if presenceTTL <= 0 {
		presenceTTL = 3 * interval
	}
	return &HeartbeatMonitor{
		store:       store,
		queue:       queue,
		logger:      logger,
		interval:    interval,
		presenceTTL: presenceTTL,
	}
}

// Beat renews presence for the worker named in ctx.
func (h *HeartbeatMonitor) Beat(ctx context.Context, workerID string) {
	if h.queue == nil {
		return
	}
	if err := h.queue.Beat(ctx, workerID, h.presenceTTL); err != nil && ctx.Err() == nil {
		h.logger.Debug("worker presence beat failed", logging.String(logging.FieldWorker, workerID), logging.Error(err))
	}
}

// StartLoop updates the track heartbeat until ctx is cancelled.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, trackID int64) {
	defer wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger.With(logging.String("component", "workflow-heartbeat")))
	worker, _ := services.WorkerFromContext(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, trackID); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("heartbeat update cancelled")
				} else {
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
			if worker != "" {
				h.Beat(ctx, worker)
			}
		}
	}
}
