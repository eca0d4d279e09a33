package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"trackline/internal/jobs"
	"trackline/internal/logging"
	"trackline/internal/services"
)

// Start launches the worker goroutines.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	m.mu.Unlock()

	if m.preflight {
		if err := m.runPreflightChecks(ctx); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers)
	for i := 1; i <= m.workers; i++ {
		go m.runWorker(runCtx, m.workerID(i))
	}
	m.logger.Info("workflow started", logging.Int("workers", m.workers))
	return nil
}

// Stop cancels the workers and waits for them to exit. A track interrupted
// mid-stage stays in processing and is reclaimed by the monitor.
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

func (m *Manager) runWorker(ctx context.Context, workerID string) {
	defer m.wg.Done()
	ctx = services.WithWorker(ctx, workerID)
	logger := logging.WithContext(ctx, m.logger)

	for {
		if ctx.Err() != nil {
			return
		}
		m.heartbeat.Beat(ctx, workerID)

		handled, err := m.ProcessNext(ctx)
		if err == nil || handled {
			continue
		}
		if ctx.Err() != nil || errors.Is(err, jobs.ErrClosed) {
			return
		}
		m.handleDequeueError(ctx, logger, err)
	}
}

func (m *Manager) handleDequeueError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to fetch next job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check queue backend availability"),
	)
	retry := m.retryInterval
	if retry <= 0 {
		retry = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(retry):
	}
}

// ProcessNext waits for one job and processes it. handled reports whether a
// job was taken off the queue; err is a queue error when handled is false
// and the processing outcome otherwise.
func (m *Manager) ProcessNext(ctx context.Context) (handled bool, err error) {
	trackID, ok, err := m.queue.Dequeue(ctx, m.dequeueWait)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return true, m.ProcessTrack(ctx, trackID)
}

// ProcessTrack claims trackID and runs it through the pipeline with a
// heartbeat. Tracks that are missing or no longer pending are skipped: a
// duplicate delivery must never re-run a finished or in-flight track.
func (m *Manager) ProcessTrack(ctx context.Context, trackID int64) error {
	ctx = services.WithTrackID(ctx, trackID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, m.logger)

	claimed, err := m.store.Claim(ctx, trackID)
	if err != nil {
		m.setLastError(err)
		return fmt.Errorf("claim track %d: %w", trackID, err)
	}
	if !claimed {
		logger.Debug("track not pending; job skipped")
		return nil
	}
	track, err := m.store.GetByID(ctx, trackID)
	if err != nil {
		m.setLastError(err)
		return fmt.Errorf("load track %d: %w", trackID, err)
	}
	if track == nil {
		logger.Warn("claimed track vanished", logging.String(logging.FieldEventType, "track_missing"))
		return nil
	}
	logger.Info("processing track",
		logging.String(logging.FieldEventType, "track_start"),
		logging.String("title", track.DisplayTitle()),
		logging.Int("attempt", track.Attempts),
	)

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, trackID)
	procErr := m.pipeline.Process(ctx, track)
	hbCancel()
	hbWG.Wait()

	m.recordOutcome(track, procErr)
	return procErr
}
