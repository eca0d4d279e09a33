package monitor

import (
	"context"
	"errors"
	"time"

	"trackline/internal/logging"
)

// Run sweeps immediately and then every interval until ctx is done. Each
// report is passed to onReport when it is non-nil. Sweep errors are logged
// and do not stop the loop.
func (m *Monitor) Run(ctx context.Context, interval time.Duration, opts Options, onReport func(*Report)) error {
	if interval <= 0 {
		return errors.New("monitor interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("monitor started", logging.Duration("interval", interval))
	for {
		if ctx.Err() != nil {
			m.logger.Info("monitor stopped")
			return nil
		}
		report, err := m.Sweep(ctx, opts)
		if err != nil && ctx.Err() == nil {
			m.logger.Warn("sweep completed with errors", logging.Error(err))
		}
		if onReport != nil && report != nil {
			onReport(report)
		}
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}
