package workflow

import (
	"context"
	"fmt"
	"strings"

	"trackline/internal/logging"
)

// runPreflightChecks verifies the encoder binary and storage directories
// before any worker starts. Returns an error describing every failure.
func (m *Manager) runPreflightChecks(ctx context.Context) error {
	logger := logging.WithContext(ctx, m.logger)
	var failures []string
	for _, health := range m.stageHealth() {
		if health.Ready {
			logger.Debug("preflight check passed",
				logging.String("check", health.Name),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logger.Error("preflight check failed",
			logging.String("check", health.Name),
			logging.String("detail", health.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported issue and restart the worker"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", health.Name, health.Detail))
	}
	if len(failures) > 0 {
		return fmt.Errorf("preflight checks failed: %s", strings.Join(failures, "; "))
	}
	return nil
}
