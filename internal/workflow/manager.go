package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"trackline/internal/config"
	"trackline/internal/jobs"
	"trackline/internal/logging"
	"trackline/internal/tracks"
)

// Manager runs a pool of workers that consume track IDs from the queue and
// drive each claimed track through the Pipeline.
type Manager struct {
	cfg      *config.Config
	store    *tracks.Store
	queue    jobs.Queue
	pipeline *Pipeline
	logger   *slog.Logger

	workers       int
	dequeueWait   time.Duration
	retryInterval time.Duration
	presenceTTL   time.Duration
	heartbeat     *HeartbeatMonitor
	preflight     bool
	idPrefix      string

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastTrack *tracks.Track
	processed int
	failed    int
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithWorkers overrides the configured worker count.
func WithWorkers(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithoutPreflight skips the dependency checks Start normally runs.
func WithoutPreflight() ManagerOption {
	return func(m *Manager) {
		m.preflight = false
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *tracks.Store, queue jobs.Queue, pipeline *Pipeline, logger *slog.Logger, opts ...ManagerOption) *Manager {
	logger = logging.NewComponentLogger(logger, "workflow")
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	m := &Manager{
		cfg:           cfg,
		store:         store,
		queue:         queue,
		pipeline:      pipeline,
		logger:        logger,
		workers:       cfg.Workflow.Workers,
		dequeueWait:   jobs.DequeueWait(cfg),
		retryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		presenceTTL:   time.Duration(cfg.Monitor.WorkerPresenceTTLSeconds) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			queue,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Monitor.WorkerPresenceTTLSeconds)*time.Second,
		),
		preflight: true,
		idPrefix:  fmt.Sprintf("%s-%d", host, os.Getpid()),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.workers <= 0 {
		m.workers = 1
	}
	return m
}

func (m *Manager) workerID(n int) string {
	return fmt.Sprintf("%s-w%d", m.idPrefix, n)
}
