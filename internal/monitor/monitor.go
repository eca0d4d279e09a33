package monitor

import (
	"log/slog"
	"time"

	"trackline/internal/config"
	"trackline/internal/events"
	"trackline/internal/jobs"
	"trackline/internal/logging"
	"trackline/internal/notifications"
	"trackline/internal/storage"
	"trackline/internal/tracks"
)

// Options selects which checks a sweep runs.
type Options struct {
	Stuck   bool
	Failed  bool
	Missing bool
	Orphans bool
	Backlog bool
	// DryRun reports issues without changing records or files.
	DryRun bool
}

// AllChecks enables every check.
func AllChecks() Options {
	return Options{Stuck: true, Failed: true, Missing: true, Orphans: true, Backlog: true}
}

// OptionsFromConfig returns the checks enabled in the [monitor] section.
func OptionsFromConfig(cfg *config.Config) Options {
	m := cfg.Monitor
	return Options{
		Stuck:   m.CheckStuck,
		Failed:  m.CheckFailed,
		Missing: m.CheckMissing,
		Orphans: m.CheckOrphans,
		Backlog: m.CheckBacklog,
	}
}

func (o Options) enabled(c Category) bool {
	switch c {
	case CategoryStuck:
		return o.Stuck
	case CategoryFailed:
		return o.Failed
	case CategoryMissing:
		return o.Missing
	case CategoryOrphans:
		return o.Orphans
	case CategoryBacklog:
		return o.Backlog
	}
	return false
}

// Thresholds bound what each check considers an anomaly.
type Thresholds struct {
	StuckAfter        time.Duration
	FailedRetryAfter  time.Duration
	MaxAttempts       int
	OrphanGrace       time.Duration
	OrphanDeleteCap   int
	BacklogAfter      time.Duration
	PermanentPatterns []string
}

// ThresholdsFromConfig reads thresholds from the [monitor] section.
func ThresholdsFromConfig(cfg *config.Config) Thresholds {
	m := cfg.Monitor
	return Thresholds{
		StuckAfter:        time.Duration(m.StuckAfterMinutes) * time.Minute,
		FailedRetryAfter:  time.Duration(m.FailedRetryAfterMinutes) * time.Minute,
		MaxAttempts:       m.MaxAttempts,
		OrphanGrace:       time.Duration(m.OrphanGraceMinutes) * time.Minute,
		OrphanDeleteCap:   m.OrphanDeleteCap,
		BacklogAfter:      time.Duration(m.BacklogAfterMinutes) * time.Minute,
		PermanentPatterns: append([]string(nil), m.PermanentFailurePatterns...),
	}
}

// Monitor sweeps track state, the work queue, and the managed directories.
type Monitor struct {
	store      *tracks.Store
	assets     *storage.Store
	queue      jobs.Queue
	thresholds Thresholds
	publisher  events.Publisher
	notifier   notifications.Service
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithClock overrides the time source used for staleness cutoffs.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithThresholds replaces the configured thresholds.
func WithThresholds(t Thresholds) Option {
	return func(m *Monitor) {
		m.thresholds = t
	}
}

// WithPublisher emits a track.reset event for every reset track.
func WithPublisher(p events.Publisher) Option {
	return func(m *Monitor) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithNotifier sends a summary after sweeps that found something.
func WithNotifier(n notifications.Service) Option {
	return func(m *Monitor) {
		m.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// New constructs a Monitor with thresholds from cfg.
func New(cfg *config.Config, store *tracks.Store, assets *storage.Store, queue jobs.Queue, opts ...Option) *Monitor {
	m := &Monitor{
		store:      store,
		assets:     assets,
		queue:      queue,
		thresholds: ThresholdsFromConfig(cfg),
		publisher:  events.Noop{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "monitor")
	return m
}
