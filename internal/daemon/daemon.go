package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"trackline/internal/config"
	"trackline/internal/deps"
	"trackline/internal/ingest"
	"trackline/internal/jobs"
	"trackline/internal/logging"
	"trackline/internal/monitor"
	"trackline/internal/notifications"
	"trackline/internal/tracks"
	"trackline/internal/workflow"
)

// Components are the services the daemon coordinates. Monitor, Ingest, and
// Notifier are optional.
type Components struct {
	Store    *tracks.Store
	Queue    jobs.Queue
	Workflow *workflow.Manager
	Monitor  *monitor.Monitor
	Ingest   *ingest.Service
	Notifier notifications.Service
}

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *tracks.Store
	queue    jobs.Queue
	workflow *workflow.Manager
	monitor  *monitor.Monitor
	ingest   *ingest.Service
	notifier notifications.Service
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	sweepMu   sync.Mutex
	lastSweep *monitor.Report
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	TracksDBPath string
	LockFilePath string
	QueueBackend string
	LastSweep    *monitor.Report
	Dependencies []deps.Status
}

// LockPath is the flock file guarding single-instance execution.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "tracklined.lock")
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, components Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || components.Store == nil || components.Queue == nil || components.Workflow == nil {
		return nil, errors.New("daemon requires config, track store, queue, and workflow manager")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	lockPath := LockPath(cfg)
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    components.Store,
		queue:    components.Queue,
		workflow: components.Workflow,
		monitor:  components.Monitor,
		ingest:   components.Ingest,
		notifier: components.Notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the workers, the monitor, the
// watch-directory ingester, and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another trackline daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.workflow.Stop()
		_ = d.lock.Unlock()
		cancel()
		return err
	}
	d.cancel = cancel
	d.running.Store(true)

	if d.monitor != nil {
		interval := time.Duration(d.cfg.Monitor.IntervalSeconds) * time.Second
		d.goRun("monitor", func() error {
			return d.monitor.Run(runCtx, interval, monitor.OptionsFromConfig(d.cfg), d.recordSweep)
		})
	}
	if dir := strings.TrimSpace(d.cfg.Ingest.WatchDir); dir != "" && d.ingest != nil {
		watcher := ingest.NewWatcher(dir, d.ingest, d.cfg.Ingest.Enqueue, d.logger)
		d.goRun("watcher", func() error { return watcher.Run(runCtx) })
	}

	d.logger.Info("trackline daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

func (d *Daemon) goRun(name string, run func() error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := run(); err != nil && !errors.Is(err, context.Canceled) {
			logging.ErrorWithContext(d.logger, name+" stopped with error", name+"_failed", logging.Error(err))
		}
	}()
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.workflow.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("trackline daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// APIAddress returns the bound API address, or "" when the API is disabled
// or not started.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

func (d *Daemon) recordSweep(report *monitor.Report) {
	d.sweepMu.Lock()
	d.lastSweep = report
	d.sweepMu.Unlock()
}

// ListTracks returns tracks filtered by optional statuses.
func (d *Daemon) ListTracks(ctx context.Context, statuses []tracks.Status) ([]*tracks.Track, error) {
	return d.store.List(ctx, statuses...)
}

// RetryFailed moves failed tracks (optionally a subset) back to pending and
// enqueues them.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) ([]int64, error) {
	retried, err := d.store.RetryFailed(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for _, id := range retried {
		if err := d.queue.Enqueue(ctx, id); err != nil {
			// The monitor's backlog check picks up pending tracks that
			// never reached the queue.
			d.logger.Warn("retried track not enqueued", logging.TrackID(id), logging.Error(err))
		}
	}
	return retried, nil
}

// Ingest creates and enqueues one track.
func (d *Daemon) Ingest(ctx context.Context, item ingest.Item) (ingest.Result, error) {
	if d.ingest == nil {
		return ingest.Result{}, errors.New("ingestion unavailable")
	}
	return d.ingest.Ingest(ctx, item, true)
}

// Sweep runs one monitor sweep on demand.
func (d *Daemon) Sweep(ctx context.Context, opts monitor.Options) (*monitor.Report, error) {
	if d.monitor == nil {
		return nil, errors.New("monitor unavailable")
	}
	report, err := d.monitor.Sweep(ctx, opts)
	if report != nil && !opts.DryRun {
		d.recordSweep(report)
	}
	return report, err
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := d.notifier
	if notifier == nil {
		notifier = notifications.NewService(d.cfg)
	}
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.sweepMu.Lock()
	last := d.lastSweep
	d.sweepMu.Unlock()

	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		TracksDBPath: d.store.Path(),
		LockFilePath: d.lockPath,
		QueueBackend: d.cfg.Queue.Backend,
		LastSweep:    last,
		Dependencies: append([]deps.Status{deps.CheckFFmpeg(d.cfg)}, deps.CheckWritableDirs(d.cfg)...),
	}
}
