package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"trackline/internal/config"
	"trackline/internal/daemon"
	"trackline/internal/deps"
	"trackline/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the trackline daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := NewLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logDependencySnapshot(logger, cfg)

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Build(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("build runtime", logging.Error(err))
		return err
	}
	defer rt.Close()

	d, err := daemon.New(cfg, daemon.Components{
		Store:    rt.Store,
		Queue:    rt.Queue,
		Workflow: rt.Workflow,
		Monitor:  rt.Monitor,
		Ingest:   rt.Ingest,
		Notifier: rt.Notifier,
	}, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check ffmpeg, directory permissions, and that no other daemon holds the lock"),
			logging.String(logging.FieldImpact, "no tracks will be processed"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("trackline daemon shutting down")
	return nil
}

// PIDPath is where a running daemon records its process ID.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "tracklined.pid")
}

// NewLogger builds the process logger, honoring a command-line level override.
func NewLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	if opts.LogLevel == "" && !opts.Development {
		return logging.NewFromConfig(cfg)
	}
	local := *cfg
	if opts.LogLevel != "" {
		local.Logging.Level = opts.LogLevel
	}
	if opts.Development {
		local.Logging.Format = "console"
		if opts.LogLevel == "" {
			local.Logging.Level = "debug"
		}
	}
	return logging.NewFromConfig(&local)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	ffmpeg := deps.CheckFFmpeg(cfg)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("ffmpeg_binary", ffmpeg.Command),
		logging.Bool("ffmpeg_available", ffmpeg.Available),
		logging.String("queue_backend", cfg.Queue.Backend),
		logging.String("events_backend", cfg.Events.Backend),
		logging.Bool("mirror_enabled", cfg.Mirror.Enabled),
		logging.Bool("ntfy_configured", cfg.Notifications.NtfyTopic != ""),
		logging.String("api_bind", cfg.API.Bind),
	}
	for _, dir := range deps.CheckWritableDirs(cfg) {
		if !dir.Available {
			attrs = append(attrs, logging.String("unwritable_"+filepath.Base(dir.Command), dir.Detail))
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
