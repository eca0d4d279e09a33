package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"trackline/internal/api"
	"trackline/internal/config"
	"trackline/internal/daemon"
	"trackline/internal/daemonrun"
	"trackline/internal/deps"
	"trackline/internal/storage"
	"trackline/internal/tracks"
)

type storageUsage struct {
	Kind  string `json:"kind"`
	Files int    `json:"files"`
	Bytes int64  `json:"bytes"`
}

type statusReport struct {
	DaemonRunning bool                   `json:"daemonRunning"`
	DaemonPID     int                    `json:"daemonPid,omitempty"`
	TracksDBPath  string                 `json:"tracksDbPath"`
	QueueBackend  string                 `json:"queueBackend"`
	QueueDepth    int                    `json:"queueDepth"`
	LiveWorkers   int                    `json:"liveWorkers"`
	TrackStats    map[string]int         `json:"trackStats"`
	Storage       []storageUsage         `json:"storage"`
	Dependencies  []api.DependencyStatus `json:"dependencies"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, storage, and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				report, err := collectStatus(cmd.Context(), rt)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				renderStatus(out, report, shouldColorize(out))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func collectStatus(ctx context.Context, rt *daemonrun.Runtime) (statusReport, error) {
	cfg := rt.Config
	summary := rt.Workflow.Status(ctx)
	report := statusReport{
		TracksDBPath: rt.Store.Path(),
		QueueBackend: cfg.Queue.Backend,
		QueueDepth:   summary.QueueDepth,
		LiveWorkers:  summary.LiveWorkers,
		TrackStats:   api.MergeTrackStats(summary.TrackStats),
		Dependencies: api.FromDependencies(append([]deps.Status{deps.CheckFFmpeg(cfg)}, deps.CheckWritableDirs(cfg)...)),
	}

	running, err := daemonRunning(cfg)
	if err != nil {
		return report, err
	}
	report.DaemonRunning = running
	if running {
		report.DaemonPID = readPID(daemonrun.PIDPath(cfg))
	}

	for _, kind := range storage.Kinds() {
		files, err := rt.Assets.ListManaged(kind)
		if err != nil {
			return report, err
		}
		usage := storageUsage{Kind: string(kind), Files: len(files)}
		for _, file := range files {
			usage.Bytes += file.Size
		}
		report.Storage = append(report.Storage, usage)
	}
	return report, nil
}

// daemonRunning probes the daemon's flock without holding it.
func daemonRunning(cfg *config.Config) (bool, error) {
	lock := flock.New(daemon.LockPath(cfg))
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe daemon lock: %w", err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

func renderStatus(w io.Writer, report statusReport, colorize bool) {
	var lines []string

	lines = append(lines, sectionHeader("Daemon", colorize)...)
	if report.DaemonRunning {
		msg := "Running"
		if report.DaemonPID > 0 {
			msg = fmt.Sprintf("Running (pid %d)", report.DaemonPID)
		}
		lines = append(lines, statusLine("tracklined", levelOK, msg, colorize))
	} else {
		lines = append(lines, statusLine("tracklined", levelWarn, "Not running", colorize))
	}
	lines = append(lines, statusLine("Database", levelInfo, report.TracksDBPath, colorize))
	lines = append(lines, "")

	lines = append(lines, sectionHeader("Tracks", colorize)...)
	for _, status := range tracks.AllStatuses() {
		count := report.TrackStats[string(status)]
		lvl := levelInfo
		switch {
		case status == tracks.StatusFailed && count > 0:
			lvl = levelError
		case status == tracks.StatusCompleted && count > 0:
			lvl = levelOK
		}
		lines = append(lines, statusLine(titleCase(string(status)), lvl, humanize.Comma(int64(count)), colorize))
	}
	lines = append(lines, "")

	lines = append(lines, sectionHeader("Queue", colorize)...)
	lines = append(lines, statusLine("Backend", levelInfo, report.QueueBackend, colorize))
	lines = append(lines, statusLine("Depth", levelInfo, humanize.Comma(int64(report.QueueDepth)), colorize))
	workerLevel := levelOK
	if report.LiveWorkers == 0 {
		workerLevel = levelWarn
	}
	lines = append(lines, statusLine("Live workers", workerLevel, strconv.Itoa(report.LiveWorkers), colorize))
	lines = append(lines, "")

	lines = append(lines, sectionHeader("Storage", colorize)...)
	for _, usage := range report.Storage {
		msg := fmt.Sprintf("%s in %s", humanize.IBytes(uint64(usage.Bytes)), pluralFiles(usage.Files))
		lines = append(lines, statusLine(titleCase(usage.Kind), levelInfo, msg, colorize))
	}
	lines = append(lines, "")

	lines = append(lines, sectionHeader("Dependencies", colorize)...)
	lines = append(lines, dependencyLines(report.Dependencies, colorize)...)

	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

func dependencyLines(statuses []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(statuses))
	for _, dep := range statuses {
		label := dep.Name
		if dep.Name == "Directory" {
			label = filepath.Base(dep.Command)
		}
		switch {
		case dep.Available:
			lines = append(lines, statusLine(label, levelOK, dep.Command, colorize))
		case dep.Optional:
			lines = append(lines, statusLine(label, levelWarn, dep.Detail, colorize))
		default:
			lines = append(lines, statusLine(label, levelError, dep.Detail, colorize))
		}
	}
	return lines
}

func pluralFiles(n int) string {
	if n == 1 {
		return "1 file"
	}
	return humanize.Comma(int64(n)) + " files"
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
