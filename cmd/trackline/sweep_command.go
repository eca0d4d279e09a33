package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"trackline/internal/api"
	"trackline/internal/daemonrun"
	"trackline/internal/monitor"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var checks monitor.Options
	var continuous bool
	var interval time.Duration
	var details bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Detect and repair stuck, failed, and inconsistent tracks",
		Long: "Sweep runs the health checks once and prints per-category counts of issues found and fixed.\n" +
			"Checks default to the [monitor] section; each flag overrides one check.\n" +
			"--continuous repeats the sweep every --interval until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			opts := monitor.OptionsFromConfig(cfg)
			flags := cmd.Flags()
			for name, target := range map[string]*bool{
				"stuck":   &opts.Stuck,
				"failed":  &opts.Failed,
				"missing": &opts.Missing,
				"orphans": &opts.Orphans,
				"backlog": &opts.Backlog,
			} {
				if flags.Changed(name) {
					*target, _ = flags.GetBool(name)
				}
			}
			opts.DryRun = checks.DryRun
			if !flags.Changed("interval") {
				interval = time.Duration(cfg.Monitor.IntervalSeconds) * time.Second
			}

			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				emit := func(report *monitor.Report) {
					if asJSON {
						_ = writeJSON(cmd, api.FromReport(report))
						return
					}
					renderSweepReport(cmd.OutOrStdout(), report, details)
				}
				if !continuous {
					report, err := rt.Monitor.Sweep(cmd.Context(), opts)
					if report != nil {
						emit(report)
					}
					return err
				}

				lock := flock.New(filepath.Join(cfg.Paths.DataDir, "sweep.lock"))
				ok, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire sweep lock: %w", err)
				}
				if !ok {
					return errors.New("another continuous sweep is already running")
				}
				defer lock.Unlock()

				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				err = rt.Monitor.Run(runCtx, interval, opts, emit)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&checks.Stuck, "stuck", true, "Reset tracks stuck in processing")
	flags.BoolVar(&checks.Failed, "failed", true, "Retry failed tracks with transient errors")
	flags.BoolVar(&checks.Missing, "missing", true, "Reprocess completed tracks whose files are missing")
	flags.BoolVar(&checks.Orphans, "orphans", true, "Delete managed files no track references or will reuse")
	flags.BoolVar(&checks.Backlog, "backlog", true, "Re-enqueue pending tracks missing from the queue")
	flags.BoolVar(&checks.DryRun, "dry-run", false, "Report issues without changing anything")
	flags.BoolVar(&continuous, "continuous", false, "Repeat the sweep until interrupted")
	flags.DurationVar(&interval, "interval", 5*time.Minute, "Delay between continuous sweeps (defaults to monitor.interval_seconds)")
	flags.BoolVarP(&details, "details", "d", false, "List every issue, not just the counts")
	flags.BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderSweepReport(w io.Writer, report *monitor.Report, details bool) {
	title := "Sweep"
	if report.DryRun {
		title = "Sweep (dry run)"
	}
	fmt.Fprintf(w, "%s at %s, took %s\n", title, report.StartedAt.Format(time.DateTime), report.Duration.Round(time.Millisecond))

	rows := make([][]string, 0, len(report.Categories)+1)
	for _, category := range report.Checked() {
		entry := report.Categories[category]
		rows = append(rows, []string{
			string(category),
			strconv.Itoa(entry.Found),
			strconv.Itoa(entry.Fixed),
			strconv.Itoa(entry.Skipped),
			strconv.Itoa(entry.Errors),
		})
	}
	total := report.Totals()
	rows = append(rows, []string{
		"total",
		strconv.Itoa(total.Found),
		strconv.Itoa(total.Fixed),
		strconv.Itoa(total.Skipped),
		strconv.Itoa(total.Errors),
	})
	fmt.Fprint(w, renderTable(
		[]column{left("Check"), right("Found"), right("Fixed"), right("Skipped"), right("Errors")},
		rows,
	))

	if !details || len(report.Issues) == 0 {
		return
	}
	issueRows := make([][]string, 0, len(report.Issues))
	for _, issue := range report.Issues {
		subject := issue.Path
		if issue.TrackID != 0 {
			subject = "#" + strconv.FormatInt(issue.TrackID, 10)
		}
		issueRows = append(issueRows, []string{string(issue.Category), subject, issue.Action, issue.Detail})
	}
	fmt.Fprint(w, renderTable(
		[]column{left("Check"), left("Subject"), left("Action"), left("Detail")},
		issueRows,
	))
}
