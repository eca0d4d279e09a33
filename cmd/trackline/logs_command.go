package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"trackline/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the trackline log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, "trackline.log")
			out := cmd.OutOrStdout()
			emit := func(line string) {
				if filter.Match(line) {
					fmt.Fprintln(out, line)
				}
			}

			// Filtering happens after the tail, so a filtered view may show
			// fewer than --lines entries.
			recent, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range recent {
				emit(line)
			}
			if !follow {
				return nil
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			err = logs.Follow(runCtx, path, offset, emit)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().Int64Var(&filter.TrackID, "track", 0, "Only show lines for this track ID")
	cmd.Flags().StringVar(&filter.Contains, "grep", "", "Only show lines containing this text (case-insensitive)")
	return cmd
}
