package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"trackline/internal/api"
	"trackline/internal/daemonrun"
	"trackline/internal/logging"
	"trackline/internal/tracks"
)

func newTracksCommand(ctx *commandContext) *cobra.Command {
	tracksCmd := &cobra.Command{
		Use:     "tracks",
		Aliases: []string{"track"},
		Short:   "Inspect and manage track records",
	}

	tracksCmd.AddCommand(newTracksListCommand(ctx))
	tracksCmd.AddCommand(newTracksShowCommand(ctx))
	tracksCmd.AddCommand(newTracksRetryCommand(ctx))
	tracksCmd.AddCommand(newTracksRemoveCommand(ctx))
	tracksCmd.AddCommand(newTracksRemoveInvalidCommand(ctx))

	return tracksCmd
}

func newTracksListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, invalid := api.ParseStatuses(statusFilters)
			if len(invalid) > 0 {
				return fmt.Errorf("unknown status %s (valid: %s)", strings.Join(invalid, ", "), statusNames())
			}
			return ctx.withStore(func(store *tracks.Store) error {
				records, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.TrackListResponse{Tracks: api.FromTracks(records)})
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tracks")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]column{right("ID"), left("Title"), left("Status"), right("Progress"), left("Updated")},
					trackRows(records, time.Now()),
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func trackRows(records []*tracks.Track, now time.Time) [][]string {
	rows := make([][]string, 0, len(records))
	for _, track := range records {
		progress := strconv.Itoa(track.Progress) + "%"
		if track.ProgressStage != "" {
			progress = track.ProgressStage + " " + progress
		}
		rows = append(rows, []string{
			strconv.FormatInt(track.ID, 10),
			track.DisplayTitle(),
			string(track.Status),
			progress,
			humanize.RelTime(track.UpdatedAt, now, "ago", "from now"),
		})
	}
	return rows
}

func statusNames() string {
	names := make([]string, 0, 4)
	for _, status := range tracks.AllStatuses() {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}

func newTracksShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one track in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTrackID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *tracks.Store) error {
				track, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if track == nil {
					return fmt.Errorf("track %d not found", id)
				}
				if asJSON {
					return writeJSON(cmd, api.TrackResponse{Track: api.FromTrack(track)})
				}
				renderTrackDetail(cmd.OutOrStdout(), track, time.Now())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderTrackDetail(w io.Writer, track *tracks.Track, now time.Time) {
	line := func(label, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(w, "%-12s %s\n", label+":", value)
	}
	when := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return fmt.Sprintf("%s (%s)", t.Local().Format(time.DateTime), humanize.RelTime(t, now, "ago", "from now"))
	}

	line("ID", strconv.FormatInt(track.ID, 10))
	line("Title", track.DisplayTitle())
	line("Upstream", track.UpstreamID)
	line("Status", string(track.Status))
	line("Progress", fmt.Sprintf("%d%% (%s)", track.Progress, track.ProgressStage))
	line("Attempts", strconv.Itoa(track.Attempts))
	line("Error", track.ErrorMessage)
	line("Audio URL", track.AudioSourceURL)
	line("Image URL", track.ImageSourceURL)
	line("Audio", track.AudioPath)
	line("Image", track.ImagePath)
	line("Video", track.VideoPath)
	line("Tags", strings.Join(track.Tags, ", "))
	if track.LastHeartbeat != nil {
		line("Heartbeat", when(*track.LastHeartbeat))
	}
	line("Created", when(track.CreatedAt))
	line("Updated", when(track.UpdatedAt))
}

func newTracksRetryCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "retry [id...]",
		Short: "Move failed tracks back to pending and queue them",
		Long:  "Retry resets failed tracks to pending with a fresh attempt counter. Without IDs every failed track is retried.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseTrackID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				actions := retryActions{reader: api.NewTrackService(rt.Store), rt: rt}
				if len(ids) == 0 {
					retried, err := actions.Retry(cmd.Context(), nil)
					if err != nil {
						return err
					}
					if asJSON {
						return writeJSON(cmd, api.RetryTracksResult{UpdatedCount: len(retried), Tracks: retriedResults(retried)})
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Retried %d failed track(s)\n", len(retried))
					return nil
				}

				result, err := api.RetryFailedTracksByID(cmd.Context(), actions, ids)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, result)
				}
				w := cmd.OutOrStdout()
				for _, entry := range result.Tracks {
					switch entry.Outcome {
					case api.RetryUpdated:
						fmt.Fprintf(w, "Track %d queued for retry\n", entry.ID)
					case api.RetryNotFound:
						fmt.Fprintf(w, "Track %d not found\n", entry.ID)
					case api.RetryNotFailed:
						fmt.Fprintf(w, "Track %d is %s, not failed\n", entry.ID, entry.Status)
					}
				}
				if result.UpdatedCount < len(ids) {
					return fmt.Errorf("%d of %d track(s) retried", result.UpdatedCount, len(ids))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// retryActions resets failed tracks in the store and enqueues them. An
// enqueue failure leaves the track pending for the backlog check.
type retryActions struct {
	reader *api.TrackService
	rt     *daemonrun.Runtime
}

func (a retryActions) Describe(ctx context.Context, id int64) (*api.Track, error) {
	return a.reader.Describe(ctx, id)
}

func (a retryActions) Retry(ctx context.Context, ids []int64) ([]int64, error) {
	retried, err := a.rt.Store.RetryFailed(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for _, id := range retried {
		if err := a.rt.Queue.Enqueue(ctx, id); err != nil {
			a.rt.Logger.Warn("enqueue retried track", logging.TrackID(id), logging.Error(err))
		}
	}
	return retried, nil
}

func retriedResults(ids []int64) []api.RetryTrackResult {
	out := make([]api.RetryTrackResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, api.RetryTrackResult{ID: id, Outcome: api.RetryUpdated, Status: string(tracks.StatusPending)})
	}
	return out
}

func newTracksRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id...>",
		Short: "Delete track records",
		Long:  "Remove deletes track records only. Their files become orphans and are collected by a later sweep.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseTrackID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withStore(func(store *tracks.Store) error {
				w := cmd.OutOrStdout()
				var missing int
				for _, id := range ids {
					ok, err := store.Remove(cmd.Context(), id)
					if err != nil {
						return err
					}
					if !ok {
						missing++
						fmt.Fprintf(w, "Track %d not found\n", id)
						continue
					}
					fmt.Fprintf(w, "Removed track %d\n", id)
				}
				if missing > 0 {
					return fmt.Errorf("%d track(s) not found", missing)
				}
				return nil
			})
		},
	}
}

func newTracksRemoveInvalidCommand(ctx *commandContext) *cobra.Command {
	var patterns []string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "remove-invalid",
		Short: "Delete failed tracks whose upstream source is permanently invalid",
		Long: "Remove-invalid deletes failed tracks whose error matches a permanent failure pattern.\n" +
			"Patterns default to monitor.permanent_failure_patterns and match case-insensitively.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("pattern") {
				patterns = ctx.configValue().Monitor.PermanentFailurePatterns
			}
			if len(patterns) == 0 {
				return errors.New("no failure patterns configured")
			}
			return ctx.withStore(func(store *tracks.Store) error {
				var matched []*tracks.Track
				if dryRun {
					failed, err := store.List(cmd.Context(), tracks.StatusFailed)
					if err != nil {
						return err
					}
					for _, track := range failed {
						if tracks.MatchesAny(track.ErrorMessage, patterns) {
							matched = append(matched, track)
						}
					}
				} else {
					removed, err := store.RemoveInvalid(cmd.Context(), patterns)
					if err != nil {
						return err
					}
					matched = removed
				}

				w := cmd.OutOrStdout()
				verb := "Removed"
				if dryRun {
					verb = "Would remove"
				}
				for _, track := range matched {
					fmt.Fprintf(w, "%s track %d (%s): %s\n", verb, track.ID, track.DisplayTitle(), track.ErrorMessage)
				}
				fmt.Fprintf(w, "%s %d invalid track(s)\n", verb, len(matched))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "Error substring marking a permanent failure (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List matching tracks without deleting them")
	return cmd
}

func parseTrackID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid track id %q", value)
	}
	return id, nil
}
