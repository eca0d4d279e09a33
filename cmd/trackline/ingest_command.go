package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"trackline/internal/daemonrun"
	"trackline/internal/ingest"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var item ingest.Item
	var enqueue bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ingest [manifest...]",
		Short: "Create pending tracks from manifest files or a single item",
		Long: "Ingest reads JSON, JSON Lines, or YAML manifests and creates one pending track per item.\n" +
			"Without arguments a single item is built from the --title/--audio-url/--image-url flags.\n" +
			"Items whose upstream ID is already known are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && item.AudioURL == "" && item.ImageURL == "" && item.Title == "" {
				return errors.New("provide manifest paths or --title/--audio-url/--image-url")
			}
			if !cmd.Flags().Changed("enqueue") {
				enqueue = ctx.configValue().Ingest.Enqueue
			}
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				if len(args) == 0 {
					return ingestOne(cmd, rt.Ingest, item, enqueue, asJSON)
				}
				return ingestManifests(cmd, rt.Ingest, args, enqueue, asJSON)
			})
		},
	}

	cmd.Flags().StringVar(&item.Title, "title", "", "Track title")
	cmd.Flags().StringVar(&item.AudioURL, "audio-url", "", "Audio source URL")
	cmd.Flags().StringVar(&item.ImageURL, "image-url", "", "Cover image source URL")
	cmd.Flags().StringVar(&item.TagString, "tags", "", "Comma-separated style tags")
	cmd.Flags().StringVar(&item.UpstreamID, "upstream-id", "", "Upstream identifier used to skip duplicates")
	cmd.Flags().BoolVar(&enqueue, "enqueue", true, "Schedule created tracks for processing (defaults to ingest.enqueue)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

type ingestOutput struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Created  bool   `json:"created"`
	Skipped  bool   `json:"skipped"`
	Enqueued bool   `json:"enqueued"`
}

func ingestOne(cmd *cobra.Command, svc *ingest.Service, item ingest.Item, enqueue, asJSON bool) error {
	result, err := svc.Ingest(cmd.Context(), item, enqueue)
	if err != nil {
		return err
	}
	out := ingestOutput{
		ID:       result.Track.ID,
		Title:    result.Track.DisplayTitle(),
		Created:  result.Created,
		Skipped:  result.Skipped,
		Enqueued: result.Enqueued,
	}
	if asJSON {
		return writeJSON(cmd, out)
	}
	w := cmd.OutOrStdout()
	switch {
	case out.Skipped:
		fmt.Fprintf(w, "Skipped: upstream ID already ingested as track %d\n", out.ID)
	case out.Enqueued:
		fmt.Fprintf(w, "Created track %d (%s), queued for processing\n", out.ID, out.Title)
	default:
		fmt.Fprintf(w, "Created track %d (%s)\n", out.ID, out.Title)
	}
	return nil
}

type manifestOutput struct {
	Path     string   `json:"path"`
	Seen     int      `json:"seen"`
	Created  int      `json:"created"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Enqueued int      `json:"enqueued"`
	Errors   []string `json:"errors,omitempty"`
}

func ingestManifests(cmd *cobra.Command, svc *ingest.Service, paths []string, enqueue, asJSON bool) error {
	results := make([]manifestOutput, 0, len(paths))
	failed := 0
	for _, path := range paths {
		summary, err := svc.IngestAll(cmd.Context(), ingest.NewManifestSource(path), enqueue)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		out := manifestOutput{
			Path:     path,
			Seen:     summary.Seen,
			Created:  summary.Created,
			Skipped:  summary.Skipped,
			Failed:   summary.Failed,
			Enqueued: summary.Enqueued,
		}
		for _, itemErr := range summary.Errors {
			out.Errors = append(out.Errors, itemErr.Error())
		}
		failed += summary.Failed
		results = append(results, out)
	}

	if asJSON {
		if err := writeJSON(cmd, results); err != nil {
			return err
		}
	} else {
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			rows = append(rows, []string{
				r.Path,
				strconv.Itoa(r.Seen),
				strconv.Itoa(r.Created),
				strconv.Itoa(r.Skipped),
				strconv.Itoa(r.Failed),
				strconv.Itoa(r.Enqueued),
			})
		}
		w := cmd.OutOrStdout()
		fmt.Fprint(w, renderTable(
			[]column{left("Manifest"), right("Seen"), right("Created"), right("Skipped"), right("Failed"), right("Queued")},
			rows,
		))
		for _, r := range results {
			for _, msg := range r.Errors {
				fmt.Fprintf(w, "  %s: %s\n", r.Path, msg)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d item(s) rejected", failed)
	}
	return nil
}
