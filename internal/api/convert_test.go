package api

import (
	"testing"
	"time"

	"trackline/internal/monitor"
	"trackline/internal/tracks"
	"trackline/internal/workflow"
)

func TestFromTrackFallsBackToUpstreamTitle(t *testing.T) {
	beat := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	dto := FromTrack(&tracks.Track{ID: 7, UpstreamID: "deezer-7", Status: tracks.StatusProcessing, LastHeartbeat: &beat})
	if dto.Title != "deezer-7" {
		t.Fatalf("expected upstream id as title, got %q", dto.Title)
	}
	if dto.LastHeartbeat != "2026-01-02T03:04:05.000Z" {
		t.Fatalf("unexpected heartbeat format %q", dto.LastHeartbeat)
	}
	if dto.Tags == nil {
		t.Fatal("tags should encode as an empty list, not null")
	}
}

func TestFromStatusSummary(t *testing.T) {
	summary := workflow.StatusSummary{
		Running:    true,
		Workers:    2,
		Processed:  3,
		TrackStats: map[tracks.Status]int{tracks.StatusCompleted: 3},
		LastTrack:  &tracks.Track{ID: 9, Title: "Last"},
		StageHealth: []workflow.StageHealth{
			workflow.UnhealthyStage("storage", "not writable"),
			workflow.HealthyStage("encoder"),
		},
	}
	got := FromStatusSummary(summary)
	if !got.Running || got.Workers != 2 || got.TrackStats["completed"] != 3 {
		t.Fatalf("unexpected status %+v", got)
	}
	if got.LastTrack == nil || got.LastTrack.ID != 9 {
		t.Fatalf("expected last track, got %+v", got.LastTrack)
	}
	if got.StageHealth[0].Name != "encoder" || got.StageHealth[1].Ready {
		t.Fatalf("expected name-ordered health, got %+v", got.StageHealth)
	}
}

func TestFromReport(t *testing.T) {
	report := &monitor.Report{
		StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Categories: map[monitor.Category]*monitor.CategoryReport{
			monitor.CategoryStuck: {Found: 1, Fixed: 1},
		},
		Issues: []monitor.Issue{{Category: monitor.CategoryStuck, TrackID: 4, Action: "reset to pending"}},
	}
	dto := FromReport(report)
	if dto.DurationMS != 1500 || dto.Categories["stuck"].Fixed != 1 {
		t.Fatalf("unexpected report %+v", dto)
	}
	if len(dto.Issues) != 1 || dto.Issues[0].TrackID != 4 {
		t.Fatalf("unexpected issues %+v", dto.Issues)
	}
	if FromReport(nil) != nil {
		t.Fatal("nil report should convert to nil")
	}
}

func TestSweepRequestOptions(t *testing.T) {
	off := false
	req := SweepRequest{Orphans: &off, DryRun: true}
	opts := req.Options(monitor.AllChecks())
	if !opts.Stuck || !opts.Failed || opts.Orphans || !opts.DryRun {
		t.Fatalf("unexpected options %+v", opts)
	}
}
