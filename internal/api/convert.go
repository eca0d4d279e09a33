package api

import (
	"slices"
	"strings"

	"trackline/internal/deps"
	"trackline/internal/monitor"
	"trackline/internal/tracks"
	"trackline/internal/workflow"
)

// FromTrack converts a track record to its API representation.
func FromTrack(track *tracks.Track) Track {
	if track == nil {
		return Track{}
	}
	dto := Track{
		ID:         track.ID,
		UpstreamID: track.UpstreamID,
		Title:      track.DisplayTitle(),
		Status:     string(track.Status),
		Progress: TrackProgress{
			Stage:   track.ProgressStage,
			Percent: track.Progress,
		},
		ErrorMessage:   track.ErrorMessage,
		Attempts:       track.Attempts,
		AudioSourceURL: track.AudioSourceURL,
		ImageSourceURL: track.ImageSourceURL,
		AudioPath:      track.AudioPath,
		ImagePath:      track.ImagePath,
		VideoPath:      track.VideoPath,
		TagString:      track.TagString,
		Tags:           append([]string{}, track.Tags...),
	}
	if track.LastHeartbeat != nil {
		dto.LastHeartbeat = track.LastHeartbeat.UTC().Format(dateTimeFormat)
	}
	if !track.CreatedAt.IsZero() {
		dto.CreatedAt = track.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !track.UpdatedAt.IsZero() {
		dto.UpdatedAt = track.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromTracks converts a slice of track records into API DTOs.
func FromTracks(records []*tracks.Track) []Track {
	out := make([]Track, 0, len(records))
	for _, track := range records {
		out = append(out, FromTrack(track))
	}
	return out
}

// MergeTrackStats converts status counts to string keys, including every
// known status with a zero count.
func MergeTrackStats(stats map[tracks.Status]int) map[string]int {
	out := make(map[string]int, len(tracks.AllStatuses()))
	for _, status := range tracks.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[strings.ToLower(string(status))] += count
	}
	return out
}

// FromStatusSummary converts a workflow status summary.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:     summary.Running,
		Workers:     summary.Workers,
		LiveWorkers: summary.LiveWorkers,
		QueueDepth:  summary.QueueDepth,
		Processed:   summary.Processed,
		Failed:      summary.Failed,
		TrackStats:  MergeTrackStats(summary.TrackStats),
		LastError:   summary.LastError,
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if summary.LastTrack != nil {
		last := FromTrack(summary.LastTrack)
		status.LastTrack = &last
	}
	return status
}

// StageHealthSlice converts stage health in name order.
func StageHealthSlice(health []workflow.StageHealth) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	slices.SortStableFunc(out, func(a, b StageHealth) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// FromDependencies converts dependency check results.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// FromReport converts a monitor report.
func FromReport(report *monitor.Report) *SweepReport {
	if report == nil {
		return nil
	}
	dto := &SweepReport{
		StartedAt:  report.StartedAt.UTC().Format(dateTimeFormat),
		DurationMS: report.Duration.Milliseconds(),
		DryRun:     report.DryRun,
		Categories: make(map[string]CategoryCounts, len(report.Categories)),
		Issues:     make([]SweepIssue, 0, len(report.Issues)),
	}
	for category, counts := range report.Categories {
		dto.Categories[string(category)] = CategoryCounts{
			Found:   counts.Found,
			Fixed:   counts.Fixed,
			Skipped: counts.Skipped,
			Errors:  counts.Errors,
		}
	}
	for _, issue := range report.Issues {
		dto.Issues = append(dto.Issues, SweepIssue{
			Category: string(issue.Category),
			TrackID:  issue.TrackID,
			Path:     issue.Path,
			Action:   issue.Action,
			Detail:   issue.Detail,
		})
	}
	return dto
}

// Options resolves a sweep request against the configured defaults.
func (r SweepRequest) Options(defaults monitor.Options) monitor.Options {
	pick := func(value *bool, fallback bool) bool {
		if value == nil {
			return fallback
		}
		return *value
	}
	return monitor.Options{
		Stuck:   pick(r.Stuck, defaults.Stuck),
		Failed:  pick(r.Failed, defaults.Failed),
		Missing: pick(r.Missing, defaults.Missing),
		Orphans: pick(r.Orphans, defaults.Orphans),
		Backlog: pick(r.Backlog, defaults.Backlog),
		DryRun:  r.DryRun,
	}
}
