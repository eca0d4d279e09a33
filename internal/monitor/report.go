package monitor

import (
	"slices"
	"time"

	"trackline/internal/notifications"
)

// Category names one sweep check.
type Category string

const (
	CategoryStuck   Category = "stuck"
	CategoryFailed  Category = "failed"
	CategoryMissing Category = "missing_files"
	CategoryOrphans Category = "orphans"
	CategoryBacklog Category = "backlog"
)

// Categories lists the checks in the order a sweep runs them.
func Categories() []Category {
	return []Category{CategoryStuck, CategoryFailed, CategoryMissing, CategoryOrphans, CategoryBacklog}
}

// CategoryReport counts what one check found and did.
type CategoryReport struct {
	Found   int `json:"found"`
	Fixed   int `json:"fixed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Issue is one detected anomaly and the action taken for it.
type Issue struct {
	Category Category `json:"category"`
	TrackID  int64    `json:"track_id,omitempty"`
	Path     string   `json:"path,omitempty"`
	Action   string   `json:"action"`
	Detail   string   `json:"detail,omitempty"`
}

// Report summarizes a sweep.
type Report struct {
	StartedAt  time.Time                    `json:"started_at"`
	Duration   time.Duration                `json:"duration"`
	DryRun     bool                         `json:"dry_run"`
	Categories map[Category]*CategoryReport `json:"categories"`
	Issues     []Issue                      `json:"issues"`
}

func newReport(started time.Time, opts Options) *Report {
	report := &Report{
		StartedAt:  started,
		DryRun:     opts.DryRun,
		Categories: make(map[Category]*CategoryReport),
	}
	for _, category := range Categories() {
		if opts.enabled(category) {
			report.Categories[category] = &CategoryReport{}
		}
	}
	return report
}

func (r *Report) category(c Category) *CategoryReport {
	entry, ok := r.Categories[c]
	if !ok {
		entry = &CategoryReport{}
		r.Categories[c] = entry
	}
	return entry
}

func (r *Report) add(issue Issue) {
	r.Issues = append(r.Issues, issue)
}

// Checked returns the categories the sweep ran, in run order.
func (r *Report) Checked() []Category {
	out := make([]Category, 0, len(r.Categories))
	for _, category := range Categories() {
		if _, ok := r.Categories[category]; ok {
			out = append(out, category)
		}
	}
	return out
}

// Totals sums the per-category counters.
func (r *Report) Totals() CategoryReport {
	var total CategoryReport
	for _, entry := range r.Categories {
		total.Found += entry.Found
		total.Fixed += entry.Fixed
		total.Skipped += entry.Skipped
		total.Errors += entry.Errors
	}
	return total
}

// IssuesFor returns the issues recorded for one category.
func (r *Report) IssuesFor(c Category) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Category == c {
			out = append(out, issue)
		}
	}
	return out
}

// TrackIDs returns the distinct track IDs mentioned in the report.
func (r *Report) TrackIDs() []int64 {
	var ids []int64
	for _, issue := range r.Issues {
		if issue.TrackID != 0 && !slices.Contains(ids, issue.TrackID) {
			ids = append(ids, issue.TrackID)
		}
	}
	return ids
}

// Summary converts the report for notification delivery.
func (r *Report) Summary() notifications.SweepSummary {
	total := r.Totals()
	return notifications.SweepSummary{
		Found:    total.Found,
		Fixed:    total.Fixed,
		Skipped:  total.Skipped,
		Errors:   total.Errors,
		Duration: r.Duration,
	}
}
