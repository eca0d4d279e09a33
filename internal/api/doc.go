// Package api defines wire-format types and converters for the HTTP API and
// the CLI's JSON output. It translates track records, workflow status, and
// sweep reports into transport-friendly DTOs so consumers never couple to
// internal types.
//
// # Key Types
//
// Track: transport representation of a track record with progress and the
// local asset paths.
//
// WorkflowStatus: worker pool state, track counts, and stage health.
//
// DaemonStatus: aggregated runtime information including dependencies.
//
// SweepReport: per-category counters and issues from a monitor sweep.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Statuses are exposed as lowercase strings and
// timestamps use RFC3339 with milliseconds.
package api
