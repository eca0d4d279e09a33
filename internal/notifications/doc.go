// Package notifications delivers pipeline milestones via ntfy.
//
// The default implementation publishes to the ntfy topic URL configured in
// config.toml and degrades to a no-op when no topic is set. Per-event toggles
// let operators silence completions while keeping failure alerts.
package notifications
