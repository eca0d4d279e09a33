// Package services defines shared error markers and context helpers consumed
// by the pipeline stages and their external integrations.
//
// Wrap tags failures with a sentinel marker so the worker, the health monitor,
// and the logs agree on whether a failure is permanent (invalid source,
// upstream content gone) or worth retrying (timeouts, encoder hiccups).
package services
