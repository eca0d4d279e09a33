// Package events publishes track lifecycle transitions (ingested, progress,
// completed, failed, reset) to downstream consumers.
//
// The track record remains the source of truth; events are a notification
// channel so observers need not poll. Backends are Kafka, a structured log
// sink, and a no-op.
package events
