// Package jobs carries track IDs from ingestion to the processing workers.
//
// Three backends implement Queue: SQLite (the default, a separate database
// file with an atomic DELETE ... RETURNING pop), Redis (a list consumed with
// BRPOP so several hosts can share the backlog), and an in-process Memory
// queue. Every backend also records worker presence, which the health
// monitor consults before re-enqueuing a pending backlog.
package jobs
