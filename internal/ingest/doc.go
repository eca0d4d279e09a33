// Package ingest turns raw item descriptions into pending track records.
//
// A Service deduplicates by upstream ID and optionally enqueues new records.
// Sources adapt inputs (manifest files, single CLI items, API payloads) to a
// common batched interface, and Watcher picks up manifests dropped into a
// directory.
package ingest
