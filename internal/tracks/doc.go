// Package tracks persists track records in SQLite and exposes the state
// machine helpers that drive their lifecycle.
//
// A Track moves pending -> processing -> completed or failed. Workers claim
// pending tracks, checkpoint progress after every stage, and mark the final
// outcome; the health monitor moves stuck and retryable records back to
// pending through ResetToPending, whose status/updated_at guard keeps it from
// clobbering a record a worker just finished.
//
// Schema changes bump schemaVersion in schema.go; users delete the database
// to adopt the new schema.
package tracks
