// Package monitor implements the health sweep that repairs track state the
// workers cannot repair themselves.
//
// A sweep runs five independent checks: tracks stuck in processing, failed
// tracks with a transient cause, completed tracks whose files vanished,
// unreferenced files in the managed directories, and pending work nobody is
// going to pick up. Every reset is guarded by the status and updated_at the
// sweep observed, so a worker finishing the same track concurrently wins.
package monitor
