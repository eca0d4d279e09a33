// Package daemon coordinates the long-running trackline process.
//
// It wires the track store, the work queue, the workflow manager, the
// continuous health monitor, the optional watch-directory ingester, and the
// HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon exposes track maintenance helpers and a
// status summary for the CLI and API.
//
// Keep orchestration logic here: pipeline stages live in workflow and
// corrective sweeps live in monitor, while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
