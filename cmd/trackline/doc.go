// Command trackline is the operator CLI. It ingests tracks, runs workers in
// the foreground, sweeps for stuck or broken records, and inspects the track
// database directly, without going through a running daemon.
package main
