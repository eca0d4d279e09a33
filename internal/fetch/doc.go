// Package fetch downloads remote audio and image assets over HTTP.
//
// Each call makes exactly one attempt under a fixed client timeout; retry
// policy belongs to the health monitor. Failures surface as *DownloadError,
// which matches services.ErrNotFound for 404/410 responses so those tracks
// are treated as permanently failed.
package fetch
