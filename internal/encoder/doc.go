// Package encoder wraps the external ffmpeg process that turns a still image
// and an audio track into a video.
//
// Profiles are tried in order (libx264 first, mpeg4 as the fallback) through
// a Runner, so tests substitute a fake for the real binary. When every
// profile fails the caller receives an *EncodingError carrying the tail of
// ffmpeg's stderr.
package encoder
