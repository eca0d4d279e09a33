// Package storage is the content-addressed asset store.
//
// Audio, image, and video files live in three managed directories and are
// named after the upstream content ID, so a second request for the same ID
// is answered from disk without touching the network. The filename is the
// index: a directory scan finds existing assets, which keeps out-of-band
// deletions visible to the health monitor. Downloads for one ID are
// serialized by an in-process mutex plus a lock file, and land through a
// temp-file rename so readers never observe a partial asset.
package storage
