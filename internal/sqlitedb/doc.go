// Package sqlitedb opens the SQLite databases trackline keeps on disk and
// provides the busy-retry and value helpers shared by the track store and the
// SQLite work queue.
package sqlitedb
