package testsupport

import (
	"context"
	"testing"

	"trackline/internal/config"
	"trackline/internal/tracks"
)

// MustOpenStore opens a tracks.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...tracks.Option) *tracks.Store {
	t.Helper()

	store, err := tracks.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("tracks.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTrack inserts a pending track whose source URLs embed upstreamID. An
// empty upstreamID leaves the record unkeyed and without sources.
func NewTrack(t testing.TB, store *tracks.Store, title, upstreamID string) *tracks.Track {
	t.Helper()

	track := &tracks.Track{Title: title, UpstreamID: upstreamID}
	if upstreamID != "" {
		track.AudioSourceURL = "https://cdn.example.test/" + upstreamID + ".mp3"
		track.ImageSourceURL = "https://cdn.example.test/" + upstreamID + ".jpg"
	}
	created, err := store.Create(context.Background(), track)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return created
}

// MustUpdate persists track and fails the test on error.
func MustUpdate(t testing.TB, store *tracks.Store, track *tracks.Track) {
	t.Helper()

	if err := store.Update(context.Background(), track); err != nil {
		t.Fatalf("store.Update: %v", err)
	}
}

// MustGet reloads a track and fails the test when it is missing.
func MustGet(t testing.TB, store *tracks.Store, id int64) *tracks.Track {
	t.Helper()

	track, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("store.GetByID: %v", err)
	}
	if track == nil {
		t.Fatalf("track %d not found", id)
	}
	return track
}
