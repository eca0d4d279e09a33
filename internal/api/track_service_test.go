package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"trackline/internal/tracks"
)

type mockTrackReader struct {
	tracks   []*tracks.Track
	stats    map[tracks.Status]int
	trackErr error
	statsErr error
	statuses []tracks.Status
}

func (m *mockTrackReader) List(_ context.Context, statuses ...tracks.Status) ([]*tracks.Track, error) {
	m.statuses = statuses
	return m.tracks, m.trackErr
}

func (m *mockTrackReader) Stats(context.Context) (map[tracks.Status]int, error) {
	return m.stats, m.statsErr
}

func (m *mockTrackReader) GetByID(_ context.Context, id int64) (*tracks.Track, error) {
	for _, track := range m.tracks {
		if track.ID == id {
			return track, m.trackErr
		}
	}
	return nil, m.trackErr
}

func TestTrackService_List(t *testing.T) {
	now := time.Now().UTC()
	reader := &mockTrackReader{
		tracks: []*tracks.Track{{
			ID:        1,
			Title:     "Song A",
			Status:    tracks.StatusCompleted,
			Progress:  100,
			Tags:      []string{"Lo-Fi", "Jazz"},
			CreatedAt: now,
			UpdatedAt: now,
		}},
	}
	svc := NewTrackService(reader)
	got, err := svc.List(context.Background(), tracks.StatusCompleted)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Song A" {
		t.Fatalf("unexpected tracks: %+v", got)
	}
	if got[0].Status != "completed" || got[0].Progress.Percent != 100 {
		t.Fatalf("unexpected status/progress: %+v", got[0])
	}
	if got[0].CreatedAt == "" || got[0].UpdatedAt == "" {
		t.Fatal("expected timestamps to be formatted")
	}
	if len(reader.statuses) != 1 || reader.statuses[0] != tracks.StatusCompleted {
		t.Fatalf("status filter not forwarded: %v", reader.statuses)
	}
}

func TestTrackService_StatsIncludesZeroCounts(t *testing.T) {
	svc := NewTrackService(&mockTrackReader{stats: map[tracks.Status]int{tracks.StatusFailed: 2}})
	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats["failed"] != 2 || stats["pending"] != 0 || len(stats) != len(tracks.AllStatuses()) {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestTrackService_DescribeMissing(t *testing.T) {
	svc := NewTrackService(&mockTrackReader{})
	got, err := svc.Describe(context.Background(), 42)
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for missing track, got %v, %v", got, err)
	}
}

func TestTrackService_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	svc := NewTrackService(&mockTrackReader{trackErr: boom, statsErr: boom})
	if _, err := svc.List(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected list error, got %v", err)
	}
	if _, err := svc.Stats(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected stats error, got %v", err)
	}
}

func TestNilTrackServiceIsSafe(t *testing.T) {
	var svc *TrackService
	if got, err := svc.List(context.Background()); got != nil || err != nil {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
	if NewTrackService(nil) != nil {
		t.Fatal("expected nil service for nil reader")
	}
}

func TestParseStatuses(t *testing.T) {
	statuses, invalid := ParseStatuses([]string{"failed", "", "PENDING", "bogus"})
	if len(statuses) != 2 || statuses[0] != tracks.StatusFailed || statuses[1] != tracks.StatusPending {
		t.Fatalf("unexpected statuses %v", statuses)
	}
	if len(invalid) != 1 || invalid[0] != "bogus" {
		t.Fatalf("unexpected invalid values %v", invalid)
	}
}
