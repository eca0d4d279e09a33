package workflow_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"trackline/internal/ingest"
	"trackline/internal/jobs"
	"trackline/internal/testsupport"
	"trackline/internal/tracks"
	"trackline/internal/workflow"
)

func TestManagerProcessesQueuedTracks(t *testing.T) {
	e := newEnv(t, workflow.WithWorkers(2))
	ids := make([]int64, 0, 3)
	for i := range 3 {
		path := fmt.Sprintf("/track-%d", i)
		e.origin.Serve(path+".mp3", []byte("mp3"))
		e.origin.Serve(path+".jpg", []byte("jpg"))
		track := e.mustIngest(t, ingest.Item{
			Title:      fmt.Sprintf("Track %d", i),
			AudioURL:   "https://cdn.example.test" + path + ".mp3",
			ImageURL:   "https://cdn.example.test" + path + ".jpg",
			UpstreamID: fmt.Sprintf("up-%d", i),
		})
		ids = append(ids, track.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.manager.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		done := 0
		for _, id := range ids {
			if testsupport.MustGet(t, e.store, id).Status == tracks.StatusCompleted {
				done++
			}
		}
		if done == len(ids) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	e.manager.Stop()
	status := e.manager.Status(context.Background())

	if status.Processed != len(ids) {
		t.Fatalf("expected %d processed, got %d (last error %q)", len(ids), status.Processed, status.LastError)
	}
	if status.TrackStats[tracks.StatusCompleted] != len(ids) {
		t.Fatalf("unexpected stats %v", status.TrackStats)
	}
	if status.Running || status.Workers != 2 {
		t.Fatalf("unexpected running state %+v", status)
	}
	if status.LiveWorkers != 2 {
		t.Fatalf("expected two worker beats within the presence TTL, got %d", status.LiveWorkers)
	}
}

func TestManagerStartRunsPreflight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Encoder.FFmpegBinary = "ffmpeg-missing-for-test"
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, jobs.NewMemory(), nil, nil)
	if err := mgr.Start(context.Background()); err == nil {
		mgr.Stop()
		t.Fatal("expected preflight failure")
	}
}
