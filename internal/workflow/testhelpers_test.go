package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"trackline/internal/encoder"
	"trackline/internal/fetch"
	"trackline/internal/ingest"
	"trackline/internal/jobs"
	"trackline/internal/logging"
	"trackline/internal/notifications"
	"trackline/internal/storage"
	"trackline/internal/testsupport"
	"trackline/internal/tracks"
	"trackline/internal/workflow"
)

const songID = "11111111-1111-1111-1111-111111111111"

type stubNotifier struct {
	mu        sync.Mutex
	completed []string
	failed    []string
}

func (s *stubNotifier) NotifyTrackCompleted(_ context.Context, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, title)
	return nil
}

func (s *stubNotifier) NotifyTrackFailed(_ context.Context, _ int64, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, title)
	return nil
}

func (s *stubNotifier) NotifySweep(context.Context, notifications.SweepSummary) error { return nil }
func (s *stubNotifier) TestNotification(context.Context) error                        { return nil }

func (s *stubNotifier) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed), len(s.failed)
}

type env struct {
	store    *tracks.Store
	assets   *storage.Store
	queue    *jobs.Memory
	origin   *testsupport.Origin
	runner   *testsupport.FakeRunner
	recorder *testsupport.EventRecorder
	notifier *stubNotifier
	ingest   *ingest.Service
	manager  *workflow.Manager
}

func newEnv(t *testing.T, opts ...workflow.ManagerOption) *env {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	origin := testsupport.NewOrigin(t)
	assets, err := storage.New(cfg, fetch.New(5*time.Second, fetch.WithHTTPClient(origin.Client())))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	queue := jobs.NewMemory()
	t.Cleanup(func() { queue.Close() })

	e := &env{
		store:    store,
		assets:   assets,
		queue:    queue,
		origin:   origin,
		runner:   &testsupport.FakeRunner{},
		recorder: &testsupport.EventRecorder{},
		notifier: &stubNotifier{},
	}
	pipeline := workflow.NewPipeline(workflow.PipelineDeps{
		Store:     store,
		Assets:    assets,
		Encoder:   encoder.New(e.runner, encoder.WithTimeout(5*time.Second)),
		Publisher: e.recorder,
		Notifier:  e.notifier,
		Logger:    logging.NewNop(),
	})
	opts = append([]workflow.ManagerOption{workflow.WithoutPreflight(), workflow.WithWorkers(1)}, opts...)
	e.manager = workflow.NewManager(cfg, store, queue, pipeline, logging.NewNop(), opts...)
	e.ingest = ingest.NewService(cfg, store, queue, e.recorder, logging.NewNop())
	return e
}

// serveSong registers audio and image bodies for songID and returns the
// scenario item pointing at them.
func (e *env) serveSong(upstreamID string) ingest.Item {
	e.origin.Serve("/"+songID+".mp3", []byte("mp3-bytes"))
	e.origin.Serve("/"+songID+".jpg", []byte("jpg-bytes"))
	return ingest.Item{
		Title:      "Song A",
		AudioURL:   "https://cdn1.example.test/" + songID + ".mp3",
		ImageURL:   "https://cdn1.example.test/" + songID + ".jpg",
		TagString:  "Lo-Fi, Jazz",
		UpstreamID: upstreamID,
	}
}

func (e *env) mustIngest(t *testing.T, item ingest.Item) *tracks.Track {
	t.Helper()
	result, err := e.ingest.Ingest(context.Background(), item, true)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !result.Created {
		t.Fatalf("expected track to be created, got %+v", result)
	}
	return result.Track
}

func (e *env) processNext(t *testing.T) error {
	t.Helper()
	handled, err := e.manager.ProcessNext(context.Background())
	if !handled {
		t.Fatalf("expected a job to be handled (err=%v)", err)
	}
	return err
}
