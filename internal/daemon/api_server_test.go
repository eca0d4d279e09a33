package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"trackline/internal/api"
	"trackline/internal/config"
	"trackline/internal/events"
	"trackline/internal/ingest"
	"trackline/internal/jobs"
	"trackline/internal/logging"
	"trackline/internal/monitor"
	"trackline/internal/storage"
	"trackline/internal/testsupport"
	"trackline/internal/tracks"
	"trackline/internal/workflow"
)

type apiFixture struct {
	daemon *Daemon
	store  *tracks.Store
	queue  *jobs.Memory
	router http.Handler
}

func newAPIFixture(t *testing.T, mutate func(*config.Config)) *apiFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithConfig(func(c *config.Config) {
		if mutate != nil {
			mutate(c)
		}
	}))
	store := testsupport.MustOpenStore(t, cfg)
	queue := jobs.NewMemory()
	assets, err := storage.New(cfg, nil)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	d, err := New(cfg, Components{
		Store:    store,
		Queue:    queue,
		Workflow: workflow.NewManager(cfg, store, queue, nil, nil, workflow.WithoutPreflight()),
		Monitor:  monitor.New(cfg, store, assets, queue),
		Ingest:   ingest.NewService(cfg, store, queue, events.Noop{}, logging.NewNop()),
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &apiFixture{daemon: d, store: store, queue: queue, router: d.api.router()}
}

func (f *apiFixture) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for key, value := range header {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAPIIngestAndGet(t *testing.T) {
	f := newAPIFixture(t, nil)
	body := `{"title":"Song A","audio_url":"https://cdn1.example.test/a.mp3","image_url":"https://cdn1.example.test/a.jpg","tag_string":"Lo-Fi, Jazz","upstream_id":"deezer-1"}`

	w := f.do(t, http.MethodPost, "/api/tracks", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[api.IngestResponse](t, w)
	if !created.Created || !created.Enqueued || created.Track.Status != "pending" {
		t.Fatalf("unexpected ingest response %+v", created)
	}

	w = f.do(t, http.MethodPost, "/api/tracks", body, nil)
	if w.Code != http.StatusOK || !decode[api.IngestResponse](t, w).Skipped {
		t.Fatalf("expected duplicate ingest to be skipped, got %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/tracks/"+itoa(created.Track.ID), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decode[api.TrackResponse](t, w); got.Track.Title != "Song A" {
		t.Fatalf("unexpected track %+v", got.Track)
	}

	w = f.do(t, http.MethodGet, "/api/tracks?status=pending", "", nil)
	if list := decode[api.TrackListResponse](t, w); len(list.Tracks) != 1 {
		t.Fatalf("expected one pending track, got %+v", list)
	}
	if w := f.do(t, http.MethodGet, "/api/tracks?status=bogus", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/tracks/999", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAPIIngestRejectsBadBody(t *testing.T) {
	f := newAPIFixture(t, nil)
	if w := f.do(t, http.MethodPost, "/api/tracks", `{"title":`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/tracks", `{"unknown":1}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", w.Code)
	}
}

func TestAPIRetry(t *testing.T) {
	f := newAPIFixture(t, nil)
	track := testsupport.NewTrack(t, f.store, "Flaky", "flaky-1")
	if ok, err := f.store.Claim(context.Background(), track.ID); err != nil || !ok {
		t.Fatalf("Claim: %v %v", ok, err)
	}
	track = testsupport.MustGet(t, f.store, track.ID)
	track.SetFailed("transient failure: audio: download: HTTP 503")
	testsupport.MustUpdate(t, f.store, track)

	w := f.do(t, http.MethodPost, "/api/tracks/"+itoa(track.ID)+"/retry", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := testsupport.MustGet(t, f.store, track.ID); got.Status != tracks.StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
	if depth, _ := f.queue.Depth(context.Background()); depth != 1 {
		t.Fatalf("expected retried track enqueued, depth %d", depth)
	}

	if w := f.do(t, http.MethodPost, "/api/tracks/"+itoa(track.ID)+"/retry", "", nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for non-failed track, got %d", w.Code)
	}
}

func TestAPISweepDryRun(t *testing.T) {
	f := newAPIFixture(t, nil)
	testsupport.NewTrack(t, f.store, "Waiting", "waiting-1")

	w := f.do(t, http.MethodPost, "/api/sweep", `{"dryRun":true}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	report := decode[api.SweepReport](t, w)
	if !report.DryRun || report.Categories["backlog"].Found != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if depth, _ := f.queue.Depth(context.Background()); depth != 0 {
		t.Fatal("dry run must not enqueue")
	}
}

func TestAPIHealth(t *testing.T) {
	f := newAPIFixture(t, nil)
	w := f.do(t, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	status := decode[api.DaemonStatus](t, w)
	if status.Running || status.TracksDBPath == "" || len(status.Dependencies) == 0 {
		t.Fatalf("unexpected status %+v", status)
	}
	if w := f.do(t, http.MethodDelete, "/api/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	f := newAPIFixture(t, func(c *config.Config) { c.API.Token = "s3cret" })

	if w := f.do(t, http.MethodGet, "/api/tracks", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/tracks", "", map[string]string{"Authorization": "Bearer wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/tracks", "", map[string]string{"Authorization": "Bearer s3cret"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
