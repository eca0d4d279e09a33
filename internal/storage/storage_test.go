package storage_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"trackline/internal/config"
	"trackline/internal/contentid"
	"trackline/internal/fetch"
	"trackline/internal/storage"
	"trackline/internal/testsupport"
)

const songID = "11111111-1111-1111-1111-111111111111"

func newStore(t *testing.T, opts ...storage.Option) (*storage.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := storage.New(cfg, fetch.New(2*time.Second), opts...)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	return store, cfg
}

func TestResolveOrFetchReusesContentID(t *testing.T) {
	origin := testsupport.NewOrigin(t)
	first := origin.Serve("/a/"+songID+".mp3", []byte("audio-bytes"))
	second := origin.Serve("/mirror/"+songID+".mp3", []byte("other-bytes"))
	store, cfg := newStore(t)
	ctx := context.Background()

	path1, err := store.ResolveOrFetch(ctx, storage.KindAudio, first, "")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if want := filepath.Join(cfg.AudioDir(), "audio_"+songID+".mp3"); path1 != want {
		t.Fatalf("unexpected path %q, want %q", path1, want)
	}
	path2, err := store.ResolveOrFetch(ctx, storage.KindAudio, second, "")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if path1 != path2 {
		t.Fatalf("expected identical paths, got %q and %q", path1, path2)
	}
	if origin.TotalHits() != 1 {
		t.Fatalf("expected exactly one download, got %d", origin.TotalHits())
	}
	data, _ := os.ReadFile(path1)
	if string(data) != "audio-bytes" {
		t.Fatalf("unexpected stored content %q", data)
	}
}

func TestResolveOrFetchUsesExistingFileWithoutNetwork(t *testing.T) {
	store, cfg := newStore(t)
	existing := filepath.Join(cfg.ImageDir(), "image_"+songID+".png")
	testsupport.WriteFile(t, existing, 10)

	path, err := store.ResolveOrFetch(context.Background(), storage.KindImage, "http://127.0.0.1:1/"+songID+".jpg", "")
	if err != nil {
		t.Fatalf("ResolveOrFetch: %v", err)
	}
	if path != existing {
		t.Fatalf("expected existing file %q, got %q", existing, path)
	}
}

func TestResolveOrFetchIgnoresEmptyFile(t *testing.T) {
	origin := testsupport.NewOrigin(t)
	url := origin.Serve("/"+songID+".mp3", []byte("fresh"))
	store, cfg := newStore(t)
	empty := filepath.Join(cfg.AudioDir(), "audio_"+songID+".mp3")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write empty: %v", err)
	}

	path, err := store.ResolveOrFetch(context.Background(), storage.KindAudio, url, "")
	if err != nil {
		t.Fatalf("ResolveOrFetch: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "fresh" || origin.TotalHits() != 1 {
		t.Fatalf("expected re-download over empty file, got %q hits=%d", data, origin.TotalHits())
	}
}

func TestResolveOrFetchConcurrentSingleDownload(t *testing.T) {
	origin := testsupport.NewOrigin(t)
	url := origin.Serve("/"+songID+".jpg", []byte("jpeg"))
	store, _ := newStore(t)

	const workers = 8
	paths := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paths[i], errs[i] = store.ResolveOrFetch(context.Background(), storage.KindImage, url, "")
		}()
	}
	wg.Wait()

	for i := range workers {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if paths[i] != paths[0] {
			t.Fatalf("worker %d got %q, want %q", i, paths[i], paths[0])
		}
	}
	if hits := origin.TotalHits(); hits != 1 {
		t.Fatalf("expected one download under concurrency, got %d", hits)
	}
}

func TestResolveOrFetchWithoutContentIDUsesRandomName(t *testing.T) {
	origin := testsupport.NewOrigin(t)
	url := origin.Serve("/cover", []byte("\x89PNG\r\n\x1a\nrest"))
	store, _ := newStore(t)

	path1, err := store.ResolveOrFetch(context.Background(), storage.KindImage, url, "")
	if err != nil {
		t.Fatalf("ResolveOrFetch: %v", err)
	}
	path2, err := store.ResolveOrFetch(context.Background(), storage.KindImage, url, "")
	if err != nil {
		t.Fatalf("ResolveOrFetch: %v", err)
	}
	pattern := regexp.MustCompile(`^image_[0-9a-f]{40}\.png$`)
	for _, p := range []string{path1, path2} {
		if !pattern.MatchString(filepath.Base(p)) {
			t.Fatalf("unexpected random filename %q", filepath.Base(p))
		}
	}
	if path1 == path2 || origin.TotalHits() != 2 {
		t.Fatalf("expected two distinct downloads, got %q %q hits=%d", path1, path2, origin.TotalHits())
	}
}

func TestResolveOrFetchExplicitContentIDAndExtractor(t *testing.T) {
	origin := testsupport.NewOrigin(t)
	url := origin.Serve("/tracks/77/audio", []byte("audio"))
	extractor, err := contentid.NewRegexExtractor(`/tracks/(\d+)/`)
	if err != nil {
		t.Fatalf("NewRegexExtractor: %v", err)
	}
	store, _ := newStore(t, storage.WithExtractor(extractor))

	path, err := store.ResolveOrFetch(context.Background(), storage.KindAudio, url, "")
	if err != nil {
		t.Fatalf("ResolveOrFetch: %v", err)
	}
	if filepath.Base(path) != "audio_77.mp3" {
		t.Fatalf("unexpected name %q", filepath.Base(path))
	}

	path, err = store.ResolveOrFetch(context.Background(), storage.KindAudio, url, "explicit")
	if err != nil {
		t.Fatalf("ResolveOrFetch explicit: %v", err)
	}
	if filepath.Base(path) != "audio_explicit.mp3" {
		t.Fatalf("unexpected name %q", filepath.Base(path))
	}
}

func TestResolveOrFetchPropagatesDownloadError(t *testing.T) {
	origin := testsupport.NewOrigin(t)
	url := origin.Fail("/"+songID+".mp3", http.StatusNotFound)
	store, cfg := newStore(t)

	_, err := store.ResolveOrFetch(context.Background(), storage.KindAudio, url, "")
	var dlErr *fetch.DownloadError
	if !errors.As(err, &dlErr) || dlErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 DownloadError, got %v", err)
	}
	entries, _ := os.ReadDir(cfg.AudioDir())
	if len(entries) != 0 {
		t.Fatalf("expected no files after failed download, found %d", len(entries))
	}
}

func TestListManagedAndRemove(t *testing.T) {
	store, cfg := newStore(t)
	kept := filepath.Join(cfg.VideoDir(), "video_a.mp4")
	testsupport.WriteFile(t, kept, 4)
	testsupport.WriteFile(t, filepath.Join(cfg.VideoDir(), ".partial-123"), 4)

	files, err := store.ListManaged(storage.KindVideo)
	if err != nil {
		t.Fatalf("ListManaged: %v", err)
	}
	if len(files) != 1 || files[0].Path != kept || files[0].Size != 4 {
		t.Fatalf("unexpected managed files %+v", files)
	}

	outside := filepath.Join(testsupport.BaseDir(cfg), "outside.txt")
	testsupport.WriteFile(t, outside, 1)
	if err := store.Remove(outside); !errors.Is(err, storage.ErrOutsideManaged) {
		t.Fatalf("expected ErrOutsideManaged, got %v", err)
	}
	if err := store.Remove(kept); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if store.Exists(kept) {
		t.Fatal("expected file removed")
	}
}

func TestPathFor(t *testing.T) {
	store, cfg := newStore(t)
	path, err := store.PathFor(storage.KindVideo, songID, "mp4")
	if err != nil {
		t.Fatalf("PathFor: %v", err)
	}
	if path != filepath.Join(cfg.VideoDir(), "video_"+songID+".mp4") {
		t.Fatalf("unexpected video path %q", path)
	}
}

func TestVideoContentID(t *testing.T) {
	store, _ := newStore(t)
	const coverID = "22222222-2222-2222-2222-222222222222"
	audio := "https://cdn1.example.test/" + songID + ".mp3"

	if got := store.VideoContentID(audio, "https://cdn1.example.test/"+songID+".jpg"); got != songID {
		t.Fatalf("matching pair should share the audio id, got %q", got)
	}
	other := store.VideoContentID(audio, "https://cdn1.example.test/"+coverID+".jpg")
	if other == songID || len(other) != 36 {
		t.Fatalf("different cover needs its own 36-char id, got %q", other)
	}
	if again := store.VideoContentID(audio, "https://mirror.example.test/"+coverID+".jpg"); again != other {
		t.Fatalf("same pair should map to the same id, got %q and %q", other, again)
	}
	plainA := store.VideoContentID(audio, "https://cdn1.example.test/cover-a.jpg")
	plainB := store.VideoContentID(audio, "https://cdn1.example.test/cover-b.jpg")
	if plainA == plainB || plainA == songID {
		t.Fatalf("covers without ids should still differ, got %q and %q", plainA, plainB)
	}
	if got := store.VideoContentID("https://cdn1.example.test/a.mp3", "https://cdn1.example.test/"+songID+".jpg"); got != "" {
		t.Fatalf("audio without id should yield no video id, got %q", got)
	}
}

func TestContentIDOfInvertsPathFor(t *testing.T) {
	store, _ := newStore(t)
	path, err := store.PathFor(storage.KindImage, songID, ".jpg")
	if err != nil {
		t.Fatalf("PathFor: %v", err)
	}
	if id, ok := store.ContentIDOf(storage.KindImage, path); !ok || id != songID {
		t.Fatalf("expected %s, got %q ok=%v", songID, id, ok)
	}
	if _, ok := store.ContentIDOf(storage.KindAudio, path); ok {
		t.Fatal("an image name must not parse as audio")
	}
}
