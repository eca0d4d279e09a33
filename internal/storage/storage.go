package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"trackline/internal/config"
	"trackline/internal/contentid"
	"trackline/internal/fetch"
	"trackline/internal/logging"
)

// Kind names one of the managed asset directories.
type Kind string

const (
	KindAudio Kind = "audio"
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Kinds returns every managed kind.
func Kinds() []Kind {
	return []Kind{KindAudio, KindImage, KindVideo}
}

// ErrOutsideManaged is returned by Remove for paths that are not direct children of a managed directory.
var ErrOutsideManaged = errors.New("path is outside managed storage")

const lockRetryDelay = 50 * time.Millisecond

// DedupConflictError reports that another writer placed the file for ContentID
// first. Store resolves it by returning Existing; callers never see it from
// ResolveOrFetch.
type DedupConflictError struct {
	ContentID string
	Existing  string
}

func (e *DedupConflictError) Error() string {
	return fmt.Sprintf("content %s already stored at %s", e.ContentID, e.Existing)
}

// Store is the content-addressed asset store. Files are named
// <prefix>_<content-id>.<ext>, or <prefix>_<40 hex>.<ext> when no ID is known.
type Store struct {
	dirs      map[Kind]string
	prefixes  map[Kind]string
	lockDir   string
	fetcher   fetch.Fetcher
	extractor contentid.Extractor
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Option customizes a Store.
type Option func(*Store)

// WithExtractor replaces the content-ID extractor used when callers pass no ID.
func WithExtractor(extractor contentid.Extractor) Option {
	return func(s *Store) {
		if extractor != nil {
			s.extractor = extractor
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logging.NewComponentLogger(logger, "storage")
	}
}

// New builds a Store over the managed directories in cfg.
func New(cfg *config.Config, fetcher fetch.Fetcher, opts ...Option) (*Store, error) {
	s := &Store{
		dirs: map[Kind]string{
			KindAudio: cfg.AudioDir(),
			KindImage: cfg.ImageDir(),
			KindVideo: cfg.VideoDir(),
		},
		prefixes: map[Kind]string{
			KindAudio: cfg.Storage.AudioPrefix,
			KindImage: cfg.Storage.ImagePrefix,
			KindVideo: cfg.Storage.VideoPrefix,
		},
		lockDir:   cfg.Storage.LockDir,
		fetcher:   fetcher,
		extractor: contentid.Default(),
		logger:    logging.NewComponentLogger(nil, "storage"),
		locks:     make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, dir := range append(cfg.ManagedDirs(), s.lockDir) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory %q: %w", dir, err)
		}
	}
	return s, nil
}

// Dir returns the directory for kind.
func (s *Store) Dir(kind Kind) string { return s.dirs[kind] }

// ContentID runs the configured extractor on rawURL.
func (s *Store) ContentID(rawURL string) (string, bool) {
	return s.extractor.Extract(rawURL)
}

// VideoContentID names the video synthesized from an audio/image pair. When
// both URLs carry the same ID the video shares it; otherwise the name is a
// UUID derived from the audio ID and the image ID (or the image URL when it
// has none), so a different cover never reuses another cover's video. An
// audio URL without an ID yields "".
func (s *Store) VideoContentID(audioURL, imageURL string) string {
	audioID, ok := s.ContentID(audioURL)
	if !ok || audioID == "" {
		return ""
	}
	imageKey, ok := s.ContentID(imageURL)
	if ok && imageKey == audioID {
		return audioID
	}
	if !ok || imageKey == "" {
		imageKey = strings.TrimSpace(imageURL)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(audioID+"\n"+imageKey)).String()
}

// ResolveOrFetch returns the local path for the asset at rawURL. When the
// content ID (passed in or extracted from the URL) already has a file, no
// network request is made. Otherwise the asset is downloaded once per ID,
// serialized across goroutines and processes by a per-ID lock.
func (s *Store) ResolveOrFetch(ctx context.Context, kind Kind, rawURL, contentID string) (string, error) {
	if _, ok := s.dirs[kind]; !ok {
		return "", fmt.Errorf("unknown asset kind %q", kind)
	}
	if contentID == "" {
		contentID, _ = s.extractor.Extract(rawURL)
	}
	if contentID == "" {
		return s.download(ctx, kind, rawURL, "")
	}

	if path, ok, err := s.Lookup(kind, contentID); err != nil {
		return "", err
	} else if ok {
		s.logger.Debug("reusing stored asset",
			logging.String("kind", string(kind)),
			logging.String(logging.FieldContentID, contentID),
			logging.String("path", path),
		)
		return path, nil
	}

	unlock, err := s.lock(ctx, kind, contentID)
	if err != nil {
		return "", err
	}
	defer unlock()

	// Another worker may have finished the download while we waited.
	if path, ok, err := s.Lookup(kind, contentID); err != nil {
		return "", err
	} else if ok {
		return path, nil
	}

	path, err := s.download(ctx, kind, rawURL, contentID)
	var conflict *DedupConflictError
	if errors.As(err, &conflict) {
		s.logger.Debug("dedup conflict resolved",
			logging.String(logging.FieldContentID, contentID),
			logging.String("path", conflict.Existing),
		)
		return conflict.Existing, nil
	}
	return path, err
}

// Lookup scans the kind directory for a non-empty file named for contentID.
func (s *Store) Lookup(kind Kind, contentID string) (string, bool, error) {
	dir := s.dirs[kind]
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("scan %s: %w", dir, err)
	}
	stem := s.stem(kind, contentID)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if name != stem && !strings.HasPrefix(name, stem+".") {
			continue
		}
		path := filepath.Join(dir, name)
		if s.Exists(path) {
			return path, true, nil
		}
	}
	return "", false, nil
}

// PathFor allocates the path an asset of kind with contentID and ext would be
// stored at. An empty contentID yields a random name.
func (s *Store) PathFor(kind Kind, contentID, ext string) (string, error) {
	if contentID == "" {
		token, err := randomToken()
		if err != nil {
			return "", err
		}
		contentID = token
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(s.dirs[kind], s.stem(kind, contentID)+ext), nil
}

// Exists reports whether path is a non-empty regular file.
func (s *Store) Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

func (s *Store) stem(kind Kind, contentID string) string {
	return s.prefixes[kind] + "_" + contentID
}

func (s *Store) download(ctx context.Context, kind Kind, rawURL, contentID string) (string, error) {
	if s.fetcher == nil {
		return "", errors.New("no fetcher configured")
	}
	asset, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	target, err := s.PathFor(kind, contentID, extensionFor(kind, rawURL, asset.ContentType))
	if err != nil {
		return "", err
	}
	if err := s.writeAtomic(target, asset.Body, contentID); err != nil {
		return "", err
	}
	s.logger.Info("stored asset",
		logging.String("kind", string(kind)),
		logging.String(logging.FieldContentID, contentID),
		logging.String("path", target),
		logging.Int("bytes", len(asset.Body)),
	)
	return target, nil
}

func (s *Store) writeAtomic(target string, body []byte, contentID string) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", target, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", target, err)
	}
	if contentID != "" && s.Exists(target) {
		cleanup()
		return &DedupConflictError{ContentID: contentID, Existing: target}
	}
	if err := os.Rename(tmpPath, target); err != nil {
		cleanup()
		return fmt.Errorf("rename into %s: %w", target, err)
	}
	return nil
}

// lock serializes work on one content ID inside this process and, through a
// lock file, across processes sharing the storage root.
func (s *Store) lock(ctx context.Context, kind Kind, contentID string) (func(), error) {
	key := string(kind) + "_" + contentID

	s.mu.Lock()
	kl, ok := s.locks[key]
	if !ok {
		kl = &keyLock{}
		s.locks[key] = kl
	}
	kl.refs++
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}

	kl.mu.Lock()

	fileLock := flock.New(filepath.Join(s.lockDir, key+".lock"))
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		kl.mu.Unlock()
		release()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("lock content %s: %w", contentID, err)
	}

	return func() {
		_ = fileLock.Unlock()
		kl.mu.Unlock()
		release()
	}, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate file token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
