package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"trackline/internal/logging"
)

const (
	processedDir = "processed"
	rejectedDir  = "rejected"
	settleDelay  = 250 * time.Millisecond
)

var manifestExts = map[string]struct{}{
	".json": {}, ".jsonl": {}, ".ndjson": {}, ".yaml": {}, ".yml": {},
}

// Watcher ingests manifest files dropped into a directory. A file is picked
// up once it has stopped changing, then moved to processed/ or rejected/.
type Watcher struct {
	dir     string
	service *Service
	enqueue bool
	logger  *slog.Logger
}

func NewWatcher(dir string, service *Service, enqueue bool, logger *slog.Logger) *Watcher {
	return &Watcher{
		dir:     dir,
		service: service,
		enqueue: enqueue,
		logger:  logging.NewComponentLogger(logger, "ingest-watch"),
	}
}

// Run watches until ctx is cancelled. Manifests already present at start
// are ingested first.
func (w *Watcher) Run(ctx context.Context) error {
	for _, sub := range []string{processedDir, rejectedDir} {
		if err := os.MkdirAll(filepath.Join(w.dir, sub), 0o755); err != nil {
			return fmt.Errorf("create %s dir: %w", sub, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	pending := make(map[string]time.Time)
	if entries, err := os.ReadDir(w.dir); err == nil {
		now := time.Now()
		for _, entry := range entries {
			if !entry.IsDir() && isManifest(entry.Name()) {
				pending[filepath.Join(w.dir, entry.Name())] = now
			}
		}
	}

	ticker := time.NewTicker(settleDelay / 2)
	defer ticker.Stop()
	w.logger.Info("watching for manifests", logging.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && isManifest(event.Name) {
				pending[event.Name] = time.Now()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "watcher error", "ingest_watch_error", logging.Error(err))
		case <-ticker.C:
			now := time.Now()
			for path, touched := range pending {
				if now.Sub(touched) < settleDelay {
					continue
				}
				delete(pending, path)
				w.handle(ctx, path)
			}
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	summary, err := w.service.IngestAll(ctx, NewManifestSource(path), w.enqueue)
	dest := processedDir
	if err != nil {
		dest = rejectedDir
		logging.WarnWithContext(w.logger, "manifest rejected", "ingest_manifest_rejected",
			logging.String("file", filepath.Base(path)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the manifest and drop it in again"),
		)
	} else {
		w.logger.Info("manifest ingested",
			logging.String("file", filepath.Base(path)),
			logging.Int("created", summary.Created),
			logging.Int("skipped", summary.Skipped),
			logging.Int("failed", summary.Failed),
		)
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	target := filepath.Join(w.dir, dest, filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		logging.WarnWithContext(w.logger, "move manifest failed", "ingest_manifest_move_failed",
			logging.String("file", path),
			logging.Error(err),
		)
	}
}

func isManifest(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	_, ok := manifestExts[strings.ToLower(filepath.Ext(base))]
	return ok
}
