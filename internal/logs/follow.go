package logs

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pollInterval backs up fsnotify on filesystems that drop write events.
const pollInterval = 2 * time.Second

// Follow emits lines appended to path after offset until ctx is cancelled.
// It returns nil on cancellation.
func Follow(ctx context.Context, path string, offset int64, emit func(string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	drain := func() error {
		lines, next, err := ReadFrom(path, offset)
		if err != nil {
			return err
		}
		offset = next
		for _, line := range lines {
			emit(line)
		}
		return nil
	}
	if err := drain(); err != nil {
		return err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				offset = 0
				continue
			}
			if err := drain(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch log: %w", err)
		case <-ticker.C:
			if err := drain(); err != nil {
				return err
			}
		}
	}
}
