package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ManagedFile is a file found in one of the managed directories.
type ManagedFile struct {
	Kind    Kind
	Path    string
	Size    int64
	ModTime time.Time
}

// ListManaged returns the regular files in the kind directory. Hidden files,
// including in-progress downloads, are skipped.
func (s *Store) ListManaged(kind Kind) ([]ManagedFile, error) {
	dir, ok := s.dirs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown asset kind %q", kind)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	files := make([]ManagedFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, ManagedFile{
			Kind:    kind,
			Path:    filepath.Join(dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return files, nil
}

// Remove deletes a file that lives directly inside a managed directory.
func (s *Store) Remove(path string) error {
	if !s.IsManaged(path) {
		return fmt.Errorf("%w: %s", ErrOutsideManaged, path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// IsManaged reports whether path is a direct child of a managed directory.
func (s *Store) IsManaged(path string) bool {
	if path == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	parent := filepath.Dir(abs)
	for _, dir := range s.dirs {
		if filepath.Clean(dir) == parent {
			return true
		}
	}
	return false
}

// ContentIDOf returns the content ID embedded in the name of a kind file,
// the inverse of PathFor.
func (s *Store) ContentIDOf(kind Kind, path string) (string, bool) {
	prefix, ok := s.prefixes[kind]
	if !ok {
		return "", false
	}
	id, found := strings.CutPrefix(filepath.Base(path), prefix+"_")
	if !found {
		return "", false
	}
	id = strings.TrimSuffix(id, filepath.Ext(id))
	return id, id != ""
}
