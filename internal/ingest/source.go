package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source yields ingestion items in order. Next returns at most max items
// and io.EOF once the source is exhausted.
type Source interface {
	Next(ctx context.Context, max int) ([]Item, error)
}

// SliceSource serves a fixed list of items.
type SliceSource struct {
	items []Item
	pos   int
}

func NewSliceSource(items ...Item) *SliceSource {
	return &SliceSource{items: items}
}

func (s *SliceSource) Next(ctx context.Context, max int) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}
	if max <= 0 {
		max = len(s.items)
	}
	end := min(s.pos+max, len(s.items))
	batch := s.items[s.pos:end]
	s.pos = end
	return batch, nil
}

// ManifestSource reads items from a JSON array, JSON Lines, or YAML list
// file. The format follows the extension; .json files whose first byte is
// not '[' are read as JSON Lines.
type ManifestSource struct {
	path  string
	inner *SliceSource
}

func NewManifestSource(path string) *ManifestSource {
	return &ManifestSource{path: path}
}

func (m *ManifestSource) Next(ctx context.Context, max int) ([]Item, error) {
	if m.inner == nil {
		items, err := ReadManifest(m.path)
		if err != nil {
			return nil, err
		}
		m.inner = NewSliceSource(items...)
	}
	return m.inner.Next(ctx, max)
}

// ReadManifest parses every item in the manifest at path.
func ReadManifest(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	items, err := ParseManifest(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", filepath.Base(path), err)
	}
	return items, nil
}

// ParseManifest decodes data according to ext.
func ParseManifest(ext string, data []byte) ([]Item, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var items []Item
		if err := yaml.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return items, nil
	case ".jsonl", ".ndjson":
		return parseJSONLines(data)
	default:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 {
			return nil, nil
		}
		if trimmed[0] != '[' {
			return parseJSONLines(trimmed)
		}
		var items []Item
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
}

func parseJSONLines(data []byte) ([]Item, error) {
	var items []Item
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		var item Item
		if err := json.Unmarshal(text, &item); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
