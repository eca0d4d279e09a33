package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trackline/internal/config"
	"trackline/internal/logging"
	"trackline/internal/services"
)

func TestNewFromConfigCreatesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "trackline.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerPromotesComponentAndTrack(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "worker").Info("stage completed",
		logging.TrackID(12),
		logging.String("stage", "audio"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO worker [track 12]: stage completed") {
		t.Fatalf("unexpected console header: %q", line)
	}
	if !strings.Contains(line, "stage=audio") {
		t.Fatalf("expected stage attribute, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", line)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithTrackID(context.Background(), 7)
	ctx = services.WithStage(ctx, "video")
	ctx = services.WithRequestID(ctx, "req-1")
	logging.WithContext(ctx, logger).Info("synthesized")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &payload); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, content)
	}
	if payload["track_id"] != float64(7) {
		t.Fatalf("expected track_id 7, got %v", payload["track_id"])
	}
	if payload["stage"] != "video" || payload["correlation_id"] != "req-1" {
		t.Fatalf("missing context fields: %v", payload)
	}
	if payload["level"] != "info" {
		t.Fatalf("expected lower-case level, got %v", payload["level"])
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "mirror upload failed", "mirror_failed",
		logging.String(logging.FieldImpact, "artifact not mirrored"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, fragment := range []string{`"event_type":"mirror_failed"`, `"error_hint"`, `"impact":"artifact not mirrored"`} {
		if !strings.Contains(string(content), fragment) {
			t.Fatalf("expected %s in %q", fragment, content)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
