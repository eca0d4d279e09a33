package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"trackline/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "trackline")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Storage.LockDir != filepath.Join(wantData, "locks") {
		t.Fatalf("unexpected lock dir: %q", cfg.Storage.LockDir)
	}
	if cfg.AudioDir() != filepath.Join(wantData, "public", "audio") {
		t.Fatalf("unexpected audio dir: %q", cfg.AudioDir())
	}
	if cfg.TracksDBPath() != filepath.Join(wantData, "tracks.db") {
		t.Fatalf("unexpected tracks db path: %q", cfg.TracksDBPath())
	}
	if cfg.FetchTimeout().Seconds() != 60 {
		t.Fatalf("expected 60s fetch timeout, got %s", cfg.FetchTimeout())
	}
	if cfg.Queue.Backend != "sqlite" {
		t.Fatalf("expected sqlite queue backend, got %q", cfg.Queue.Backend)
	}
	if cfg.Mirror.Enabled {
		t.Fatal("expected mirror disabled by default")
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	configPath := filepath.Join(dir, "custom.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
storage_root = "` + filepath.Join(dir, "public") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[storage]
video_dir = "clips"

[queue]
backend = "Redis"
redis_addr = "redis:6379"

[monitor]
permanent_failure_patterns = [" Invalid Source ", "", "gone"]

[logging]
format = "JSON"
level = " DEBUG "
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.VideoDir() != filepath.Join(dir, "public", "clips") {
		t.Fatalf("unexpected video dir: %q", cfg.VideoDir())
	}
	if cfg.Storage.AudioDir != "audio" {
		t.Fatalf("expected default audio dir to survive partial section, got %q", cfg.Storage.AudioDir)
	}
	if cfg.Queue.Backend != "redis" {
		t.Fatalf("expected normalized queue backend, got %q", cfg.Queue.Backend)
	}
	if got := strings.Join(cfg.Monitor.PermanentFailurePatterns, "|"); got != "invalid source|gone" {
		t.Fatalf("unexpected patterns: %q", got)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestEnvFallbacksFillMissingSecrets(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TRACKLINE_API_TOKEN", "env-token")
	t.Setenv("MINIO_ACCESS_KEY", "env-access")
	t.Setenv("MINIO_SECRET_KEY", "env-secret")
	t.Setenv("TRACKLINE_KAFKA_BROKERS", "k1:9092, k2:9092,")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
[api]
token = "file-token"

[mirror]
enabled = true
endpoint = "minio:9000"

[events]
backend = "kafka"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.Token != "file-token" {
		t.Fatalf("expected file token to win, got %q", cfg.API.Token)
	}
	if cfg.Mirror.AccessKey != "env-access" || cfg.Mirror.SecretKey != "env-secret" {
		t.Fatalf("expected mirror credentials from env, got %+v", cfg.Mirror)
	}
	if len(cfg.Events.Brokers) != 2 || cfg.Events.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.Events.Brokers)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "trackline") {
		t.Fatalf("expected data dir to contain trackline, got %q", cfg.Paths.DataDir)
	}
	if cfg.Monitor.MaxAttempts != config.Default().Monitor.MaxAttempts {
		t.Fatalf("sample max_attempts %d drifted from default", cfg.Monitor.MaxAttempts)
	}
	if cfg.Encoder.MaxEdge != 700 {
		t.Fatalf("expected max_edge 700, got %d", cfg.Encoder.MaxEdge)
	}
}

func TestEnsureDirectoriesCreatesManagedDirs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.StorageRoot = filepath.Join(base, "public")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Storage.LockDir = filepath.Join(base, "locks")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range append(cfg.ManagedDirs(), cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Storage.LockDir) {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"fetch timeout", func(c *config.Config) { c.Fetch.TimeoutSeconds = 0 }},
		{"encoder timeout", func(c *config.Config) { c.Encoder.TimeoutSeconds = -1 }},
		{"max edge", func(c *config.Config) { c.Encoder.MaxEdge = 1 }},
		{"queue backend", func(c *config.Config) { c.Queue.Backend = "rabbit" }},
		{"redis addr", func(c *config.Config) { c.Queue.Backend = "redis"; c.Queue.RedisAddr = "" }},
		{"workers", func(c *config.Config) { c.Workflow.Workers = 0 }},
		{"heartbeat", func(c *config.Config) { c.Workflow.HeartbeatInterval = 0 }},
		{"batch size", func(c *config.Config) { c.Ingest.BatchSize = 0 }},
		{"max attempts", func(c *config.Config) { c.Monitor.MaxAttempts = 0 }},
		{"orphan cap", func(c *config.Config) { c.Monitor.OrphanDeleteCap = -1 }},
		{"kafka brokers", func(c *config.Config) { c.Events.Backend = "kafka" }},
		{"mirror endpoint", func(c *config.Config) { c.Mirror.Enabled = true }},
		{"shared dirs", func(c *config.Config) { c.Storage.ImageDir = c.Storage.AudioDir }},
		{"prefix separator", func(c *config.Config) { c.Storage.AudioPrefix = "a/b" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
