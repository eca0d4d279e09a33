package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	StorageRoot string `toml:"storage_root"`
	LogDir      string `toml:"log_dir"`
}

// Storage describes the managed asset directories under Paths.StorageRoot.
type Storage struct {
	AudioDir    string `toml:"audio_dir"`
	ImageDir    string `toml:"image_dir"`
	VideoDir    string `toml:"video_dir"`
	AudioPrefix string `toml:"audio_prefix"`
	ImagePrefix string `toml:"image_prefix"`
	VideoPrefix string `toml:"video_prefix"`
	LockDir     string `toml:"lock_dir"`
}

// Fetch configures the HTTP asset fetcher.
type Fetch struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
	MaxBytes       int64  `toml:"max_bytes"`
}

// Encoder configures the external ffmpeg invocation.
type Encoder struct {
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	MaxEdge         int    `toml:"max_edge"`
	FallbackEnabled bool   `toml:"fallback_enabled"`
}

// Queue selects and configures the work queue backend.
type Queue struct {
	Backend            string `toml:"backend"`
	RedisAddr          string `toml:"redis_addr"`
	RedisPassword      string `toml:"redis_password"`
	RedisDB            int    `toml:"redis_db"`
	RedisKey           string `toml:"redis_key"`
	DequeueWaitSeconds int    `toml:"dequeue_wait_seconds"`
}

// Workflow contains worker pool timing.
type Workflow struct {
	Workers            int `toml:"workers"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Ingest configures batch ingestion.
type Ingest struct {
	BatchSize    int    `toml:"batch_size"`
	BatchPauseMS int    `toml:"batch_pause_ms"`
	Enqueue      bool   `toml:"enqueue"`
	WatchDir     string `toml:"watch_dir"`
}

// Monitor configures the health sweep.
type Monitor struct {
	IntervalSeconds          int      `toml:"interval_seconds"`
	StuckAfterMinutes        int      `toml:"stuck_after_minutes"`
	FailedRetryAfterMinutes  int      `toml:"failed_retry_after_minutes"`
	MaxAttempts              int      `toml:"max_attempts"`
	OrphanDeleteCap          int      `toml:"orphan_delete_cap"`
	OrphanGraceMinutes       int      `toml:"orphan_grace_minutes"`
	BacklogAfterMinutes      int      `toml:"backlog_after_minutes"`
	WorkerPresenceTTLSeconds int      `toml:"worker_presence_ttl_seconds"`
	PermanentFailurePatterns []string `toml:"permanent_failure_patterns"`
	CheckStuck               bool     `toml:"check_stuck"`
	CheckFailed              bool     `toml:"check_failed"`
	CheckMissing             bool     `toml:"check_missing"`
	CheckOrphans             bool     `toml:"check_orphans"`
	CheckBacklog             bool     `toml:"check_backlog"`
}

// Events configures lifecycle event publication.
type Events struct {
	Backend string   `toml:"backend"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// Mirror configures optional publication of finished artifacts to MinIO.
type Mirror struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	UseSSL    bool   `toml:"use_ssl"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	OnComplete     bool   `toml:"on_complete"`
	OnFailure      bool   `toml:"on_failure"`
	OnSweep        bool   `toml:"on_sweep"`
}

// API configures the daemon HTTP API.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Config encapsulates all configuration values for trackline.
//
// Configuration sections by subsystem:
//   - Paths, Storage: database location and the managed asset directories
//   - Fetch, Encoder: asset download and ffmpeg synthesis
//   - Queue, Workflow, Ingest: work distribution and ingestion pacing
//   - Monitor: health sweep thresholds and toggles
//   - Events, Mirror, Notifications, API: downstream integrations
//   - Logging: log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Storage       Storage       `toml:"storage"`
	Fetch         Fetch         `toml:"fetch"`
	Encoder       Encoder       `toml:"encoder"`
	Queue         Queue         `toml:"queue"`
	Workflow      Workflow      `toml:"workflow"`
	Ingest        Ingest        `toml:"ingest"`
	Monitor       Monitor       `toml:"monitor"`
	Events        Events        `toml:"events"`
	Mirror        Mirror        `toml:"mirror"`
	Notifications Notifications `toml:"notifications"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A .env file in the
// working directory is loaded first so environment fallbacks can pick it up.
// The returned config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", false, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("trackline.toml")
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the data, log, lock, and managed storage directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.Storage.LockDir}
	dirs = append(dirs, c.ManagedDirs()...)
	if strings.TrimSpace(c.Ingest.WatchDir) != "" {
		dirs = append(dirs, c.Ingest.WatchDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ManagedDirs returns the absolute audio, image, and video directories.
func (c *Config) ManagedDirs() []string {
	return []string{c.AudioDir(), c.ImageDir(), c.VideoDir()}
}

func (c *Config) AudioDir() string { return c.storageDir(c.Storage.AudioDir) }

func (c *Config) ImageDir() string { return c.storageDir(c.Storage.ImageDir) }

func (c *Config) VideoDir() string { return c.storageDir(c.Storage.VideoDir) }

func (c *Config) storageDir(sub string) string {
	if filepath.IsAbs(sub) {
		return sub
	}
	return filepath.Join(c.Paths.StorageRoot, sub)
}

// TracksDBPath is the SQLite database holding track records.
func (c *Config) TracksDBPath() string {
	return filepath.Join(c.Paths.DataDir, "tracks.db")
}

// JobsDBPath is the SQLite database backing the default work queue.
func (c *Config) JobsDBPath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// FetchTimeout returns the HTTP client timeout for asset downloads.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// EncoderTimeout returns the hard timeout applied to each ffmpeg invocation.
func (c *Config) EncoderTimeout() time.Duration {
	return time.Duration(c.Encoder.TimeoutSeconds) * time.Second
}

// BatchPause returns the cooperative sleep between ingestion batches.
func (c *Config) BatchPause() time.Duration {
	return time.Duration(c.Ingest.BatchPauseMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
