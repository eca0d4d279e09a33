package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizeQueue()
	c.normalizeEvents()
	c.normalizeMirror()
	c.normalizeAPI()
	c.normalizeNotifications()
	c.normalizeMonitor()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.StorageRoot, err = expandPath(c.Paths.StorageRoot); err != nil {
		return fmt.Errorf("paths.storage_root: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Storage.LockDir) == "" {
		c.Storage.LockDir = filepath.Join(c.Paths.DataDir, "locks")
	}
	if c.Storage.LockDir, err = expandPath(c.Storage.LockDir); err != nil {
		return fmt.Errorf("storage.lock_dir: %w", err)
	}
	if strings.TrimSpace(c.Ingest.WatchDir) != "" {
		if c.Ingest.WatchDir, err = expandPath(c.Ingest.WatchDir); err != nil {
			return fmt.Errorf("ingest.watch_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeStorage() {
	defaults := Default().Storage
	trimOr := func(value *string, fallback string) {
		*value = strings.TrimSpace(*value)
		if *value == "" {
			*value = fallback
		}
	}
	trimOr(&c.Storage.AudioDir, defaults.AudioDir)
	trimOr(&c.Storage.ImageDir, defaults.ImageDir)
	trimOr(&c.Storage.VideoDir, defaults.VideoDir)
	trimOr(&c.Storage.AudioPrefix, defaults.AudioPrefix)
	trimOr(&c.Storage.ImagePrefix, defaults.ImagePrefix)
	trimOr(&c.Storage.VideoPrefix, defaults.VideoPrefix)
}

func (c *Config) normalizeQueue() {
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	if c.Queue.Backend == "" {
		c.Queue.Backend = "sqlite"
	}
	if value, ok := os.LookupEnv("TRACKLINE_REDIS_ADDR"); ok && strings.TrimSpace(value) != "" {
		c.Queue.RedisAddr = strings.TrimSpace(value)
	}
	if c.Queue.RedisPassword == "" {
		if value, ok := os.LookupEnv("TRACKLINE_REDIS_PASSWORD"); ok {
			c.Queue.RedisPassword = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Queue.RedisKey) == "" {
		c.Queue.RedisKey = defaultRedisKey
	}
}

func (c *Config) normalizeEvents() {
	c.Events.Backend = strings.ToLower(strings.TrimSpace(c.Events.Backend))
	if c.Events.Backend == "" {
		c.Events.Backend = "log"
	}
	if len(c.Events.Brokers) == 0 {
		if value, ok := os.LookupEnv("TRACKLINE_KAFKA_BROKERS"); ok {
			c.Events.Brokers = splitList(value)
		}
	}
	if strings.TrimSpace(c.Events.Topic) == "" {
		c.Events.Topic = defaultEventsTopic
	}
}

func (c *Config) normalizeMirror() {
	if c.Mirror.AccessKey == "" {
		if value, ok := os.LookupEnv("MINIO_ACCESS_KEY"); ok {
			c.Mirror.AccessKey = strings.TrimSpace(value)
		}
	}
	if c.Mirror.SecretKey == "" {
		if value, ok := os.LookupEnv("MINIO_SECRET_KEY"); ok {
			c.Mirror.SecretKey = strings.TrimSpace(value)
		}
	}
	c.Mirror.Endpoint = strings.TrimSpace(c.Mirror.Endpoint)
	c.Mirror.Bucket = strings.TrimSpace(c.Mirror.Bucket)
}

func (c *Config) normalizeAPI() {
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("TRACKLINE_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.API.Bind) == "" {
		c.API.Bind = defaultAPIBind
	}
}

func (c *Config) normalizeNotifications() {
	if strings.TrimSpace(c.Notifications.NtfyTopic) == "" {
		if value, ok := os.LookupEnv("TRACKLINE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeMonitor() {
	patterns := make([]string, 0, len(c.Monitor.PermanentFailurePatterns))
	for _, pattern := range c.Monitor.PermanentFailurePatterns {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern != "" {
			patterns = append(patterns, pattern)
		}
	}
	c.Monitor.PermanentFailurePatterns = patterns
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 50
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
