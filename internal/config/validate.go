package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateMirror(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StorageRoot) == "" {
		return errors.New("paths.storage_root must be set")
	}
	dirs := c.ManagedDirs()
	seen := make(map[string]string, len(dirs))
	for i, name := range []string{"audio_dir", "image_dir", "video_dir"} {
		if other, ok := seen[dirs[i]]; ok {
			return fmt.Errorf("storage.%s and storage.%s must differ", other, name)
		}
		seen[dirs[i]] = name
	}
	for _, prefix := range []string{c.Storage.AudioPrefix, c.Storage.ImagePrefix, c.Storage.VideoPrefix} {
		if strings.ContainsAny(prefix, `/\_`) {
			return fmt.Errorf("storage prefix %q must not contain path separators or underscores", prefix)
		}
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.TimeoutSeconds <= 0 {
		return errors.New("fetch.timeout_seconds must be positive")
	}
	if c.Fetch.MaxBytes < 0 {
		return errors.New("fetch.max_bytes must be zero (unlimited) or positive")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if strings.TrimSpace(c.Encoder.FFmpegBinary) == "" {
		return errors.New("encoder.ffmpeg_binary must be set")
	}
	if c.Encoder.TimeoutSeconds <= 0 {
		return errors.New("encoder.timeout_seconds must be positive")
	}
	if c.Encoder.MaxEdge < 2 {
		return errors.New("encoder.max_edge must be at least 2")
	}
	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case "sqlite", "memory":
	case "redis":
		if strings.TrimSpace(c.Queue.RedisAddr) == "" {
			return errors.New("queue.redis_addr must be set when queue.backend is redis")
		}
	default:
		return fmt.Errorf("queue.backend %q is not supported (use sqlite, redis, or memory)", c.Queue.Backend)
	}
	if c.Queue.DequeueWaitSeconds <= 0 {
		return errors.New("queue.dequeue_wait_seconds must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.BatchSize <= 0 {
		return errors.New("ingest.batch_size must be positive")
	}
	if c.Ingest.BatchPauseMS < 0 {
		return errors.New("ingest.batch_pause_ms must be zero or positive")
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if c.Monitor.IntervalSeconds <= 0 {
		return errors.New("monitor.interval_seconds must be positive")
	}
	if c.Monitor.StuckAfterMinutes <= 0 {
		return errors.New("monitor.stuck_after_minutes must be positive")
	}
	if c.Monitor.FailedRetryAfterMinutes < 0 {
		return errors.New("monitor.failed_retry_after_minutes must be zero or positive")
	}
	if c.Monitor.MaxAttempts <= 0 {
		return errors.New("monitor.max_attempts must be positive")
	}
	if c.Monitor.OrphanDeleteCap < 0 {
		return errors.New("monitor.orphan_delete_cap must be zero or positive")
	}
	if c.Monitor.OrphanGraceMinutes < 0 {
		return errors.New("monitor.orphan_grace_minutes must be zero or positive")
	}
	if c.Monitor.BacklogAfterMinutes < 0 {
		return errors.New("monitor.backlog_after_minutes must be zero or positive")
	}
	return nil
}

func (c *Config) validateEvents() error {
	switch c.Events.Backend {
	case "log", "none":
	case "kafka":
		if len(c.Events.Brokers) == 0 {
			return errors.New("events.brokers must be set when events.backend is kafka")
		}
	default:
		return fmt.Errorf("events.backend %q is not supported (use log, kafka, or none)", c.Events.Backend)
	}
	return nil
}

func (c *Config) validateMirror() error {
	if !c.Mirror.Enabled {
		return nil
	}
	if c.Mirror.Endpoint == "" {
		return errors.New("mirror.endpoint must be set when mirror.enabled is true")
	}
	if c.Mirror.Bucket == "" {
		return errors.New("mirror.bucket must be set when mirror.enabled is true")
	}
	if c.Mirror.AccessKey == "" || c.Mirror.SecretKey == "" {
		return errors.New("mirror credentials missing; set mirror.access_key/secret_key or MINIO_ACCESS_KEY/MINIO_SECRET_KEY")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}
