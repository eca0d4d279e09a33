package config

const (
	defaultConfigPath          = "~/.config/trackline/config.toml"
	defaultDataDir             = "~/.local/share/trackline"
	defaultStorageRoot         = "~/.local/share/trackline/public"
	defaultLogDir              = "~/.local/share/trackline/logs"
	defaultFetchTimeoutSeconds = 60
	defaultUserAgent           = "trackline/0.1"
	defaultFetchMaxBytes       = 512 << 20
	defaultEncoderTimeout      = 600
	defaultMaxEdge             = 700
	defaultRedisKey            = "trackline:jobs"
	defaultEventsTopic         = "trackline.tracks"
	defaultAPIBind             = "127.0.0.1:7490"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			StorageRoot: defaultStorageRoot,
			LogDir:      defaultLogDir,
		},
		Storage: Storage{
			AudioDir:    "audio",
			ImageDir:    "images",
			VideoDir:    "videos",
			AudioPrefix: "audio",
			ImagePrefix: "image",
			VideoPrefix: "video",
		},
		Fetch: Fetch{
			TimeoutSeconds: defaultFetchTimeoutSeconds,
			UserAgent:      defaultUserAgent,
			MaxBytes:       defaultFetchMaxBytes,
		},
		Encoder: Encoder{
			FFmpegBinary:    "ffmpeg",
			TimeoutSeconds:  defaultEncoderTimeout,
			MaxEdge:         defaultMaxEdge,
			FallbackEnabled: true,
		},
		Queue: Queue{
			Backend:            "sqlite",
			RedisAddr:          "127.0.0.1:6379",
			RedisKey:           defaultRedisKey,
			DequeueWaitSeconds: 5,
		},
		Workflow: Workflow{
			Workers:            2,
			HeartbeatInterval:  30,
			ErrorRetryInterval: 10,
		},
		Ingest: Ingest{
			BatchSize:    20,
			BatchPauseMS: 1000,
			Enqueue:      true,
		},
		Monitor: Monitor{
			IntervalSeconds:          300,
			StuckAfterMinutes:        60,
			FailedRetryAfterMinutes:  15,
			MaxAttempts:              5,
			OrphanDeleteCap:          50,
			OrphanGraceMinutes:       30,
			BacklogAfterMinutes:      10,
			WorkerPresenceTTLSeconds: 90,
			PermanentFailurePatterns: []string{"invalid source", "not found"},
			CheckStuck:               true,
			CheckFailed:              true,
			CheckMissing:             true,
			CheckOrphans:             true,
			CheckBacklog:             true,
		},
		Events: Events{
			Backend: "log",
			Topic:   defaultEventsTopic,
		},
		Mirror: Mirror{
			Bucket: "trackline",
			Region: "us-east-1",
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			OnComplete:     true,
			OnFailure:      true,
			OnSweep:        true,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}
