package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Track describes a track record in a transport-friendly format.
type Track struct {
	ID             int64         `json:"id"`
	UpstreamID     string        `json:"upstreamId,omitempty"`
	Title          string        `json:"title"`
	Status         string        `json:"status"`
	Progress       TrackProgress `json:"progress"`
	ErrorMessage   string        `json:"errorMessage,omitempty"`
	Attempts       int           `json:"attempts"`
	AudioSourceURL string        `json:"audioSourceUrl,omitempty"`
	ImageSourceURL string        `json:"imageSourceUrl,omitempty"`
	AudioPath      string        `json:"audioPath,omitempty"`
	ImagePath      string        `json:"imagePath,omitempty"`
	VideoPath      string        `json:"videoPath,omitempty"`
	TagString      string        `json:"tagString,omitempty"`
	Tags           []string      `json:"tags"`
	LastHeartbeat  string        `json:"lastHeartbeat,omitempty"`
	CreatedAt      string        `json:"createdAt,omitempty"`
	UpdatedAt      string        `json:"updatedAt,omitempty"`
}

// TrackProgress captures the stage checkpoint of a track.
type TrackProgress struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
}

// WorkflowStatus summarizes the worker pool.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Workers     int            `json:"workers"`
	LiveWorkers int            `json:"liveWorkers"`
	QueueDepth  int            `json:"queueDepth"`
	Processed   int            `json:"processed"`
	Failed      int            `json:"failed"`
	TrackStats  map[string]int `json:"trackStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastTrack   *Track         `json:"lastTrack,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow dependencies.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	TracksDBPath string             `json:"tracksDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	QueueBackend string             `json:"queueBackend"`
	Workflow     WorkflowStatus     `json:"workflow"`
	LastSweep    *SweepReport       `json:"lastSweep,omitempty"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// TrackListResponse wraps a collection of tracks.
type TrackListResponse struct {
	Tracks []Track `json:"tracks"`
}

// TrackResponse wraps a single track.
type TrackResponse struct {
	Track Track `json:"track"`
}

// TrackStatsResponse provides per-status track counts.
type TrackStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// IngestRequest is one item submitted for ingestion.
type IngestRequest struct {
	Title      string `json:"title"`
	AudioURL   string `json:"audio_url"`
	ImageURL   string `json:"image_url"`
	TagString  string `json:"tag_string"`
	UpstreamID string `json:"upstream_id,omitempty"`
}

// IngestResponse reports what an ingestion did.
type IngestResponse struct {
	Track    Track `json:"track"`
	Created  bool  `json:"created"`
	Skipped  bool  `json:"skipped"`
	Enqueued bool  `json:"enqueued"`
}

// SweepRequest selects sweep checks. Nil fields fall back to the configured
// defaults.
type SweepRequest struct {
	Stuck   *bool `json:"stuck,omitempty"`
	Failed  *bool `json:"failed,omitempty"`
	Missing *bool `json:"missing,omitempty"`
	Orphans *bool `json:"orphans,omitempty"`
	Backlog *bool `json:"backlog,omitempty"`
	DryRun  bool  `json:"dryRun"`
}

// SweepReport is the transport form of a monitor report.
type SweepReport struct {
	StartedAt  string                    `json:"startedAt"`
	DurationMS int64                     `json:"durationMs"`
	DryRun     bool                      `json:"dryRun"`
	Categories map[string]CategoryCounts `json:"categories"`
	Issues     []SweepIssue              `json:"issues"`
}

// CategoryCounts mirrors monitor.CategoryReport.
type CategoryCounts struct {
	Found   int `json:"found"`
	Fixed   int `json:"fixed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// SweepIssue is one detected anomaly.
type SweepIssue struct {
	Category string `json:"category"`
	TrackID  int64  `json:"trackId,omitempty"`
	Path     string `json:"path,omitempty"`
	Action   string `json:"action"`
	Detail   string `json:"detail,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
