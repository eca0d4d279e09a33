package tracks

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a track record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Progress checkpoints recorded as the worker advances.
const (
	ProgressStart    = 0
	ProgressAudio    = 33
	ProgressImage    = 66
	ProgressVideo    = 90
	ProgressComplete = 100
)

// Stage names recorded in ProgressStage.
const (
	StageQueued    = "queued"
	StageClaimed   = "claimed"
	StageValidate  = "validate"
	StageAudio     = "audio"
	StageImage     = "image"
	StageVideo     = "video"
	StageTags      = "tags"
	StageCompleted = "completed"
	StageReset     = "reset"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus attempts to map a string into a known status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Track is one audio+image pair and the video synthesized from it.
type Track struct {
	ID             int64
	UpstreamID     string
	Title          string
	AudioSourceURL string
	ImageSourceURL string
	AudioPath      string
	ImagePath      string
	VideoPath      string
	TagString      string
	Tags           []string
	Status         Status
	Progress       int
	ProgressStage  string
	ErrorMessage   string
	Attempts       int
	LastHeartbeat  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DisplayTitle falls back to the upstream ID or surrogate ID when no title was supplied.
func (t *Track) DisplayTitle() string {
	if t == nil {
		return ""
	}
	if title := strings.TrimSpace(t.Title); title != "" {
		return title
	}
	if t.UpstreamID != "" {
		return t.UpstreamID
	}
	return fmt.Sprintf("track %d", t.ID)
}

// AssetPaths returns the non-empty local asset paths.
func (t *Track) AssetPaths() []string {
	paths := make([]string, 0, 3)
	for _, p := range []string{t.AudioPath, t.ImagePath, t.VideoPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// SetProgress records a stage checkpoint. Within one attempt progress never
// moves backwards; a lower value only updates the stage label.
func (t *Track) SetProgress(stage string, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > ProgressComplete {
		percent = ProgressComplete
	}
	t.ProgressStage = stage
	if percent > t.Progress {
		t.Progress = percent
	}
}

// SetFailed marks the track failed. Progress is left where the failure happened.
func (t *Track) SetFailed(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "processing failed"
	}
	t.Status = StatusFailed
	t.ErrorMessage = message
	t.LastHeartbeat = nil
}

// SetCompleted marks the track completed once every asset is present.
func (t *Track) SetCompleted() error {
	if t.AudioPath == "" || t.ImagePath == "" || t.VideoPath == "" {
		return errors.New("completed track requires audio, image, and video paths")
	}
	t.Status = StatusCompleted
	t.Progress = ProgressComplete
	t.ProgressStage = StageCompleted
	t.ErrorMessage = ""
	t.LastHeartbeat = nil
	return nil
}

// ResetToPending returns the track to the start of the pipeline.
func (t *Track) ResetToPending(clearPaths bool) {
	t.Status = StatusPending
	t.Progress = ProgressStart
	t.ProgressStage = StageReset
	t.ErrorMessage = ""
	t.LastHeartbeat = nil
	if clearPaths {
		t.AudioPath = ""
		t.ImagePath = ""
		t.VideoPath = ""
	}
}

// Validate checks the record-level invariants.
func (t *Track) Validate() error {
	if t == nil {
		return errors.New("track is nil")
	}
	if _, ok := ParseStatus(string(t.Status)); !ok {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	if t.Progress < 0 || t.Progress > ProgressComplete {
		return fmt.Errorf("progress %d out of range", t.Progress)
	}
	switch t.Status {
	case StatusCompleted:
		if t.AudioPath == "" || t.ImagePath == "" || t.VideoPath == "" {
			return errors.New("completed track is missing asset paths")
		}
		if t.Progress != ProgressComplete {
			return fmt.Errorf("completed track has progress %d", t.Progress)
		}
	case StatusFailed:
		if strings.TrimSpace(t.ErrorMessage) == "" {
			return errors.New("failed track has no error message")
		}
	}
	return nil
}

// IsTerminal reports whether the track reached completed or failed.
func (t *Track) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// HealthSummary describes aggregated track counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// DatabaseHealth captures diagnostic information about the track database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	MissingColumns   []string
	IntegrityCheck   bool
	TotalTracks      int
	Error            string
}
