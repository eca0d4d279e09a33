package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"trackline/internal/config"
	"trackline/internal/logging"
	"trackline/internal/tracks"
)

// Type names a track lifecycle transition.
type Type string

const (
	TypeIngested  Type = "track.ingested"
	TypeProgress  Type = "track.progress"
	TypeCompleted Type = "track.completed"
	TypeFailed    Type = "track.failed"
	TypeReset     Type = "track.reset"
)

// Event is a snapshot of a track published after it was persisted.
type Event struct {
	ID         string        `json:"id"`
	Type       Type          `json:"type"`
	Source     string        `json:"source"`
	TrackID    int64         `json:"track_id"`
	UpstreamID string        `json:"upstream_id,omitempty"`
	Status     tracks.Status `json:"status"`
	Progress   int           `json:"progress"`
	Stage      string        `json:"stage,omitempty"`
	Message    string        `json:"message,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// FromTrack builds an event of type eventType describing track.
func FromTrack(eventType Type, source string, track *tracks.Track) Event {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
	if track != nil {
		event.TrackID = track.ID
		event.UpstreamID = track.UpstreamID
		event.Status = track.Status
		event.Progress = track.Progress
		event.Stage = track.ProgressStage
		event.Message = track.ErrorMessage
	}
	return event
}

// ForStatus picks the event type matching the track's current status.
func ForStatus(track *tracks.Track) Type {
	switch track.Status {
	case tracks.StatusCompleted:
		return TypeCompleted
	case tracks.StatusFailed:
		return TypeFailed
	case tracks.StatusPending:
		return TypeReset
	default:
		return TypeProgress
	}
}

// NewFromConfig selects the publisher named by events.backend.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Events.Backend)) {
	case "", "none":
		return Noop{}, nil
	case "log":
		return NewLogPublisher(logger), nil
	case "kafka":
		return NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, logger), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// LogPublisher writes each event as a structured debug line.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logging.NewComponentLogger(logger, "events")}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Debug("track event",
		logging.String(logging.FieldEventType, string(event.Type)),
		logging.String("event_id", event.ID),
		logging.TrackID(event.TrackID),
		logging.String("status", string(event.Status)),
		logging.Int("progress", event.Progress),
		logging.String(logging.FieldStage, event.Stage),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Publish sends event and logs, rather than returns, a delivery failure.
// Lifecycle events are advisory; the track record stays authoritative.
func Publish(ctx context.Context, publisher Publisher, logger *slog.Logger, event Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil && logger != nil {
		logging.WarnWithContext(logger, "event publish failed", "event_publish_failed",
			logging.String("event_type", string(event.Type)),
			logging.TrackID(event.TrackID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "downstream consumers miss this transition"),
		)
	}
}
