package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trackline/internal/config"
)

const userAgent = "trackline/0.1"

// SweepSummary is the notification view of a monitor sweep.
type SweepSummary struct {
	Found    int
	Fixed    int
	Skipped  int
	Errors   int
	Duration time.Duration
}

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyTrackCompleted(ctx context.Context, title, videoPath string) error
	NotifyTrackFailed(ctx context.Context, trackID int64, title, message string) error
	NotifySweep(ctx context.Context, summary SweepSummary) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		onComplete: cfg.Notifications.OnComplete,
		onFailure:  cfg.Notifications.OnFailure,
		onSweep:    cfg.Notifications.OnSweep,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	onComplete bool
	onFailure  bool
	onSweep    bool
}

func (n *ntfyService) NotifyTrackCompleted(ctx context.Context, title, videoPath string) error {
	if !n.onComplete {
		return nil
	}
	message := fmt.Sprintf("Video ready: %s", strings.TrimSpace(title))
	if videoPath = strings.TrimSpace(videoPath); videoPath != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, videoPath)
	}
	return n.send(ctx, payload{
		title:   "trackline - Complete",
		message: message,
		tags:    []string{"trackline", "track", "completed"},
	})
}

func (n *ntfyService) NotifyTrackFailed(ctx context.Context, trackID int64, title, message string) error {
	if !n.onFailure {
		return nil
	}
	label := strings.TrimSpace(title)
	if label == "" {
		label = fmt.Sprintf("track #%d", trackID)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = "unknown error"
	}
	return n.send(ctx, payload{
		title:    "trackline - Failed",
		message:  fmt.Sprintf("Processing failed for %s: %s", label, message),
		tags:     []string{"trackline", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) NotifySweep(ctx context.Context, summary SweepSummary) error {
	if !n.onSweep || summary.Found == 0 {
		return nil
	}
	message := fmt.Sprintf("Health sweep: %d issues found, %d fixed, %d skipped in %s",
		summary.Found, summary.Fixed, summary.Skipped, summary.Duration.Round(time.Millisecond))
	priority := ""
	if summary.Errors > 0 {
		message = fmt.Sprintf("%s (%d errors)", message, summary.Errors)
		priority = "high"
	}
	return n.send(ctx, payload{
		title:    "trackline - Sweep",
		message:  message,
		tags:     []string{"trackline", "monitor"},
		priority: priority,
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "trackline - Test",
		message:  "Notification system test",
		tags:     []string{"trackline", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyTrackCompleted(context.Context, string, string) error     { return nil }
func (noopService) NotifyTrackFailed(context.Context, int64, string, string) error { return nil }
func (noopService) NotifySweep(context.Context, SweepSummary) error                { return nil }
func (noopService) TestNotification(context.Context) error                         { return nil }
