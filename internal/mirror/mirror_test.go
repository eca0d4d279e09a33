package mirror_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"trackline/internal/config"
	"trackline/internal/logging"
	"trackline/internal/mirror"
	"trackline/internal/storage"
	"trackline/internal/testsupport"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		kind storage.Kind
		path string
		want string
	}{
		{storage.KindVideo, "/srv/public/videos/video_abc.mp4", "video/video_abc.mp4"},
		{storage.KindAudio, "audio_abc.mp3", "audio/audio_abc.mp3"},
	}
	for _, tt := range tests {
		if got := mirror.ObjectKey(tt.kind, tt.path); got != tt.want {
			t.Fatalf("ObjectKey(%s, %s) = %s, want %s", tt.kind, tt.path, got, tt.want)
		}
	}
}

func TestNewFromConfigDisabledIsNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	publisher, err := mirror.NewFromConfig(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if _, ok := publisher.(mirror.Noop); !ok {
		t.Fatalf("expected Noop publisher, got %T", publisher)
	}
}

func TestNewFromConfigEnabledBuildsClient(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConfig(func(c *config.Config) {
		c.Mirror.Enabled = true
		c.Mirror.Endpoint = "127.0.0.1:9000"
		c.Mirror.AccessKey = "minio"
		c.Mirror.SecretKey = "minio123"
	}))
	publisher, err := mirror.NewFromConfig(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if _, ok := publisher.(*mirror.MinIO); !ok {
		t.Fatalf("expected MinIO publisher, got %T", publisher)
	}
}

func TestMinIOPublishAgainstServer(t *testing.T) {
	endpoint := os.Getenv("TRACKLINE_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("TRACKLINE_TEST_MINIO_ENDPOINT not set")
	}
	publisher, err := mirror.NewMinIO(mirror.MinIOOptions{
		Endpoint:  endpoint,
		Bucket:    "trackline-test",
		Region:    "us-east-1",
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewMinIO: %v", err)
	}
	local := filepath.Join(t.TempDir(), "video_test.mp4")
	testsupport.WriteFile(t, local, 256)

	key, err := publisher.Publish(context.Background(), storage.KindVideo, local)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if key != "video/video_test.mp4" {
		t.Fatalf("unexpected key %s", key)
	}
}
