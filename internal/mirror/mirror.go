package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"trackline/internal/config"
	"trackline/internal/logging"
	"trackline/internal/storage"
)

// Publisher copies finished artifacts to an object store.
type Publisher interface {
	// Publish uploads localPath and returns the object key it was stored under.
	Publish(ctx context.Context, kind storage.Kind, localPath string) (string, error)
}

// Noop is used when mirroring is disabled.
type Noop struct{}

func (Noop) Publish(context.Context, storage.Kind, string) (string, error) { return "", nil }

// NewFromConfig returns a MinIO publisher when [mirror] is enabled.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (Publisher, error) {
	if !cfg.Mirror.Enabled {
		return Noop{}, nil
	}
	return NewMinIO(MinIOOptions{
		Endpoint:  cfg.Mirror.Endpoint,
		Bucket:    cfg.Mirror.Bucket,
		Region:    cfg.Mirror.Region,
		UseSSL:    cfg.Mirror.UseSSL,
		AccessKey: cfg.Mirror.AccessKey,
		SecretKey: cfg.Mirror.SecretKey,
	}, logger)
}

// MinIOOptions configures a MinIO publisher.
type MinIOOptions struct {
	Endpoint  string
	Bucket    string
	Region    string
	UseSSL    bool
	AccessKey string
	SecretKey string
}

// MinIO uploads artifacts to a bucket, creating it on first use.
type MinIO struct {
	client *minio.Client
	bucket string
	region string
	logger *slog.Logger

	mu          sync.Mutex
	bucketReady bool
}

func NewMinIO(opts MinIOOptions, logger *slog.Logger) (*MinIO, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIO{
		client: client,
		bucket: opts.Bucket,
		region: opts.Region,
		logger: logging.NewComponentLogger(logger, "mirror"),
	}, nil
}

// ObjectKey maps a local artifact to its key: "<kind>/<file name>".
func ObjectKey(kind storage.Kind, localPath string) string {
	return path.Join(string(kind), filepath.Base(localPath))
}

func (m *MinIO) Publish(ctx context.Context, kind storage.Kind, localPath string) (string, error) {
	if err := m.ensureBucket(ctx); err != nil {
		return "", err
	}
	key := ObjectKey(kind, localPath)
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := m.client.FPutObject(ctx, m.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	m.logger.Info("artifact mirrored",
		logging.String("bucket", m.bucket),
		logging.String("key", key),
		logging.Int64("size", info.Size),
	)
	return key, nil
}

func (m *MinIO) ensureBucket(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bucketReady {
		return nil
	}
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", m.bucket, err)
		}
		m.logger.Info("bucket created", logging.String("bucket", m.bucket))
	}
	m.bucketReady = true
	return nil
}
