package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trackline/internal/config"
)

// ErrClosed is returned by operations on a closed queue.
var ErrClosed = errors.New("queue closed")

// Queue delivers track IDs to workers. The payload is only the identifier;
// consumers re-read the full record from the track store.
//
// Enqueue is idempotent while an ID is still waiting, so repeated recovery
// sweeps do not pile up duplicate jobs. Delivery is at-least-once from the
// pipeline's point of view: a worker that crashes after Dequeue loses the job,
// and the health monitor re-enqueues the track later.
type Queue interface {
	Enqueue(ctx context.Context, trackID int64) error
	// Dequeue waits up to wait for a job. ok is false when none arrived.
	Dequeue(ctx context.Context, wait time.Duration) (trackID int64, ok bool, err error)
	Depth(ctx context.Context) (int, error)
	// Beat records that workerID is alive for the next ttl.
	Beat(ctx context.Context, workerID string, ttl time.Duration) error
	// Workers returns the number of workers whose presence has not expired.
	Workers(ctx context.Context) (int, error)
	Close() error
}

// Open constructs the backend selected by cfg.Queue.Backend.
func Open(ctx context.Context, cfg *config.Config) (Queue, error) {
	switch cfg.Queue.Backend {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.JobsDBPath())
	case "redis":
		return OpenRedis(ctx, RedisOptions{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
			Key:      cfg.Queue.RedisKey,
		})
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported queue backend %q", cfg.Queue.Backend)
	}
}

// DequeueWait returns the configured blocking wait for Dequeue.
func DequeueWait(cfg *config.Config) time.Duration {
	if cfg.Queue.DequeueWaitSeconds <= 0 {
		return time.Second
	}
	return time.Duration(cfg.Queue.DequeueWaitSeconds) * time.Second
}
