package jobs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"trackline/internal/jobs"
	"trackline/internal/testsupport"
)

func backends(t *testing.T) map[string]func(t *testing.T) jobs.Queue {
	t.Helper()
	out := map[string]func(t *testing.T) jobs.Queue{
		"memory": func(t *testing.T) jobs.Queue { return jobs.NewMemory() },
		"sqlite": func(t *testing.T) jobs.Queue {
			q, err := jobs.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "jobs.db"))
			if err != nil {
				t.Fatalf("OpenSQLite: %v", err)
			}
			t.Cleanup(func() { _ = q.Close() })
			return q
		},
	}
	if addr := os.Getenv("TRACKLINE_TEST_REDIS_ADDR"); addr != "" {
		out["redis"] = func(t *testing.T) jobs.Queue {
			q, err := jobs.OpenRedis(context.Background(), jobs.RedisOptions{
				Addr: addr,
				Key:  "trackline-test:" + uuid.NewString(),
			})
			if err != nil {
				t.Fatalf("OpenRedis: %v", err)
			}
			t.Cleanup(func() { _ = q.Close() })
			return q
		}
	}
	return out
}

func TestQueueFIFOAndIdempotentEnqueue(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			q := open(t)
			ctx := context.Background()

			for _, id := range []int64{7, 8, 7, 9} {
				if err := q.Enqueue(ctx, id); err != nil {
					t.Fatalf("Enqueue(%d): %v", id, err)
				}
			}
			depth, err := q.Depth(ctx)
			if err != nil {
				t.Fatalf("Depth: %v", err)
			}
			if depth != 3 {
				t.Fatalf("expected depth 3 after duplicate enqueue, got %d", depth)
			}

			var got []int64
			for range 3 {
				id, ok, err := q.Dequeue(ctx, time.Second)
				if err != nil || !ok {
					t.Fatalf("Dequeue: ok=%v err=%v", ok, err)
				}
				got = append(got, id)
			}
			if got[0] != 7 || got[1] != 8 || got[2] != 9 {
				t.Fatalf("expected FIFO order [7 8 9], got %v", got)
			}

			// Once delivered, the same ID may be queued again.
			if err := q.Enqueue(ctx, 7); err != nil {
				t.Fatalf("re-enqueue: %v", err)
			}
			if depth, _ := q.Depth(ctx); depth != 1 {
				t.Fatalf("expected depth 1 after re-enqueue, got %d", depth)
			}
		})
	}
}

func TestDequeueTimesOutWhenEmpty(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			q := open(t)
			start := time.Now()
			_, ok, err := q.Dequeue(context.Background(), 0)
			if err != nil || ok {
				t.Fatalf("expected empty non-blocking dequeue, ok=%v err=%v", ok, err)
			}
			if time.Since(start) > 500*time.Millisecond {
				t.Fatal("non-blocking dequeue took too long")
			}
		})
	}
}

func TestDequeueHonoursContext(t *testing.T) {
	for name, open := range backends(t) {
		if name == "redis" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			q := open(t)
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, ok, err := q.Dequeue(ctx, 10*time.Second)
			if ok || !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("expected deadline error, ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestBlockingDequeueReceivesLateJob(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			q := open(t)
			ctx := context.Background()

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				time.Sleep(100 * time.Millisecond)
				_ = q.Enqueue(ctx, 42)
			}()
			id, ok, err := q.Dequeue(ctx, 3*time.Second)
			wg.Wait()
			if err != nil || !ok || id != 42 {
				t.Fatalf("expected job 42, got id=%d ok=%v err=%v", id, ok, err)
			}
		})
	}
}

func TestWorkerPresenceExpires(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			q := open(t)
			ctx := context.Background()

			if err := q.Beat(ctx, "w1", time.Hour); err != nil {
				t.Fatalf("Beat: %v", err)
			}
			if err := q.Beat(ctx, "w2", -time.Second); err != nil {
				t.Fatalf("Beat: %v", err)
			}
			live, err := q.Workers(ctx)
			if err != nil {
				t.Fatalf("Workers: %v", err)
			}
			if live != 1 {
				t.Fatalf("expected 1 live worker, got %d", live)
			}
		})
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithQueueBackend("memory"))
	q, err := jobs.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if _, ok := q.(*jobs.Memory); !ok {
		t.Fatalf("expected *jobs.Memory, got %T", q)
	}

	cfg = testsupport.NewConfig(t)
	q, err = jobs.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer q.Close()
	if _, ok := q.(*jobs.SQLite); !ok {
		t.Fatalf("expected *jobs.SQLite, got %T", q)
	}

	cfg.Queue.Backend = "kafka"
	if _, err := jobs.Open(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestClosedMemoryQueueRejectsWork(t *testing.T) {
	q := jobs.NewMemory()
	_ = q.Close()
	if err := q.Enqueue(context.Background(), 1); !errors.Is(err, jobs.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
