package jobs

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process queue used by tests and single-process runs.
type Memory struct {
	mu      sync.Mutex
	items   []int64
	queued  map[int64]struct{}
	workers map[string]time.Time
	notify  chan struct{}
	closed  bool
	now     func() time.Time
}

// NewMemory returns an empty in-process queue.
func NewMemory() *Memory {
	return &Memory{
		queued:  make(map[int64]struct{}),
		workers: make(map[string]time.Time),
		notify:  make(chan struct{}, 1),
		now:     time.Now,
	}
}

func (m *Memory) Enqueue(_ context.Context, trackID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.queued[trackID]; ok {
		return nil
	}
	m.queued[trackID] = struct{}{}
	m.items = append(m.items, trackID)
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

func (m *Memory) Dequeue(ctx context.Context, wait time.Duration) (int64, bool, error) {
	var timer *time.Timer
	if wait > 0 {
		timer = time.NewTimer(wait)
		defer timer.Stop()
	}
	for {
		id, ok, err := m.pop()
		if err != nil || ok {
			return id, ok, err
		}
		if timer == nil {
			return 0, false, nil
		}
		select {
		case <-ctx.Done():
			return 0, false, ctx.Err()
		case <-timer.C:
			return m.pop()
		case <-m.notify:
		}
	}
}

func (m *Memory) pop() (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, false, ErrClosed
	}
	if len(m.items) == 0 {
		return 0, false, nil
	}
	id := m.items[0]
	m.items = m.items[1:]
	delete(m.queued, id)
	if len(m.items) > 0 {
		select {
		case m.notify <- struct{}{}:
		default:
		}
	}
	return id, true, nil
}

func (m *Memory) Depth(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

func (m *Memory) Beat(_ context.Context, workerID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[workerID] = m.now().Add(ttl)
	return nil
}

func (m *Memory) Workers(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	live := 0
	for id, expires := range m.workers {
		if expires.After(now) {
			live++
		} else {
			delete(m.workers, id)
		}
	}
	return live, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
