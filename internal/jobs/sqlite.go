package jobs

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"trackline/internal/sqlitedb"
)

//go:embed schema.sql
var schemaSQL string

const (
	schemaVersion = 1
	pollInterval  = 200 * time.Millisecond
)

// SQLite is the default queue, kept in its own database file next to the track store.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the queue database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sqlitedb.Open(ctx, path, sqlitedb.Schema{Name: "jobs", SQL: schemaSQL, Version: schemaVersion})
	if err != nil {
		return nil, err
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func (q *SQLite) Enqueue(ctx context.Context, trackID int64) error {
	if _, err := sqlitedb.Exec(ctx, q.db,
		`INSERT INTO jobs (track_id, enqueued_at) VALUES (?, ?) ON CONFLICT(track_id) DO NOTHING`,
		trackID, sqlitedb.FormatTime(q.now()),
	); err != nil {
		return fmt.Errorf("enqueue track %d: %w", trackID, err)
	}
	return nil
}

func (q *SQLite) Dequeue(ctx context.Context, wait time.Duration) (int64, bool, error) {
	deadline := q.now().Add(wait)
	for {
		id, ok, err := q.pop(ctx)
		if err != nil || ok {
			return id, ok, err
		}
		remaining := deadline.Sub(q.now())
		if remaining <= 0 {
			return 0, false, nil
		}
		sleep := pollInterval
		if remaining < sleep {
			sleep = remaining
		}
		select {
		case <-ctx.Done():
			return 0, false, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (q *SQLite) pop(ctx context.Context) (int64, bool, error) {
	var trackID int64
	err := sqlitedb.RetryOnBusy(ctx, func() error {
		return q.db.QueryRowContext(ctx,
			`DELETE FROM jobs WHERE id = (SELECT id FROM jobs ORDER BY id LIMIT 1) RETURNING track_id`,
		).Scan(&trackID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("dequeue: %w", err)
	}
	return trackID, true, nil
}

func (q *SQLite) Depth(ctx context.Context) (int, error) {
	var depth int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs`).Scan(&depth); err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return depth, nil
}

func (q *SQLite) Beat(ctx context.Context, workerID string, ttl time.Duration) error {
	if _, err := sqlitedb.Exec(ctx, q.db,
		`INSERT INTO workers (worker_id, expires_at) VALUES (?, ?)
         ON CONFLICT(worker_id) DO UPDATE SET expires_at = excluded.expires_at`,
		workerID, sqlitedb.FormatTime(q.now().Add(ttl)),
	); err != nil {
		return fmt.Errorf("worker beat: %w", err)
	}
	return nil
}

func (q *SQLite) Workers(ctx context.Context) (int, error) {
	now := sqlitedb.FormatTime(q.now())
	if _, err := sqlitedb.Exec(ctx, q.db, `DELETE FROM workers WHERE expires_at <= ?`, now); err != nil {
		return 0, fmt.Errorf("prune workers: %w", err)
	}
	var live int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM workers`).Scan(&live); err != nil {
		return 0, fmt.Errorf("count workers: %w", err)
	}
	return live, nil
}

func (q *SQLite) Close() error {
	if q == nil || q.db == nil {
		return nil
	}
	return q.db.Close()
}
