package tracks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats returns a count of tracks grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM tracks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("track stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates track state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProcessing:
			health.Processing += count
		case StatusFailed:
			health.Failed += count
		case StatusCompleted:
			health.Completed += count
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the track database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("track database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat track database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("track database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping track database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}

	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM pragma_table_info('tracks')")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("table info: %w", err)
	}
	present := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			health.Error = err.Error()
			return health, fmt.Errorf("scan table info: %w", err)
		}
		present[name] = struct{}{}
	}
	rows.Close()
	for _, col := range expectedColumns {
		if _, ok := present[col]; !ok {
			health.MissingColumns = append(health.MissingColumns, col)
		}
	}

	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM tracks").Scan(&health.TotalTracks); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count tracks: %w", err)
	}

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return health, nil
}
