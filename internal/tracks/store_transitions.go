package tracks

import (
	"context"
	"fmt"
	"time"

	"trackline/internal/sqlitedb"
)

// Claim moves a pending track to processing for a new attempt. It reports
// false when the track is no longer pending, which happens when a job is
// delivered twice or the track was completed in the meantime.
func (s *Store) Claim(ctx context.Context, id int64) (bool, error) {
	now := sqlitedb.FormatTime(s.timestamp())
	res, err := sqlitedb.Exec(
		ctx, s.db,
		`UPDATE tracks
         SET status = ?, progress = ?, progress_stage = ?, error_message = NULL,
             attempts = attempts + 1, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusProcessing, ProgressStart, StageClaimed, now, now,
		id, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("claim track: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ResetToPending returns a track to pending only if its status and updated_at
// still match what the caller observed. A false result means another writer
// touched the record first and nothing was changed.
func (s *Store) ResetToPending(ctx context.Context, id int64, expected Status, expectedUpdatedAt time.Time, clearPaths bool) (bool, error) {
	query := `UPDATE tracks
         SET status = ?, progress = ?, progress_stage = ?, error_message = NULL,
             last_heartbeat = NULL, updated_at = ?`
	if clearPaths {
		query += `, audio_path = NULL, image_path = NULL, video_path = NULL`
	}
	query += ` WHERE id = ? AND status = ? AND updated_at = ?`

	res, err := sqlitedb.Exec(
		ctx, s.db, query,
		StatusPending, ProgressStart, StageReset,
		sqlitedb.FormatTime(s.timestamp()),
		id, expected, sqlitedb.FormatTime(expectedUpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("reset track: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// UpdateHeartbeat refreshes last_heartbeat and updated_at for an in-flight track.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := sqlitedb.FormatTime(s.timestamp())
	if _, err := sqlitedb.Exec(
		ctx, s.db,
		`UPDATE tracks SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusProcessing,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// RetryFailed moves failed tracks back to pending and clears their attempt
// counter. With no ids every failed track is retried. The affected IDs are
// returned so callers can enqueue them.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) ([]int64, error) {
	query := `UPDATE tracks
        SET status = ?, progress = ?, progress_stage = ?, error_message = NULL,
            attempts = 0, last_heartbeat = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{StatusPending, ProgressStart, StageQueued, sqlitedb.FormatTime(s.timestamp()), StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + sqlitedb.Placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += ` RETURNING id`

	var retried []int64
	err := sqlitedb.RetryOnBusy(ctx, func() error {
		retried = retried[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			retried = append(retried, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("retry failed tracks: %w", err)
	}
	return retried, nil
}
