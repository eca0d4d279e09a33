package tracks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"trackline/internal/config"
	"trackline/internal/sqlitedb"
)

// ErrDuplicateUpstream is returned by Create when another track already owns the upstream ID.
var ErrDuplicateUpstream = errors.New("track already exists for upstream id")

// Store manages track persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for created_at, updated_at, and heartbeats.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open initializes or connects to the track database.
func Open(cfg *config.Config, opts ...Option) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	path := cfg.TracksDBPath()
	db, err := sqlitedb.Open(context.Background(), path, schema)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, path: path, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// Create inserts a new pending track. A taken upstream ID yields ErrDuplicateUpstream.
func (s *Store) Create(ctx context.Context, track *Track) (*Track, error) {
	if track == nil {
		return nil, errors.New("track is nil")
	}
	now := s.timestamp()
	tagsJSON, err := encodeTags(track.Tags)
	if err != nil {
		return nil, err
	}

	res, err := sqlitedb.Exec(
		ctx, s.db,
		`INSERT INTO tracks (
            upstream_id, title, audio_source_url, image_source_url, tag_string, tags_json,
            status, progress, progress_stage, attempts, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		sqlitedb.NullableString(strings.TrimSpace(track.UpstreamID)),
		sqlitedb.NullableString(track.Title),
		sqlitedb.NullableString(track.AudioSourceURL),
		sqlitedb.NullableString(track.ImageSourceURL),
		sqlitedb.NullableString(track.TagString),
		tagsJSON,
		StatusPending,
		ProgressStart,
		StageQueued,
		sqlitedb.FormatTime(now),
		sqlitedb.FormatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUpstream, track.UpstreamID)
		}
		return nil, fmt.Errorf("insert track: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a track by identifier. A missing track yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Track, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return track, nil
}

// FindByUpstreamID returns the track owning an upstream ID, or (nil, nil).
func (s *Store) FindByUpstreamID(ctx context.Context, upstreamID string) (*Track, error) {
	upstreamID = strings.TrimSpace(upstreamID)
	if upstreamID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE upstream_id = ?`, upstreamID)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by upstream id: %w", err)
	}
	return track, nil
}

// Update persists every mutable field and bumps updated_at.
func (s *Store) Update(ctx context.Context, track *Track) error {
	if track == nil {
		return errors.New("track is nil")
	}
	tagsJSON, err := encodeTags(track.Tags)
	if err != nil {
		return err
	}
	track.UpdatedAt = s.timestamp()
	if _, err := sqlitedb.Exec(
		ctx, s.db,
		`UPDATE tracks
         SET title = ?, audio_source_url = ?, image_source_url = ?,
             audio_path = ?, image_path = ?, video_path = ?,
             tag_string = ?, tags_json = ?, status = ?, progress = ?, progress_stage = ?,
             error_message = ?, attempts = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		sqlitedb.NullableString(track.Title),
		sqlitedb.NullableString(track.AudioSourceURL),
		sqlitedb.NullableString(track.ImageSourceURL),
		sqlitedb.NullableString(track.AudioPath),
		sqlitedb.NullableString(track.ImagePath),
		sqlitedb.NullableString(track.VideoPath),
		sqlitedb.NullableString(track.TagString),
		tagsJSON,
		track.Status,
		track.Progress,
		sqlitedb.NullableString(track.ProgressStage),
		sqlitedb.NullableString(track.ErrorMessage),
		track.Attempts,
		sqlitedb.NullableTime(track.LastHeartbeat),
		sqlitedb.FormatTime(track.UpdatedAt),
		track.ID,
	); err != nil {
		return fmt.Errorf("update track: %w", err)
	}
	return nil
}

// List returns tracks filtered by status set (or all tracks when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + sqlitedb.Placeholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at, id`
	return s.query(ctx, query, args...)
}

// ListStale returns tracks in status whose updated_at is older than cutoff.
func (s *Store) ListStale(ctx context.Context, status Status, cutoff time.Time) ([]*Track, error) {
	return s.query(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE status = ? AND updated_at < ? ORDER BY updated_at, id`,
		status, sqlitedb.FormatTime(cutoff),
	)
}

// ReferencedPaths returns every local asset path recorded on any track.
func (s *Store) ReferencedPaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT audio_path, image_path, video_path FROM tracks`)
	if err != nil {
		return nil, fmt.Errorf("query referenced paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var audio, image, video sql.NullString
		if err := rows.Scan(&audio, &image, &video); err != nil {
			return nil, err
		}
		for _, value := range []sql.NullString{audio, image, video} {
			if value.Valid && value.String != "" {
				paths[value.String] = struct{}{}
			}
		}
	}
	return paths, rows.Err()
}

// Remove deletes a track by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := sqlitedb.Exec(ctx, s.db, `DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete track: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RemoveInvalid deletes failed tracks whose error message contains any of
// patterns (case-insensitive) and returns the removed records.
func (s *Store) RemoveInvalid(ctx context.Context, patterns []string) ([]*Track, error) {
	failed, err := s.List(ctx, StatusFailed)
	if err != nil {
		return nil, err
	}
	var removed []*Track
	for _, track := range failed {
		if !MatchesAny(track.ErrorMessage, patterns) {
			continue
		}
		ok, err := s.Remove(ctx, track.ID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed = append(removed, track)
		}
	}
	return removed, nil
}

// MatchesAny reports whether message contains any pattern, ignoring case.
func MatchesAny(message string, patterns []string) bool {
	lower := strings.ToLower(message)
	for _, pattern := range patterns {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern != "" && strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Track, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

func encodeTags(tags []string) (any, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return string(data), nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
