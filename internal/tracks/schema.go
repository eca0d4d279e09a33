package tracks

import (
	_ "embed"

	"trackline/internal/sqlitedb"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

var schema = sqlitedb.Schema{Name: "tracks", SQL: schemaSQL, Version: schemaVersion}

const trackColumns = "id, upstream_id, title, audio_source_url, image_source_url, audio_path, image_path, video_path, tag_string, tags_json, status, progress, progress_stage, error_message, attempts, last_heartbeat, created_at, updated_at"

var expectedColumns = []string{
	"id", "upstream_id", "title", "audio_source_url", "image_source_url",
	"audio_path", "image_path", "video_path", "tag_string", "tags_json",
	"status", "progress", "progress_stage", "error_message", "attempts",
	"last_heartbeat", "created_at", "updated_at",
}
