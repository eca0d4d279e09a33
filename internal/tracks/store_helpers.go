package tracks

import (
	"database/sql"
	"encoding/json"

	"trackline/internal/sqlitedb"
)

func scanTrack(scanner interface{ Scan(dest ...any) error }) (*Track, error) {
	var (
		id               int64
		upstreamID       sql.NullString
		title            sql.NullString
		audioSourceURL   sql.NullString
		imageSourceURL   sql.NullString
		audioPath        sql.NullString
		imagePath        sql.NullString
		videoPath        sql.NullString
		tagString        sql.NullString
		tagsJSON         sql.NullString
		statusStr        string
		progress         sql.NullInt64
		progressStage    sql.NullString
		errorMessage     sql.NullString
		attempts         sql.NullInt64
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&upstreamID,
		&title,
		&audioSourceURL,
		&imageSourceURL,
		&audioPath,
		&imagePath,
		&videoPath,
		&tagString,
		&tagsJSON,
		&statusStr,
		&progress,
		&progressStage,
		&errorMessage,
		&attempts,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	track := &Track{
		ID:             id,
		UpstreamID:     upstreamID.String,
		Title:          title.String,
		AudioSourceURL: audioSourceURL.String,
		ImageSourceURL: imageSourceURL.String,
		AudioPath:      audioPath.String,
		ImagePath:      imagePath.String,
		VideoPath:      videoPath.String,
		TagString:      tagString.String,
		Status:         Status(statusStr),
		Progress:       int(progress.Int64),
		ProgressStage:  progressStage.String,
		ErrorMessage:   errorMessage.String,
		Attempts:       int(attempts.Int64),
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		// A malformed value leaves Tags empty; the tag stage rewrites it.
		_ = json.Unmarshal([]byte(tagsJSON.String), &track.Tags)
	}
	if created, err := sqlitedb.ParseTime(createdRaw.String); err == nil {
		track.CreatedAt = created
	}
	if updated, err := sqlitedb.ParseTime(updatedRaw.String); err == nil {
		track.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := sqlitedb.ParseTime(lastHeartbeatRaw.String); err == nil {
			track.LastHeartbeat = &heartbeat
		}
	}
	return track, nil
}
