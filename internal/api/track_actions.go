package api

import (
	"context"

	"trackline/internal/tracks"
)

// TrackActionService captures the operations needed by per-track retries.
type TrackActionService interface {
	Describe(ctx context.Context, id int64) (*Track, error)
	Retry(ctx context.Context, ids []int64) ([]int64, error)
}

type RetryOutcome string

const (
	RetryUpdated   RetryOutcome = "retried"
	RetryNotFound  RetryOutcome = "not_found"
	RetryNotFailed RetryOutcome = "not_failed"
)

type RetryTrackResult struct {
	ID      int64        `json:"id"`
	Outcome RetryOutcome `json:"outcome"`
	Status  string       `json:"status,omitempty"`
}

type RetryTracksResult struct {
	UpdatedCount int                `json:"updatedCount"`
	Tracks       []RetryTrackResult `json:"tracks"`
}

// RetryFailedTracksByID validates IDs and retries only failed tracks.
func RetryFailedTracksByID(ctx context.Context, service TrackActionService, ids []int64) (RetryTracksResult, error) {
	result := RetryTracksResult{Tracks: make([]RetryTrackResult, 0, len(ids))}
	for _, id := range ids {
		track, err := service.Describe(ctx, id)
		if err != nil {
			return RetryTracksResult{}, err
		}
		if track == nil {
			result.Tracks = append(result.Tracks, RetryTrackResult{ID: id, Outcome: RetryNotFound})
			continue
		}
		status, ok := tracks.ParseStatus(track.Status)
		if !ok || status != tracks.StatusFailed {
			result.Tracks = append(result.Tracks, RetryTrackResult{ID: id, Outcome: RetryNotFailed, Status: track.Status})
			continue
		}
		retried, err := service.Retry(ctx, []int64{id})
		if err != nil {
			return RetryTracksResult{}, err
		}
		if len(retried) > 0 {
			result.UpdatedCount += len(retried)
			result.Tracks = append(result.Tracks, RetryTrackResult{ID: id, Outcome: RetryUpdated, Status: string(tracks.StatusPending)})
			continue
		}
		result.Tracks = append(result.Tracks, RetryTrackResult{ID: id, Outcome: RetryNotFailed, Status: track.Status})
	}
	return result, nil
}
