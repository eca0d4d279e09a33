package api

import (
	"context"

	"trackline/internal/tracks"
)

// TrackReader abstracts track persistence needed for API queries.
type TrackReader interface {
	List(ctx context.Context, statuses ...tracks.Status) ([]*tracks.Track, error)
	Stats(ctx context.Context) (map[tracks.Status]int, error)
	GetByID(ctx context.Context, id int64) (*tracks.Track, error)
}

// TrackService exposes read-only track operations returning API DTOs.
type TrackService struct {
	store TrackReader
}

// NewTrackService constructs a TrackService around the provided reader.
func NewTrackService(store TrackReader) *TrackService {
	if store == nil {
		return nil
	}
	return &TrackService{store: store}
}

// List returns tracks filtered by status.
func (s *TrackService) List(ctx context.Context, statuses ...tracks.Status) ([]Track, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	records, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromTracks(records), nil
}

// Stats returns track counts keyed by status string.
func (s *TrackService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeTrackStats(stats), nil
}

// Describe fetches a single track. A missing track returns nil without error.
func (s *TrackService) Describe(ctx context.Context, id int64) (*Track, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	track, err := s.store.GetByID(ctx, id)
	if err != nil || track == nil {
		return nil, err
	}
	dto := FromTrack(track)
	return &dto, nil
}

// ParseStatuses converts user-supplied status filters, rejecting unknown
// values.
func ParseStatuses(values []string) ([]tracks.Status, []string) {
	var (
		statuses []tracks.Status
		invalid  []string
	)
	for _, value := range values {
		if value == "" {
			continue
		}
		status, ok := tracks.ParseStatus(value)
		if !ok {
			invalid = append(invalid, value)
			continue
		}
		statuses = append(statuses, status)
	}
	return statuses, invalid
}
