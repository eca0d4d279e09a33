package services

import "context"

type contextKey string

const (
	trackIDKey   contextKey = "track_id"
	stageKey     contextKey = "stage"
	workerKey    contextKey = "worker"
	requestIDKey contextKey = "request_id"
)

// WithTrackID annotates context with the track identifier.
func WithTrackID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, trackIDKey, id)
}

// TrackIDFromContext extracts the track identifier if present.
func TrackIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(trackIDKey).(int64)
	return id, ok
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(stageKey).(string)
	return v, ok && v != ""
}

// WithWorker annotates context with the worker name processing the track.
func WithWorker(ctx context.Context, worker string) context.Context {
	if worker == "" {
		return ctx
	}
	return context.WithValue(ctx, workerKey, worker)
}

func WorkerFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(workerKey).(string)
	return v, ok && v != ""
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	return v, ok && v != ""
}
