package services_test

import (
	"context"
	"testing"

	"trackline/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTrackID(ctx, 42)
	ctx = services.WithStage(ctx, "audio")
	ctx = services.WithWorker(ctx, "worker-1")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.TrackIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected track id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "audio" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if worker, ok := services.WorkerFromContext(ctx); !ok || worker != "worker-1" {
		t.Fatalf("unexpected worker: %v %v", worker, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := services.WithStage(context.Background(), "")
	ctx = services.WithWorker(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.WorkerFromContext(ctx); ok {
		t.Fatal("expected no worker value")
	}
}
