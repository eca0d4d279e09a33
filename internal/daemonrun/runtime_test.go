package daemonrun_test

import (
	"context"
	"testing"

	"trackline/internal/daemonrun"
	"trackline/internal/logging"
	"trackline/internal/testsupport"
)

func TestBuildWiresRuntime(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithQueueBackend("sqlite"))
	rt, err := daemonrun.Build(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	if rt.Store == nil || rt.Queue == nil || rt.Workflow == nil || rt.Monitor == nil || rt.Ingest == nil {
		t.Fatalf("runtime not fully wired: %+v", rt)
	}
	if depth, err := rt.Queue.Depth(context.Background()); err != nil || depth != 0 {
		t.Fatalf("expected empty queue, got %d %v", depth, err)
	}
}

func TestBuildRejectsNilConfig(t *testing.T) {
	if _, err := daemonrun.Build(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error")
	}
}
