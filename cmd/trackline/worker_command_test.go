package main

import (
	"strings"
	"testing"
)

func TestWorkerDrainExitsOnEmptyQueue(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := env.run(t, "worker", "--drain")
	if err != nil {
		t.Fatalf("worker --drain: %v", err)
	}
	if !strings.Contains(stdout, "Processed 0 track(s), 0 failed") {
		t.Fatalf("unexpected output %q", stdout)
	}
}

func TestWorkerTrackSkipsNonPending(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := env.run(t, "worker", "--track", "42")
	if err != nil {
		t.Fatalf("worker --track: %v", err)
	}
	if !strings.Contains(stdout, "Processed 0 track(s)") {
		t.Fatalf("unexpected output %q", stdout)
	}
}
