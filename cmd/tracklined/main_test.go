package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRootCommandRejectsArguments(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"extra"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected positional arguments to be rejected")
	}
}

func TestRootCommandReportsConfigErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	writeFile(t, path, "[paths\n")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--config", path})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected config load error, got %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
