package encoder_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"trackline/internal/encoder"
	"trackline/internal/services"
	"trackline/internal/testsupport"
)

type inputs struct {
	image, audio, output string
}

func newInputs(t *testing.T) inputs {
	t.Helper()
	dir := t.TempDir()
	in := inputs{
		image:  filepath.Join(dir, "image_a.jpg"),
		audio:  filepath.Join(dir, "audio_a.mp3"),
		output: filepath.Join(dir, "videos", "video_a.mp4"),
	}
	testsupport.WriteFile(t, in.image, 64)
	testsupport.WriteFile(t, in.audio, 128)
	return in
}

func TestSynthesizeUsesPrimaryProfile(t *testing.T) {
	in := newInputs(t)
	runner := &testsupport.FakeRunner{}
	adapter := encoder.New(runner)

	got, err := adapter.Synthesize(context.Background(), in.image, in.audio, in.output)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got != in.output {
		t.Fatalf("expected %s, got %s", in.output, got)
	}
	calls := runner.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one invocation, got %d", len(calls))
	}
	if !slices.Contains(calls[0], "libx264") || !slices.Contains(calls[0], "+faststart") {
		t.Fatalf("unexpected primary args: %v", calls[0])
	}
}

func TestSynthesizeFallsBack(t *testing.T) {
	in := newInputs(t)
	runner := &testsupport.FakeRunner{FailFirst: 1, Stderr: "Unknown encoder 'libx264'"}
	adapter := encoder.New(runner)

	if _, err := adapter.Synthesize(context.Background(), in.image, in.audio, in.output); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	calls := runner.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected two invocations, got %d", len(calls))
	}
	if !slices.Contains(calls[1], "mpeg4") {
		t.Fatalf("expected fallback profile, got %v", calls[1])
	}
}

func TestSynthesizeReportsStderrWhenAllProfilesFail(t *testing.T) {
	in := newInputs(t)
	runner := &testsupport.FakeRunner{FailFirst: 2, Stderr: "line one\nline two\nline three\nConversion failed!\n"}
	adapter := encoder.New(runner)

	_, err := adapter.Synthesize(context.Background(), in.image, in.audio, in.output)
	var encErr *encoder.EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected EncodingError, got %v", err)
	}
	if len(encErr.Attempts) != 2 {
		t.Fatalf("expected two attempts, got %d", len(encErr.Attempts))
	}
	if !strings.Contains(encErr.Stderr, "Conversion failed!") || strings.Contains(encErr.Stderr, "line one") {
		t.Fatalf("expected stderr tail, got %q", encErr.Stderr)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker")
	}
	if _, statErr := os.Stat(in.output); !os.IsNotExist(statErr) {
		t.Fatalf("expected partial output removed, stat err %v", statErr)
	}
}

func TestSynthesizeTreatsEmptyOutputAsFailure(t *testing.T) {
	in := newInputs(t)
	adapter := encoder.New(&testsupport.FakeRunner{SkipOutput: true})

	_, err := adapter.Synthesize(context.Background(), in.image, in.audio, in.output)
	var encErr *encoder.EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected EncodingError, got %v", err)
	}
}

func TestSynthesizeTimesOut(t *testing.T) {
	in := newInputs(t)
	runner := &testsupport.FakeRunner{Block: true}
	adapter := encoder.New(runner,
		encoder.WithProfiles(encoder.PrimaryProfile(700)),
		encoder.WithTimeout(50*time.Millisecond),
	)

	start := time.Now()
	_, err := adapter.Synthesize(context.Background(), in.image, in.audio, in.output)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("timeout not enforced")
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	if _, statErr := os.Stat(in.output); !os.IsNotExist(statErr) {
		t.Fatalf("expected partial output removed")
	}
}

func TestSynthesizeMissingInputIsTransient(t *testing.T) {
	in := newInputs(t)
	if err := os.Remove(in.audio); err != nil {
		t.Fatalf("remove audio: %v", err)
	}
	runner := &testsupport.FakeRunner{}
	_, err := encoder.New(runner).Synthesize(context.Background(), in.image, in.audio, in.output)
	if err == nil {
		t.Fatal("expected error for missing input")
	}
	if services.IsPermanent(err) {
		t.Fatalf("missing input must be retryable, got %v", err)
	}
	if len(runner.Calls()) != 0 {
		t.Fatalf("runner should not be invoked")
	}
}

func TestProfilesBoundLongEdge(t *testing.T) {
	for _, profile := range []encoder.Profile{encoder.PrimaryProfile(640), encoder.FallbackProfile(640)} {
		args := profile.Args("in.jpg", "in.mp3", "out.mp4")
		idx := slices.Index(args, "-vf")
		if idx < 0 || !strings.Contains(args[idx+1], "min(640,iw)") {
			t.Fatalf("%s: missing scale filter in %v", profile.Name, args)
		}
		if args[len(args)-1] != "out.mp4" {
			t.Fatalf("%s: output must be the last argument", profile.Name)
		}
		if !slices.Contains(args, "-shortest") {
			t.Fatalf("%s: expected -shortest", profile.Name)
		}
	}
}
