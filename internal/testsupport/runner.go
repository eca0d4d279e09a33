package testsupport

import (
	"context"
	"errors"
	"os"
	"sync"
)

// FakeRunner stands in for the ffmpeg process. It writes a small file to the
// output path (the last argument) unless configured to fail.
type FakeRunner struct {
	mu    sync.Mutex
	calls [][]string

	// FailFirst makes the first N invocations exit with an error.
	FailFirst int
	// Stderr is returned from failed invocations.
	Stderr string
	// Block makes every invocation wait until its context is done.
	Block bool
	// SkipOutput makes successful invocations produce no file.
	SkipOutput bool
}

// Run implements encoder.Runner.
func (f *FakeRunner) Run(ctx context.Context, args []string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	n := len(f.calls)
	f.mu.Unlock()

	output := ""
	if len(args) > 0 {
		output = args[len(args)-1]
	}
	if f.Block {
		if output != "" {
			_ = os.WriteFile(output, []byte("partial"), 0o644)
		}
		<-ctx.Done()
		return f.Stderr, ctx.Err()
	}
	if n <= f.FailFirst {
		if output != "" {
			_ = os.WriteFile(output, []byte("partial"), 0o644)
		}
		return f.Stderr, errors.New("exit status 1")
	}
	if f.SkipOutput || output == "" {
		return "", nil
	}
	return "", os.WriteFile(output, []byte("fake video"), 0o644)
}

// Calls returns a copy of the recorded argument lists.
func (f *FakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}
