package encoder

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// Runner executes one encoder invocation and returns its stderr.
type Runner interface {
	Run(ctx context.Context, args []string) (stderr string, err error)
}

// FFmpegRunner runs the ffmpeg binary. The process is killed when ctx ends.
type FFmpegRunner struct {
	Binary string
}

func (r FFmpegRunner) Run(ctx context.Context, args []string) (string, error) {
	binary := r.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	return stderr.String(), err
}
