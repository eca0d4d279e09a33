package encoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"trackline/internal/config"
	"trackline/internal/logging"
	"trackline/internal/services"
)

const stderrTailLines = 3

// Adapter synthesizes a video from a still image and an audio track,
// trying each profile in order under a hard per-attempt timeout.
type Adapter struct {
	runner   Runner
	profiles []Profile
	timeout  time.Duration
	logger   *slog.Logger
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithProfiles replaces the profile list.
func WithProfiles(profiles ...Profile) Option {
	return func(a *Adapter) {
		a.profiles = profiles
	}
}

// WithTimeout sets the hard timeout applied to each attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(a *Adapter) {
		if timeout > 0 {
			a.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logging.NewComponentLogger(logger, "encoder")
	}
}

// New constructs an Adapter around runner with the default 700px profiles.
func New(runner Runner, opts ...Option) *Adapter {
	a := &Adapter{
		runner:   runner,
		profiles: []Profile{PrimaryProfile(700), FallbackProfile(700)},
		timeout:  10 * time.Minute,
		logger:   logging.NewComponentLogger(nil, "encoder"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFromConfig builds an ffmpeg-backed Adapter from the [encoder] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Adapter {
	profiles := []Profile{PrimaryProfile(cfg.Encoder.MaxEdge)}
	if cfg.Encoder.FallbackEnabled {
		profiles = append(profiles, FallbackProfile(cfg.Encoder.MaxEdge))
	}
	return New(
		FFmpegRunner{Binary: cfg.Encoder.FFmpegBinary},
		WithProfiles(profiles...),
		WithTimeout(cfg.EncoderTimeout()),
		WithLogger(logger),
	)
}

// Synthesize writes outputPath from imagePath and audioPath. It returns the
// path only when the file exists and is non-empty; a failed attempt never
// leaves its partial output behind.
func (a *Adapter) Synthesize(ctx context.Context, imagePath, audioPath, outputPath string) (string, error) {
	for _, input := range []string{imagePath, audioPath} {
		if !nonEmpty(input) {
			return "", services.Wrap(services.ErrTransient, "video", "check input", fmt.Sprintf("input %q missing or empty", input), nil)
		}
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	attempts := make([]Attempt, 0, len(a.profiles))
	for _, profile := range a.profiles {
		attempt := a.attempt(ctx, profile, imagePath, audioPath, outputPath)
		if attempt.Err == nil {
			a.logger.Info("video synthesized",
				logging.String("profile", profile.Name),
				logging.String("output", outputPath),
			)
			return outputPath, nil
		}
		_ = os.Remove(outputPath)
		attempts = append(attempts, attempt)
		logging.WarnWithContext(a.logger, "encoding profile failed", "encoder_profile_failed",
			logging.String("profile", profile.Name),
			logging.Bool("timed_out", attempt.TimedOut),
			logging.Error(attempt.Err),
			logging.String(logging.FieldErrorHint, "inspect ffmpeg stderr"),
			logging.String(logging.FieldImpact, "next profile will be tried"),
		)
		if ctx.Err() != nil {
			break
		}
	}

	last := Attempt{}
	if len(attempts) > 0 {
		last = attempts[len(attempts)-1]
	}
	return "", &EncodingError{
		Stderr:   tailLines(last.Stderr, stderrTailLines),
		Attempts: attempts,
		Err:      last.Err,
	}
}

func (a *Adapter) attempt(ctx context.Context, profile Profile, imagePath, audioPath, outputPath string) Attempt {
	attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	stderr, err := a.runner.Run(attemptCtx, profile.Args(imagePath, audioPath, outputPath))
	result := Attempt{Profile: profile.Name, Stderr: stderr, Err: err}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		if result.Err == nil {
			result.Err = context.DeadlineExceeded
		}
		return result
	}
	if err == nil && !nonEmpty(outputPath) {
		result.Err = errNoOutput
	}
	return result
}

func nonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
