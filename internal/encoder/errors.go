package encoder

import (
	"errors"
	"fmt"
	"strings"

	"trackline/internal/services"
)

// Attempt records the outcome of one profile.
type Attempt struct {
	Profile  string
	Stderr   string
	Err      error
	TimedOut bool
}

// EncodingError is returned when every profile failed.
type EncodingError struct {
	// Stderr is the tail of the last attempt's stderr.
	Stderr   string
	Attempts []Attempt
	Err      error
}

func (e *EncodingError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		reason := "no output"
		if attempt.TimedOut {
			reason = "timed out"
		} else if attempt.Err != nil {
			reason = attempt.Err.Error()
		}
		parts = append(parts, attempt.Profile+": "+reason)
	}
	msg := fmt.Sprintf("encoding failed (%s)", strings.Join(parts, "; "))
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *EncodingError) Unwrap() error { return e.Err }

func (e *EncodingError) Is(target error) bool {
	switch target {
	case services.ErrExternalTool:
		return true
	case services.ErrTimeout:
		for _, attempt := range e.Attempts {
			if attempt.TimedOut {
				return true
			}
		}
	}
	return false
}

// tailLines returns the last n non-empty lines of s.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append(kept, line)
		}
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, " | ")
}

var errNoOutput = errors.New("output missing or empty")
