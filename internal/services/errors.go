package services

import (
	"errors"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("invalid source")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// ErrorKind classifies a failure for logging and retry decisions.
type ErrorKind string

const (
	KindExternalTool  ErrorKind = "external_tool"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindNotFound      ErrorKind = "not_found"
	KindTimeout       ErrorKind = "timeout"
	KindTransient     ErrorKind = "transient"
)

// Error carries the marker, stage, and operation that produced a failure.
type Error struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 5)
	if e.Marker != nil {
		parts = append(parts, e.Marker.Error())
	}
	parts = append(parts, buildDetail(e.Stage, e.Operation, e.Message))
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above; nil means ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// WithHint attaches an operator hint to an error produced by Wrap.
func WithHint(err error, hint string) error {
	var se *Error
	if errors.As(err, &se) {
		se.Hint = strings.TrimSpace(hint)
	}
	return err
}

// ErrorDetails is the flattened view of a failure used in structured logs.
type ErrorDetails struct {
	Kind      ErrorKind
	Operation string
	Message   string
	Hint      string
	Cause     error
}

// Details extracts classification data from err.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: Classify(err), Message: err.Error()}
	var se *Error
	if errors.As(err, &se) {
		details.Operation = se.Operation
		details.Hint = se.Hint
		details.Cause = se.Cause
	}
	if details.Hint == "" {
		details.Hint = defaultHint(details.Kind)
	}
	return details
}

// Classify maps err onto an ErrorKind using the sentinel markers.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	default:
		return KindTransient
	}
}

// IsPermanent reports whether retrying err is futile.
func IsPermanent(err error) bool {
	switch Classify(err) {
	case KindValidation, KindNotFound, KindConfiguration:
		return true
	default:
		return false
	}
}

func defaultHint(kind ErrorKind) string {
	switch kind {
	case KindValidation:
		return "fix the source URLs and re-ingest"
	case KindNotFound:
		return "upstream content is gone; remove the track"
	case KindConfiguration:
		return "check trackline configuration"
	case KindTimeout:
		return "upstream or encoder too slow; the monitor will retry"
	case KindExternalTool:
		return "inspect ffmpeg stderr in the error message"
	default:
		return "transient failure; the monitor will retry"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{stage, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
