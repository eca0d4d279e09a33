package services_test

import (
	"errors"
	"strings"
	"testing"

	"trackline/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "video", "synthesize", "both profiles failed", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"external tool error", "video", "synthesize", "both profiles failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestValidationMessageCarriesPermanentSignature(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "", "", "audio_url is required", nil)
	if got := err.Error(); got != "invalid source: audio_url is required" {
		t.Fatalf("unexpected validation message %q", got)
	}
}

func TestClassifyAndPermanence(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      services.ErrorKind
		permanent bool
	}{
		{"validation", services.Wrap(services.ErrValidation, "validate", "", "missing", nil), services.KindValidation, true},
		{"not found", services.Wrap(services.ErrNotFound, "audio", "fetch", "gone", nil), services.KindNotFound, true},
		{"timeout", services.Wrap(services.ErrTimeout, "video", "", "slow", nil), services.KindTimeout, false},
		{"tool", services.Wrap(services.ErrExternalTool, "video", "", "exit 1", nil), services.KindExternalTool, false},
		{"plain", errors.New("io"), services.KindTransient, false},
		{"nil marker", services.Wrap(nil, "x", "", "", nil), services.KindTransient, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Classify(tt.err); got != tt.kind {
				t.Fatalf("Classify = %s, want %s", got, tt.kind)
			}
			if got := services.IsPermanent(tt.err); got != tt.permanent {
				t.Fatalf("IsPermanent = %v, want %v", got, tt.permanent)
			}
		})
	}
}

func TestDetailsExtractsOperationAndHint(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := services.WithHint(services.Wrap(services.ErrTransient, "image", "fetch", "download failed", cause), "check origin")
	details := services.Details(err)
	if details.Kind != services.KindTransient {
		t.Fatalf("unexpected kind %s", details.Kind)
	}
	if details.Operation != "fetch" || details.Hint != "check origin" {
		t.Fatalf("unexpected details %+v", details)
	}
	if !errors.Is(details.Cause, cause) {
		t.Fatalf("expected cause to be preserved, got %v", details.Cause)
	}
	if services.Details(nil).Kind != "" {
		t.Fatal("expected empty details for nil error")
	}
}
