package errors

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Taxonomy Tests
// -----------------------------------------------------------------------------

func TestFilenameError(t *testing.T) {
	err := NewFilenameError("invalid.file", "unknown kind")

	if !errors.Is(err, ErrInvalidFilename) {
		t.Error("errors.Is(err, ErrInvalidFilename) = false, want true")
	}
	if errors.Is(err, ErrFileConflict) {
		t.Error("errors.Is(err, ErrFileConflict) = true, want false")
	}
	if err.Severity() != SeverityDebug {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityDebug)
	}
	want := "invalid filename [name=invalid.file]: unknown kind"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestConflictError(t *testing.T) {
	err := NewConflictError("lock", "/in/a.trk", os.ErrNotExist).WithTarget("/in/a.trk.x.locked")

	if !errors.Is(err, ErrFileConflict) {
		t.Error("errors.Is(err, ErrFileConflict) = false, want true")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("cause chain should match os.ErrNotExist")
	}
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true")
	}
	for _, part := range []string{"op=lock", "source=/in/a.trk", "target=/in/a.trk.x.locked"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("Error() = %q, missing %q", err.Error(), part)
		}
	}
}

func TestCollectionError(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewCollectionError("gather", cause).WithFile("a.trk").WithKind("trk")

	if !errors.Is(err, ErrCollectionFailed) {
		t.Error("errors.Is(err, ErrCollectionFailed) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if GetSeverity(err) != SeverityWarning {
		t.Errorf("GetSeverity() = %v, want %v", GetSeverity(err), SeverityWarning)
	}
	want := "collection failed [step=gather, file=a.trk, kind=trk]: disk full"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("2 validation errors", nil).WithSource("/etc/agent.yaml")

	if !IsFatal(err) {
		t.Error("IsFatal() = false, want true")
	}
	if IsRetryable(err) {
		t.Error("IsRetryable() = true, want false")
	}
	if GetSeverity(err) != SeverityCritical {
		t.Errorf("GetSeverity() = %v, want %v", GetSeverity(err), SeverityCritical)
	}
	want := "configuration invalid [source=/etc/agent.yaml]: 2 validation errors"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// -----------------------------------------------------------------------------
// Classification Helper Tests
// -----------------------------------------------------------------------------

func TestClassificationThroughWrapping(t *testing.T) {
	wrapped := Wrapf(NewConflictError("gather", "/in/a.trk", nil), "entry %d", 3)

	if !IsRetryable(wrapped) {
		t.Error("IsRetryable(wrapped) = false, want true")
	}
	if GetSeverity(wrapped) != SeverityInfo {
		t.Errorf("GetSeverity(wrapped) = %v, want %v", GetSeverity(wrapped), SeverityInfo)
	}
	if IsFatal(wrapped) {
		t.Error("IsFatal(wrapped) = true, want false")
	}
}

func TestHelpersOnPlainErrors(t *testing.T) {
	plain := New("boom")

	if IsRetryable(plain) {
		t.Error("IsRetryable(plain) = true, want false")
	}
	if GetSeverity(plain) != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want %v", GetSeverity(plain), SeverityError)
	}
	if GetSeverity(nil) != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want %v", GetSeverity(nil), SeverityDebug)
	}
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if got := Wrap(plain, "ctx").Error(); got != "ctx: boom" {
		t.Errorf("Wrap() = %q, want %q", got, "ctx: boom")
	}
}
