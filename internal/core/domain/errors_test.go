package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("SK-TEST-1000", "test message"),
			expected: "[SK-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("SK-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[SK-TEST-1001] test message: extra info",
		},
		{
			name:     "error with details and cause",
			err:      NewDomainError("SK-TEST-1002", "write").WithDetails("backup_1.json").WithCause(fmt.Errorf("disk full")),
			expected: "[SK-TEST-1002] write: backup_1.json: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("SK-TEST-1000", "message 1")
	err2 := NewDomainError("SK-TEST-1000", "message 2")
	err3 := NewDomainError("SK-TEST-1001", "message 1")

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := NewDomainError("SK-TEST-1000", "wrapper").WithCause(cause)

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	errNoCause := NewDomainError("SK-TEST-1000", "no cause")
	if errors.Unwrap(errNoCause) != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestDomainError_WithDetails(t *testing.T) {
	original := NewDomainError("SK-TEST-1000", "original message")
	withDetails := original.WithDetails("additional details")

	if original.Details != "" {
		t.Error("WithDetails should not modify original error")
	}
	if withDetails.Details != "additional details" {
		t.Errorf("Details = %q, want %q", withDetails.Details, "additional details")
	}
	if withDetails.Code != original.Code {
		t.Errorf("Code = %q, want %q", withDetails.Code, original.Code)
	}
}

func TestDomainError_Wrap(t *testing.T) {
	cause := fmt.Errorf("permission denied")
	wrapped := ErrSnapshotWrite.Wrap(cause)

	if ErrSnapshotWrite.Cause != nil {
		t.Error("Wrap should not modify the sentinel")
	}
	if !errors.Is(wrapped, ErrSnapshotWrite) {
		t.Error("wrapped error should match sentinel")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped error should match cause")
	}
}

func TestIsDomainError(t *testing.T) {
	if !IsDomainError(ErrBackupNotFound, "SK-SNAP-4040") {
		t.Error("IsDomainError should return true for matching code")
	}
	if IsDomainError(ErrBackupNotFound, "SK-SNAP-9999") {
		t.Error("IsDomainError should return false for non-matching code")
	}
	if !IsDomainError(ErrBackupNotFound, "") {
		t.Error("IsDomainError with empty code should match any DomainError")
	}
	if IsDomainError(fmt.Errorf("regular error"), "") {
		t.Error("IsDomainError should return false for non-DomainError")
	}

	wrapped := fmt.Errorf("wrapped: %w", ErrCorruptManifest)
	if !IsDomainError(wrapped, "SK-RECV-4000") {
		t.Error("IsDomainError should work with wrapped errors")
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"domain error", ErrInvalidConfig, "SK-CONF-4000"},
		{"wrapped domain error", fmt.Errorf("wrapped: %w", ErrRotation), "SK-SNAP-5003"},
		{"regular error", fmt.Errorf("regular error"), ""},
		{"nil error", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err  *DomainError
		code string
	}{
		{ErrInvalidConfig, "SK-CONF-4000"},

		{ErrSnapshotWrite, "SK-SNAP-5000"},
		{ErrStateUnavailable, "SK-SNAP-5001"},
		{ErrSerialize, "SK-SNAP-5002"},
		{ErrRotation, "SK-SNAP-5003"},
		{ErrInsufficientSpace, "SK-SNAP-5070"},
		{ErrBackupNotFound, "SK-SNAP-4040"},
		{ErrNotRunning, "SK-SNAP-4120"},

		{ErrCorruptManifest, "SK-RECV-4000"},
		{ErrInvalidRecordID, "SK-RECV-4001"},
		{ErrManifestWrite, "SK-RECV-5000"},
		{ErrLedgerNotInitialized, "SK-RECV-4120"},

		{ErrInvalidArgument, "SK-ARG-1001"},
		{ErrMissingArgument, "SK-ARG-1002"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Error code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Error message should not be empty")
			}
		})
	}
}
