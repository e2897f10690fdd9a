// Package domain defines the core value types for snapkeep.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
//
// Codes follow the format SK-<AREA>-<NNNN>; the last four digits mirror the
// closest HTTP status so hosts can classify failures without string matching.
type DomainError struct {
	Code    string // Error code (e.g., "SK-SNAP-5000")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Configuration Errors (CONF)
// ============================================================================

var (
	// ErrInvalidConfig indicates a rejected SnapshotConfig. The previous
	// configuration stays in effect.
	ErrInvalidConfig = NewDomainError("SK-CONF-4000", "invalid snapshot config")
)

// ============================================================================
// Snapshot Errors (SNAP)
// ============================================================================

var (
	// ErrSnapshotWrite indicates the backup file could not be written or renamed.
	ErrSnapshotWrite = NewDomainError("SK-SNAP-5000", "snapshot write failed")

	// ErrStateUnavailable indicates the state provider failed (e.g. no project open).
	ErrStateUnavailable = NewDomainError("SK-SNAP-5001", "project state unavailable")

	// ErrSerialize indicates the project state could not be encoded.
	ErrSerialize = NewDomainError("SK-SNAP-5002", "serialize project state failed")

	// ErrRotation indicates one or more expired backups could not be removed.
	ErrRotation = NewDomainError("SK-SNAP-5003", "backup rotation failed")

	// ErrInsufficientSpace indicates the free-space preflight refused the write.
	ErrInsufficientSpace = NewDomainError("SK-SNAP-5070", "insufficient disk space")

	// ErrBackupNotFound indicates no backup exists for the project.
	ErrBackupNotFound = NewDomainError("SK-SNAP-4040", "backup not found")

	// ErrNotRunning indicates a manual save was requested with no active target.
	ErrNotRunning = NewDomainError("SK-SNAP-4120", "autosave not started")
)

// ============================================================================
// Recovery Errors (RECV)
// ============================================================================

var (
	// ErrCorruptManifest indicates a manifest file could not be parsed.
	ErrCorruptManifest = NewDomainError("SK-RECV-4000", "corrupted recovery manifest")

	// ErrInvalidRecordID indicates a record ID that cannot name a manifest file.
	ErrInvalidRecordID = NewDomainError("SK-RECV-4001", "invalid recovery record id")

	// ErrManifestWrite indicates a manifest could not be persisted or removed.
	ErrManifestWrite = NewDomainError("SK-RECV-5000", "recovery manifest write failed")

	// ErrLedgerNotInitialized indicates Initialize has not been called.
	ErrLedgerNotInitialized = NewDomainError("SK-RECV-4120", "recovery ledger not initialized")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("SK-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("SK-ARG-1002", "missing required argument")
)
