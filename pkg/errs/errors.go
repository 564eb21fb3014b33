// Package errs provides structured, user-friendly errors with machine-parseable codes.
package errs

import (
	"errors"
	"fmt"
)

// ErrorCode is a machine-parseable error identifier.
type ErrorCode string

const (
	// General
	ErrUnknown    ErrorCode = "ERR-000"
	ErrInternal   ErrorCode = "ERR-001"
	ErrConfig     ErrorCode = "ERR-002"
	ErrValidation ErrorCode = "ERR-003"

	// Artifact errors
	ErrArtifactNotFound ErrorCode = "ERR-ARTIFACT-001"
	ErrArtifactName     ErrorCode = "ERR-ARTIFACT-002"
	ErrArtifactMetadata ErrorCode = "ERR-ARTIFACT-003"

	// Sandbox errors
	ErrSandboxProvision ErrorCode = "ERR-SANDBOX-001"
	ErrSandboxExec      ErrorCode = "ERR-SANDBOX-002"
	ErrSandboxRelease   ErrorCode = "ERR-SANDBOX-003"
	ErrSandboxNoPython  ErrorCode = "ERR-SANDBOX-004"

	// Install errors
	ErrInstallFailed ErrorCode = "ERR-INSTALL-001"

	// Check errors
	ErrCheckFailed      ErrorCode = "ERR-CHECK-001"
	ErrCheckTimeout     ErrorCode = "ERR-CHECK-002"
	ErrCheckUnsupported ErrorCode = "ERR-CHECK-003"
	ErrCheckModuleName  ErrorCode = "ERR-CHECK-004"

	// Docker errors
	ErrDockerConnect ErrorCode = "ERR-DOCKER-001"
	ErrDockerPull    ErrorCode = "ERR-DOCKER-002"
	ErrDockerRun     ErrorCode = "ERR-DOCKER-003"
	ErrDockerRemove  ErrorCode = "ERR-DOCKER-004"
	ErrDockerExec    ErrorCode = "ERR-DOCKER-005"

	// Host errors
	ErrHostNotFound    ErrorCode = "ERR-HOST-001"
	ErrHostConnect     ErrorCode = "ERR-HOST-002"
	ErrHostTimeout     ErrorCode = "ERR-HOST-003"
	ErrHostKeyMismatch ErrorCode = "ERR-HOST-004"
	ErrHostUnknownKey  ErrorCode = "ERR-HOST-005"

	// State errors
	ErrStateRead  ErrorCode = "ERR-STATE-001"
	ErrStateWrite ErrorCode = "ERR-STATE-002"
)

// SmokeError is the standard structured error type used across all pipsmoke packages.
type SmokeError struct {
	Code     ErrorCode // Machine-parseable error code
	Op       string    // Operation chain, e.g., "verify.install.pip"
	Artifact string    // Resource identifier (artifact basename, host name, etc.)
	Cause    error     // Wrapped upstream error
	Advice   string    // Human-readable remediation hint
}

func (e *SmokeError) Error() string {
	if e.Artifact != "" {
		return fmt.Sprintf("[%s] %s (%s): %v", e.Code, e.Op, e.Artifact, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Op, e.Cause)
}

func (e *SmokeError) Unwrap() error {
	return e.Cause
}

// UserMessage returns the formatted user-facing error message with remediation advice.
func (e *SmokeError) UserMessage() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Op)
	if e.Artifact != "" {
		msg += fmt.Sprintf(" (resource: %s)", e.Artifact)
	}
	if e.Advice != "" {
		msg += fmt.Sprintf("\n  → %s", e.Advice)
	}
	return msg
}

// New creates a new SmokeError.
func New(code ErrorCode, op string, cause error) *SmokeError {
	return &SmokeError{Code: code, Op: op, Cause: cause}
}

// Newf creates a new SmokeError with a formatted message as the cause.
func Newf(code ErrorCode, op, format string, args ...any) *SmokeError {
	return &SmokeError{Code: code, Op: op, Cause: fmt.Errorf(format, args...)}
}

// WithArtifact sets the artifact/resource identifier on a SmokeError.
func (e *SmokeError) WithArtifact(artifact string) *SmokeError {
	e.Artifact = artifact
	return e
}

// WithAdvice sets the human-readable remediation hint on a SmokeError.
func (e *SmokeError) WithAdvice(advice string) *SmokeError {
	e.Advice = advice
	return e
}

// Wrap wraps an existing error as a SmokeError at a new operation boundary.
func Wrap(err error, code ErrorCode, op string) *SmokeError {
	if err == nil {
		return nil
	}
	return &SmokeError{Code: code, Op: op, Cause: err}
}

// IsCode reports whether err is a SmokeError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *SmokeError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// AsSmoke extracts the *SmokeError from err, or returns nil.
func AsSmoke(err error) *SmokeError {
	var se *SmokeError
	if errors.As(err, &se) {
		return se
	}
	return nil
}
