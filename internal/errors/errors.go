// Package errors provides centralized error definitions and error handling utilities
// for the claim store agent. It defines the collection error taxonomy, error
// constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Every failure the agent can observe falls into one of four categories:
//   - FilenameError: a name in a watched directory does not follow the
//     message-body grammar (expected noise, silently skipped)
//   - ConflictError: a Lock lost a race against another collector
//     (expected under concurrency, retried next pass)
//   - CollectionError: Gather or Release failed after a successful Lock
//     (unexpected, logged as a warning, retried next pass)
//   - ConfigError: the configuration cannot be used (fatal at startup)
//
// # Usage
//
//	err := errors.NewConflictError("lock", src, cause).WithTarget(dst)
//
//	if errors.Is(err, errors.ErrFileConflict) { ... }
//
//	var ce *errors.CollectionError
//	if errors.As(err, &ce) { ... }
//
//	switch errors.GetSeverity(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidFilename indicates that a file name does not follow the
	// message-body grammar.
	ErrInvalidFilename = New("invalid message body filename")
	// ErrFileConflict indicates that a rename lost a race: the target name
	// already exists or the source vanished.
	ErrFileConflict = New("file conflict")
	// ErrCollectionFailed indicates that a locked file could not be gathered
	// or released.
	ErrCollectionFailed = New("collection failed")
	// ErrConfigurationInvalid indicates that the agent configuration is unusable.
	ErrConfigurationInvalid = New("configuration invalid")
)

var (
	// ErrNotOwner indicates that a transition was attempted by an owner that
	// does not hold the lock.
	ErrNotOwner = New("caller does not own the lock")
	// ErrNotLocked indicates that a transition requiring the Locked state was
	// attempted on a file in another state.
	ErrNotLocked = New("file is not locked")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// AgentError is the base interface for all claim store agent errors.
type AgentError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the condition is transient and the file
	// will be picked up again on a later pass.
	IsRetryable() bool
}

type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

func (e *baseError) Unwrap() error      { return e.cause }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) IsRetryable() bool  { return e.retryable }

// format renders "<prefix> [k=v, ...]: message: cause".
func (e *baseError) format(prefix string, parts []string) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	msg := prefix
	if e.message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.message)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// -----------------------------------------------------------------------------
// FilenameError
// -----------------------------------------------------------------------------

// FilenameError reports a name that could not be decoded.
//
// Example:
//
//	err := errors.NewFilenameError("some.other.invalid.file", "unknown kind")
//	fmt.Println(err) // invalid filename [name=some.other.invalid.file]: unknown kind
type FilenameError struct {
	baseError
	Name string
}

// NewFilenameError creates a FilenameError for name.
func NewFilenameError(name, reason string) *FilenameError {
	return &FilenameError{
		baseError: baseError{
			message:  reason,
			severity: SeverityDebug,
		},
		Name: name,
	}
}

// Error returns the formatted error message.
func (e *FilenameError) Error() string {
	return e.format("invalid filename", []string{fmt.Sprintf("name=%s", e.Name)})
}

// Is matches ErrInvalidFilename and any other *FilenameError.
func (e *FilenameError) Is(target error) bool {
	if _, ok := target.(*FilenameError); ok {
		return true
	}
	return target == ErrInvalidFilename
}

// -----------------------------------------------------------------------------
// ConflictError
// -----------------------------------------------------------------------------

// ConflictError reports a rename that lost a race against another collector.
//
// Example:
//
//	err := errors.NewConflictError("lock", "/in/abc.trk", os.ErrNotExist)
//	err = err.WithTarget("/in/abc.trk.20240101000000000.locked")
type ConflictError struct {
	baseError
	Operation string
	Source    string
	Target    string
}

// NewConflictError creates a ConflictError for op on source.
func NewConflictError(op, source string, cause error) *ConflictError {
	return &ConflictError{
		baseError: baseError{
			cause:     cause,
			severity:  SeverityInfo,
			retryable: true,
		},
		Operation: op,
		Source:    source,
	}
}

// WithTarget adds the rename target to the error context.
func (e *ConflictError) WithTarget(target string) *ConflictError {
	e.Target = target
	return e
}

// Error returns the formatted error message.
func (e *ConflictError) Error() string {
	parts := []string{fmt.Sprintf("op=%s", e.Operation), fmt.Sprintf("source=%s", e.Source)}
	if e.Target != "" {
		parts = append(parts, fmt.Sprintf("target=%s", e.Target))
	}
	return e.format("file conflict", parts)
}

// Is matches ErrFileConflict, any other *ConflictError, and the cause chain.
func (e *ConflictError) Is(target error) bool {
	if _, ok := target.(*ConflictError); ok {
		return true
	}
	if target == ErrFileConflict {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// -----------------------------------------------------------------------------
// CollectionError
// -----------------------------------------------------------------------------

// CollectionError reports a failed Gather, Release or trailing Unlock.
//
// Example:
//
//	err := errors.NewCollectionError("gather", cause).WithFile("abc.trk").WithKind("trk")
type CollectionError struct {
	baseError
	Step string
	File string
	Kind string
}

// NewCollectionError creates a CollectionError for the failed step.
func NewCollectionError(step string, cause error) *CollectionError {
	return &CollectionError{
		baseError: baseError{
			cause:     cause,
			severity:  SeverityWarning,
			retryable: true,
		},
		Step: step,
	}
}

// WithFile adds the file name to the error context.
func (e *CollectionError) WithFile(name string) *CollectionError {
	e.File = name
	return e
}

// WithKind adds the message body kind to the error context.
func (e *CollectionError) WithKind(kind string) *CollectionError {
	e.Kind = kind
	return e
}

// Error returns the formatted error message.
func (e *CollectionError) Error() string {
	parts := []string{fmt.Sprintf("step=%s", e.Step)}
	if e.File != "" {
		parts = append(parts, fmt.Sprintf("file=%s", e.File))
	}
	if e.Kind != "" {
		parts = append(parts, fmt.Sprintf("kind=%s", e.Kind))
	}
	return e.format("collection failed", parts)
}

// Is matches ErrCollectionFailed, any other *CollectionError, and the cause chain.
func (e *CollectionError) Is(target error) bool {
	if _, ok := target.(*CollectionError); ok {
		return true
	}
	if target == ErrCollectionFailed {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// -----------------------------------------------------------------------------
// ConfigError
// -----------------------------------------------------------------------------

// ConfigError reports configuration that prevents the agent from starting.
type ConfigError struct {
	baseError
	Source string
}

// NewConfigError creates a ConfigError.
func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityCritical,
		},
	}
}

// WithSource adds the configuration file that was loaded.
func (e *ConfigError) WithSource(path string) *ConfigError {
	e.Source = path
	return e
}

// Error returns the formatted error message.
func (e *ConfigError) Error() string {
	var parts []string
	if e.Source != "" {
		parts = append(parts, fmt.Sprintf("source=%s", e.Source))
	}
	return e.format("configuration invalid", parts)
}

// Is matches ErrConfigurationInvalid, any other *ConfigError, and the cause chain.
func (e *ConfigError) Is(target error) bool {
	if _, ok := target.(*ConfigError); ok {
		return true
	}
	if target == ErrConfigurationInvalid {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a per-file condition that a
// later collection pass may resolve.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var agentErr AgentError
	if As(err, &agentErr) {
		return agentErr.IsRetryable()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement AgentError.
//
// Example:
//
//	switch errors.GetSeverity(err) {
//	case errors.SeverityWarning:
//	    log.Warn("collection failed", "error", err)
//	case errors.SeverityInfo:
//	    log.Debug("lost lock race", "error", err)
//	}
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var agentErr AgentError
	if As(err, &agentErr) {
		return agentErr.Severity()
	}
	return SeverityError
}

// IsFatal reports whether the error must stop the agent. Only configuration
// errors are fatal; every per-file error is contained within its pass.
func IsFatal(err error) bool {
	return err != nil && Is(err, ErrConfigurationInvalid)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "list check-in directory")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
