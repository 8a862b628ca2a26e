// Package errors provides error types and classification for transfer operations.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Error represents a transfer operation error with context about the operation
// that failed. It wraps the underlying transport or I/O error with the object
// key and, when the failure is tied to a single part, the part number.
type Error struct {
	// Op is the operation that failed (e.g., "upload", "download", "plan")
	Op string

	// Key is the remote object key (if applicable)
	Key string

	// Part is the 1-based part number that triggered the failure, or 0 when
	// the failure is not attributable to a single part
	Part int32

	// Err is the underlying error from the transport, filesystem, or engine
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Key != "" && e.Part > 0 {
		return fmt.Sprintf("transfer.%s %s part %d: %v", e.Op, e.Key, e.Part, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("transfer.%s %s: %v", e.Op, e.Key, e.Err)
	}
	if e.Part > 0 {
		return fmt.Sprintf("transfer.%s part %d: %v", e.Op, e.Part, e.Err)
	}
	return fmt.Sprintf("transfer.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithPart adds part number context to an existing error.
func (e *Error) WithPart(part int32) *Error {
	e.Part = part
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewPartError creates a new Error carrying key and part context.
func NewPartError(op, key string, part int32, err error) *Error {
	return &Error{
		Op:   op,
		Key:  key,
		Part: part,
		Err:  err,
	}
}

// Sentinel errors for terminal transfer failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrSourceUnreadable indicates the source path could not be opened or statted
	ErrSourceUnreadable = errors.New("transfer: source unreadable")

	// ErrSizeUnsupported indicates the object cannot be partitioned within the
	// configured part size and part count limits
	ErrSizeUnsupported = errors.New("transfer: size unsupported by part limits")

	// ErrSourceMutated indicates the source changed between planning and completion
	ErrSourceMutated = errors.New("transfer: source mutated during transfer")

	// ErrChecksumMismatch indicates a transferred part's digest did not match
	// the digest computed locally for the same byte range
	ErrChecksumMismatch = errors.New("transfer: part checksum mismatch")

	// ErrSessionFailed indicates the remote multipart session could not be
	// started, completed, or aborted
	ErrSessionFailed = errors.New("transfer: multipart session failed")

	// ErrInvalidInput indicates the provided input is invalid
	ErrInvalidInput = errors.New("transfer: invalid input")

	// ErrObjectNotFound indicates the requested remote object does not exist
	ErrObjectNotFound = errors.New("transfer: object not found")
)

// IsRetryable reports whether a part-level failure may be retried with a
// fresh range reader. Checksum mismatches are retryable because they may be
// transient transmission corruption. Source mutation, unsupported sizes,
// session failures, and cancellation are terminal.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrSourceMutated),
		errors.Is(err, ErrSourceUnreadable),
		errors.Is(err, ErrSizeUnsupported),
		errors.Is(err, ErrSessionFailed),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrObjectNotFound):
		return false
	default:
		// Transport-level part failures default to retryable; the transport's
		// own retryer has already given up on connection-level errors, but the
		// part as a unit of work can still be resubmitted.
		return true
	}
}

// IsSourceMutated checks if an error indicates source drift was detected.
func IsSourceMutated(err error) bool {
	return errors.Is(err, ErrSourceMutated)
}

// IsSizeUnsupported checks if an error indicates the object is too large for
// the configured limits.
func IsSizeUnsupported(err error) bool {
	return errors.Is(err, ErrSizeUnsupported)
}

// IsInvalidInput checks if an error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsObjectNotFound checks if an error indicates a missing remote object.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}
