package types

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way §7 of the design requires: the queue
// processor, the provider-chain wrapper, and the host-facing API each
// branch on Kind rather than on error text.
type Kind string

const (
	// KindNotFound: requested entity absent or filtered out by lineage.
	KindNotFound Kind = "not_found"
	// KindValidation: input violated a schema constraint.
	KindValidation Kind = "validation_error"
	// KindConflict: duplicate key or lineage violation.
	KindConflict Kind = "conflict"
	// KindRetryable: transient AI provider failure. Never surfaced to the
	// host — consumed entirely by the provider-chain wrapper.
	KindRetryable Kind = "retryable"
	// KindConfig: unauthorized/forbidden/malformed request to an AI
	// provider. Short-circuits fallback.
	KindConfig Kind = "config_error"
	// KindInternal: programming errors or database corruption.
	KindInternal Kind = "internal"
)

// Error wraps a Kind, a message, and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, types.ErrNotFound) style sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return newErr(KindNotFound, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return newErr(KindValidation, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newErr(KindConflict, format, args...)
}

func Retryable(cause error, format string, args ...interface{}) *Error {
	e := newErr(KindRetryable, format, args...)
	e.Cause = cause
	return e
}

func ConfigError(cause error, format string, args ...interface{}) *Error {
	e := newErr(KindConfig, format, args...)
	e.Cause = cause
	return e
}

func Internal(cause error, format string, args ...interface{}) *Error {
	e := newErr(KindInternal, format, args...)
	e.Cause = cause
	return e
}

// Wrap classifies a foreign error as Internal unless it already carries a
// Kind, preserving it with errors.As.
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return &Error{Kind: typed.Kind, Message: fmt.Sprintf(format, args...), Cause: err}
	}
	return Internal(err, format, args...)
}

// KindOf extracts the Kind of err, defaulting to KindInternal for
// unclassified errors.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindInternal
}

// sentinels for errors.Is comparisons against a bare kind.
var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrValidation = &Error{Kind: KindValidation}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrRetryable  = &Error{Kind: KindRetryable}
	ErrConfig     = &Error{Kind: KindConfig}
	ErrInternal   = &Error{Kind: KindInternal}
)
