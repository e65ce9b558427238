package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a rejection. Every command the engine refuses carries
// exactly one kind so callers and the API layer can map it without
// string matching.
type Kind int32

const (
	KindUnknown Kind = iota
	KindStateGuard
	KindAuthorization
	KindValidation
	KindOverflow
	KindInsufficientFunds
	KindAlreadyFinalized
	KindOracleVerification
)

func (k Kind) String() string {
	switch k {
	case KindStateGuard:
		return "state_guard_violation"
	case KindAuthorization:
		return "authorization_failure"
	case KindValidation:
		return "validation_failure"
	case KindOverflow:
		return "arithmetic_overflow"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindAlreadyFinalized:
		return "already_finalized"
	case KindOracleVerification:
		return "oracle_verification_failure"
	default:
		return "unknown"
	}
}

// Error is a classified rejection. It wraps an optional cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches two classified errors by kind, so errors.Is(err, &Error{Kind: k})
// works without identity comparison.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates a classified error.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the kind from an error chain, KindUnknown if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
