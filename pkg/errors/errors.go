// Package errors defines the host's unified failure taxonomy.
//
// Errors that cross the facade boundary are *HostError values so that
// callers can branch on Kind with errors.Is / errors.As instead of
// string-matching messages. The one exception is a sandbox error
// returned by Host.CallActor, which is passed back as a plain error
// carrying the sandbox's text unchanged.
package errors

import (
	"fmt"
	stderrors "errors"
)

// Kind classifies why an operation failed.
type Kind string

const (
	KindAuthorization     Kind = "authorization"
	KindClaimsValidation  Kind = "claims_validation"
	KindCapabilityProvider Kind = "capability_provider"
	KindNoSuchSubscriber  Kind = "no_such_subscriber"
	KindIO                Kind = "io"
	KindSerialization     Kind = "serialization"
	KindMiscHost          Kind = "misc_host"
)

// HostError wraps an underlying cause with a Kind and the operation
// that produced it.
type HostError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *HostError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *HostError) Unwrap() error { return e.Err }

// Is reports whether target is a *HostError with the same Kind,
// enabling errors.Is(err, errors.New(KindAuthorization, "", nil)).
func (e *HostError) Is(target error) bool {
	t, ok := target.(*HostError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs a *HostError for op with the given kind and cause.
func New(kind Kind, op string, err error) *HostError {
	return &HostError{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted cause message.
func Newf(kind Kind, op, format string, args ...any) *HostError {
	return &HostError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of err if it (or something it wraps) is a
// *HostError, and false otherwise.
func KindOf(err error) (Kind, bool) {
	var he *HostError
	if stderrors.As(err, &he) {
		return he.Kind, true
	}
	return "", false
}
