// Package errors provides the closed error-kind taxonomy used by the
// resilience core, plus classification helpers for database, redis and
// network failures.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the discriminant for the closed set of error classifications.
// Dispatch on Kind is exhaustive; callers never duck-type errors.
type Kind int

const (
	// KindNetwork represents a transient network failure (timeout, refused
	// connection, reset). Retryable.
	KindNetwork Kind = iota
	// KindDependency represents a failure of an external dependency
	// (payment provider, messaging provider, AI endpoint). Retryable.
	KindDependency
	// KindStorage represents a database or counter-store failure. Retryable.
	KindStorage
	// KindValidation represents invalid input. Never retryable: the input
	// will not change between attempts.
	KindValidation
	// KindAuth represents an authentication or authorization failure.
	// Never retryable.
	KindAuth
	// KindBusiness represents a business-rule violation. Never retryable.
	KindBusiness
	// KindSystem represents an internal failure of this process.
	KindSystem
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindDependency:
		return "dependency"
	case KindStorage:
		return "storage"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindBusiness:
		return "business"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}

// ParseKind maps a kind name back to its Kind. The second return is false
// for names outside the closed set.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "network":
		return KindNetwork, true
	case "dependency":
		return KindDependency, true
	case "storage":
		return KindStorage, true
	case "validation":
		return KindValidation, true
	case "auth":
		return KindAuth, true
	case "business":
		return KindBusiness, true
	case "system":
		return KindSystem, true
	default:
		return KindSystem, false
	}
}

// Retryable reports whether operations failing with this kind may be
// re-attempted. Validation, auth and business-rule failures fail fast
// because the condition will not change on retry.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindDependency, KindStorage:
		return true
	default:
		return false
	}
}

// Error is a classified error. It wraps the original cause so that
// errors.Is / errors.As keep working through the classification.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind of err. Errors that are not *Error are run
// through Classify.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Classify(err)
}

// BreakerOpenError is returned when a circuit breaker short-circuits a call
// without invoking the underlying operation. It is a distinct condition from
// the operation's own errors so callers can tell "the dependency never got
// called" from "the dependency was called and failed".
type BreakerOpenError struct {
	Service string
	RetryAt time.Time
}

// Error implements the error interface.
func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("service %q temporarily unavailable: circuit open until %s",
		e.Service, e.RetryAt.UTC().Format(time.RFC3339))
}

// IsBreakerOpen reports whether err is a circuit-breaker short circuit.
func IsBreakerOpen(err error) bool {
	var e *BreakerOpenError
	return errors.As(err, &e)
}
