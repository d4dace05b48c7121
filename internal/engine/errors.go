package engine

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors.
type Kind int

const (
	// KindUnknown is used for errors that did not originate in the engine.
	KindUnknown Kind = iota
	// KindNotFound means an unknown surface or notification id.
	KindNotFound
	// KindUnavailable means no primary display, or a surface provider call failed.
	KindUnavailable
	// KindCapacityExceeded means a surface slot was requested beyond MaxWindows.
	KindCapacityExceeded
	// KindStateConflict means the target exists but is in the wrong state.
	KindStateConflict
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindStateConflict:
		return "state_conflict"
	default:
		return "unknown"
	}
}

// Error is returned by every engine operation that fails.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinel errors for use with errors.Is.
var (
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnavailable      = &Error{Kind: KindUnavailable, Message: "unavailable"}
	ErrCapacityExceeded = &Error{Kind: KindCapacityExceeded, Message: "capacity exceeded"}
	ErrStateConflict    = &Error{Kind: KindStateConflict, Message: "state conflict"}
)

// KindOf returns the Kind of the first engine error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func notFound(op, format string, args ...any) *Error {
	return newError(KindNotFound, op, nil, format, args...)
}

func unavailable(op string, cause error, format string, args ...any) *Error {
	return newError(KindUnavailable, op, cause, format, args...)
}

func capacityExceeded(op, format string, args ...any) *Error {
	return newError(KindCapacityExceeded, op, nil, format, args...)
}

func stateConflict(op, format string, args ...any) *Error {
	return newError(KindStateConflict, op, nil, format, args...)
}
