// Package corerr provides the tagged error type shared by every component of
// the planner core. Every error boundary (STN, domain, planner, executor,
// coordinator) returns a *Error carrying a stable Kind instead of raising, so
// callers can branch on failure class with errors.Is and still walk the
// wrapped cause chain with errors.As/errors.Unwrap.
package corerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error classes surfaced uniformly across the core.
type Kind string

const (
	InvalidInput         Kind = "invalid_input"
	FixedPointConstraint Kind = "fixed_point_constraint"
	STNInconsistent      Kind = "stn_inconsistent"
	STNUnknown           Kind = "stn_unknown"
	NoPlan               Kind = "no_plan"
	EntityUnavailable    Kind = "entity_unavailable"
	ActionFailed         Kind = "action_failed"
	Timeout              Kind = "timeout"
	Cancelled            Kind = "cancelled"
)

// Error is the tagged-result error shape used at every boundary in the core.
// Context carries diagnostic key-values (node id, offending constraint,
// missing entity, ...) so a failure can be reproduced deterministically given
// the same seed.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Cause   error
}

// New constructs an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind wrapping cause. If cause is
// already an *Error of the same kind it is still wrapped, preserving both
// contexts as distinct frames.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// With returns a copy of e with key set in Context.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Context = make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		cp.Context[k] = v
	}
	cp.Context[key] = value
	return &cp
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, letting callers
// write errors.Is(err, corerr.New(corerr.NoPlan, "")) or compare against the
// sentinel Kind values directly via KindOf.
func (e *Error) Is(target error) bool {
	var te *Error
	if !errors.As(target, &te) {
		return false
	}
	return te.Kind == e.Kind
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
