// Package apperr defines the error kinds the handlers and the orchestrator
// branch on. Every boundary (HTTP, LLM upstream, pillar engine, platform
// send) wraps its failures into one of these kinds so callers can switch
// on classification instead of string matching.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for routing and response shaping.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindAuth                Kind = "auth"
	KindRateLimited         Kind = "rate_limited"
	KindQuotaExceeded       Kind = "quota_exceeded"
	KindUpstreamTimeout     Kind = "upstream_timeout"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindPillarParse         Kind = "pillar_parse"
	KindUserBlocked         Kind = "user_blocked"
	KindNotFound            Kind = "not_found"
	KindInternal            Kind = "internal"
)

// Error carries a kind, a user-safe message and the wrapped cause.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// RateLimited builds a throttle error carrying the wait hint.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    "too many requests",
		RetryAfter: retryAfter,
	}
}

// KindOf extracts the kind from an error chain, KindInternal if untagged.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether the error chain carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// RetryAfterOf extracts the wait hint from a rate-limit error, zero otherwise.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
