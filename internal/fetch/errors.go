package fetch

import (
	"errors"
	"fmt"
)

// ErrorKind classifies fetch failures for the orchestrator's policy.
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindAuth      ErrorKind = "auth"
	KindQuota     ErrorKind = "quota"
	KindMalformed ErrorKind = "malformed"
)

// Error wraps a platform failure with its classification. Quota errors
// skip the rest of the platform's monitors for the cycle; the other
// kinds stay contained to one monitor.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified fetch error.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the classification, defaulting to network for plain
// transport errors surfaced by http clients.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNetwork
}

// IsQuota reports whether the error should halt the platform's cycle.
func IsQuota(err error) bool {
	return KindOf(err) == KindQuota
}
