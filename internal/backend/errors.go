package backend

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured is returned when the client has no backend base URL.
var ErrNotConfigured = errors.New("backend: base URL not configured")

// ErrorKind classifies backend failures.
type ErrorKind string

const (
	// KindTransport covers network failures, timeouts and an open breaker.
	KindTransport ErrorKind = "transport"
	// KindRejected means the envelope carried apiSuccess != 1.
	KindRejected ErrorKind = "rejected"
	// KindStatus means the backend answered with a non-2xx status.
	KindStatus ErrorKind = "status"
	// KindDecode means the response body could not be decoded.
	KindDecode ErrorKind = "decode"
)

// Error describes a failed backend call.
type Error struct {
	Kind    ErrorKind
	Path    string
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "backend: %s %s", e.Kind, e.Path)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Message returns the text to show a user for err. Transport and decode failures
// always use fallback; rejections and status errors prefer the server's message.
func Message(err error, fallback string) string {
	var bErr *Error
	if !errors.As(err, &bErr) {
		return fallback
	}
	switch bErr.Kind {
	case KindRejected, KindStatus:
		if msg := strings.TrimSpace(bErr.Message); msg != "" {
			return msg
		}
	}
	return fallback
}

// IsStatus reports whether err is a backend status error with the given code.
func IsStatus(err error, status int) bool {
	var bErr *Error
	return errors.As(err, &bErr) && bErr.Kind == KindStatus && bErr.Status == status
}

// IsKind reports whether err is a backend error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var bErr *Error
	return errors.As(err, &bErr) && bErr.Kind == kind
}
