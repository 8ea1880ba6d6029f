// Package errors defines the engine fault taxonomy. Faults are local
// to the originating session's request cycle: they are reported back on
// that session and never crash shared state or other sessions.
package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	// ErrInvalidRequest covers malformed or missing fields. No state change.
	ErrInvalidRequest = fmt.Errorf("invalid request")
	// ErrUnauthorized covers a missing or invalid identity at connection
	// time. The connection is refused and no session is created.
	ErrUnauthorized = fmt.Errorf("unauthorized")
	// ErrStoreUnavailable covers durable store I/O failures or timeouts.
	// The operation is not retried by the engine (at-most-once).
	ErrStoreUnavailable = fmt.Errorf("store unavailable")
	// ErrNotFound covers references to conversations or users that do
	// not exist.
	ErrNotFound = fmt.Errorf("not found")

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
)

// Code maps a fault to the wire-level error code surfaced to the
// originating session.
func Code(err error) string {
	switch {
	case stderrors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case stderrors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case stderrors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case stderrors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
