package backend

import (
	"context"
	"errors"
	"fmt"

	"bank-dashboard/pkg/resilience"
)

// Failure classes for backend calls.
var (
	// ErrTransport covers connectivity failures, unreadable or non-JSON bodies,
	// breaker rejections and cancelled requests
	ErrTransport = errors.New("backend: transport failure")

	// ErrBackend is returned when the backend answers with a non-2xx status
	ErrBackend = errors.New("backend: error response")

	// ErrShape is returned when a 2xx body lacks the expected field
	ErrShape = errors.New("backend: unexpected response format")
)

// UnknownErrorMessage is used when a failed response carries no error text.
const UnknownErrorMessage = "Unknown error"

// RequestError describes a failed backend call.
type RequestError struct {
	Kind     error  // one of ErrTransport, ErrBackend, ErrShape
	Endpoint string // request path, e.g. /api/transactions
	Status   int    // HTTP status, 0 when no response was received
	Message  string // backend error text for ErrBackend
	Err      error  // underlying cause, may be nil
}

func (e *RequestError) Error() string {
	switch {
	case e.Kind == ErrBackend:
		return fmt.Sprintf("%s: %s (status %d): %s", e.Kind, e.Endpoint, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Endpoint)
	}
}

// Unwrap exposes both the failure class and the cause to errors.Is/As.
func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ClassifyError returns a short label for logs and metrics.
func ClassifyError(err error) string {
	if err == nil {
		return "none"
	}

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, resilience.ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrBackend):
		return "backend"
	case errors.Is(err, ErrShape):
		return "shape"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "other"
	}
}

// IsBackendError reports whether err is a non-2xx backend answer.
func IsBackendError(err error) bool {
	return errors.Is(err, ErrBackend)
}

// IsShapeError reports whether err is a malformed 2xx answer.
func IsShapeError(err error) bool {
	return errors.Is(err, ErrShape)
}

// IsTransportError reports whether the call failed before a usable answer arrived.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrTransport)
}
