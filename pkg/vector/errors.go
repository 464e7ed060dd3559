package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrSpawn is returned when the worker process cannot be launched.
	ErrSpawn = errors.New("worker spawn failed")

	// ErrReadinessTimeout is returned when the worker launched but never
	// reported healthy within the probe budget.
	ErrReadinessTimeout = errors.New("worker readiness timeout")

	// ErrUnexpectedExit is returned when the worker process exits while it
	// was supposed to be starting or serving.
	ErrUnexpectedExit = errors.New("worker exited unexpectedly")

	// ErrTransport is returned when a request to the worker fails before an
	// HTTP response arrives.
	ErrTransport = errors.New("worker request failed")

	// ErrValidation is returned for malformed operation arguments, before any
	// request is issued.
	ErrValidation = errors.New("invalid argument")
)

// BackendError carries a non-2xx response from the worker so callers can
// distinguish backend rejections from transport failures.
type BackendError struct {
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("worker returned status %d: %s", e.StatusCode, e.Body)
}
