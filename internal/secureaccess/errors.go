package secureaccess

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingCredentials — ключ или секрет API не заданы.
var ErrMissingCredentials = errors.New("secure access: API key and secret are not configured")

// StatusError — API ответил кодом, отличным от 200.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("secure access %s: unexpected status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("secure access %s: unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// ThrottleError — API попросил подождать (429 + Retry-After).
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }

// decodeError — ответ пришел, но не разбирается. Повтор не поможет.
type decodeError struct {
	Endpoint string
	Err      error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("secure access %s: decode response: %v", e.Endpoint, e.Err)
}

func (e *decodeError) Unwrap() error { return e.Err }
