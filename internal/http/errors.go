package http

import (
	"fmt"
	"time"
)

// TimeoutError is returned when a request does not complete within its timeout.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out after %v", e.URL, e.Timeout)
}

// ConnectionError is returned for transport failures: refused connections,
// DNS errors, resets and unreadable bodies. Non-2xx responses are not errors.
type ConnectionError struct {
	URL     string
	Elapsed time.Duration
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
