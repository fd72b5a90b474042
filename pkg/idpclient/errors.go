package idpclient

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceUnavailable means the identity service could not be reached or
	// kept failing with 5xx until the retry budget ran out. It is transient.
	ErrServiceUnavailable = errors.New("idpclient: identity service unavailable")

	// ErrUserExists is returned by CreateUser on 409 Conflict.
	ErrUserExists = errors.New("idpclient: user already exists")

	// ErrRoleNotFound is returned by AssignRealmRoles when a role name does not resolve.
	ErrRoleNotFound = errors.New("idpclient: role not found")

	// ErrUnexpectedResponse covers protocol violations such as a 201 without a
	// usable Location header.
	ErrUnexpectedResponse = errors.New("idpclient: unexpected response")

	// ErrUnauthorized is returned when the service rejects our credential.
	ErrUnauthorized = errors.New("idpclient: unauthorized")
)

// APIError is a non-retryable 4xx response. Err, when set, is the sentinel
// the status maps to for this operation.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("idpclient: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("idpclient: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return e.Err }

// UnavailableError wraps the last failure once retries are exhausted.
type UnavailableError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("idpclient: %s: unavailable after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrServiceUnavailable) match.
func (e *UnavailableError) Is(target error) bool { return target == ErrServiceUnavailable }

// statusError is a retryable response (5xx, or 401 after the cached
// credential was dropped). It only escapes wrapped in UnavailableError.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server error: status %d: %s", e.StatusCode, e.Body)
}

// transportError is a failure to get any response at all.
type transportError struct {
	Err error
}

func (e *transportError) Error() string { return "transport: " + e.Err.Error() }
func (e *transportError) Unwrap() error { return e.Err }
