package invitesdk

import (
	"fmt"
	"net/http"
	"time"
)

// Error codes carried in ErrorResponse.Error.
const (
	ErrorCodeInvalidRequest         = "invalid_request"
	ErrorCodeInvalidGrant           = "invalid_grant"
	ErrorCodeInviteExists           = "invite_exists"
	ErrorCodeNotFound               = "not_found"
	ErrorCodeInvalidState           = "invalid_state"
	ErrorCodeInviteUnusable         = "invite_unusable"
	ErrorCodeTemporarilyUnavailable = "temporarily_unavailable"
	ErrorCodeServerError            = "server_error"
)

// APIError is a non-2xx response from the invite service.
type APIError struct {
	StatusCode  int
	Code        string
	Description string

	// RetryAfter is parsed from the Retry-After header, zero when absent.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("invitesdk: %d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("invitesdk: %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// Temporary reports whether retrying the same request later may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusServiceUnavailable || e.StatusCode == http.StatusTooManyRequests
}
