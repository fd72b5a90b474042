package service

import (
	"context"
	"errors"
	"net/http"
	"reflect"

	"github.com/aussiebroadwan/realminvite/pkg/idpclient"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidInvite      = errors.New("invite is invalid or has expired")
	ErrActiveInviteExists = errors.New("an active invite already exists for this email")
	ErrNotFound           = errors.New("invite not found")
	ErrIllegalState       = errors.New("invite is in the wrong state for this operation")

	// ErrIdentityServiceUnavailable is transient: the invite was left as it was
	// and the caller may try again later.
	ErrIdentityServiceUnavailable = errors.New("identity service unavailable")

	// ErrIdentityClient is a permanent rejection by the identity service. The
	// invite has been revoked.
	ErrIdentityClient = errors.New("identity service rejected the request")

	// ErrUserAlreadyExists means an account for the invited email is already
	// present. The invite has been revoked.
	ErrUserAlreadyExists = errors.New("user already exists")
)

// InvalidReason explains internally why a token was rejected. It is logged and
// never returned to callers.
type InvalidReason string

const (
	ReasonMalformedToken InvalidReason = "malformed_token"
	ReasonTokenEncoding  InvalidReason = "token_encoding"
	ReasonNoActiveMatch  InvalidReason = "no_active_match"
	ReasonUseLimit       InvalidReason = "use_limit_reached"
)

// maxCauseDepth bounds the cause walk.
const maxCauseDepth = 32

// findCause walks err's wrap chain breadth first and returns the first error
// match accepts. Comparable errors already seen are skipped so a cyclic chain
// terminates; the depth bound covers the rest.
func findCause(err error, match func(error) bool) error {
	if err == nil {
		return nil
	}

	visited := make(map[error]struct{})
	queue := []error{err}
	for depth := 0; len(queue) > 0 && depth < maxCauseDepth; depth++ {
		var next []error
		for _, e := range queue {
			if e == nil {
				continue
			}
			if isComparable(e) {
				if _, seen := visited[e]; seen {
					continue
				}
				visited[e] = struct{}{}
			}
			if match(e) {
				return e
			}
			switch u := e.(type) {
			case interface{ Unwrap() error }:
				next = append(next, u.Unwrap())
			case interface{ Unwrap() []error }:
				next = append(next, u.Unwrap()...)
			}
		}
		queue = next
	}
	return nil
}

func isComparable(err error) bool {
	return reflect.ValueOf(err).Comparable()
}

func hasCause(err, target error) bool {
	return findCause(err, func(e error) bool { return e == target }) != nil
}

// isTransientIdentityFailure reports whether a provisioning failure should
// leave the invite redeemable.
func isTransientIdentityFailure(err error) bool {
	return findCause(err, func(e error) bool {
		if e == idpclient.ErrServiceUnavailable || e == context.DeadlineExceeded || e == context.Canceled {
			return true
		}
		_, ok := e.(*idpclient.UnavailableError)
		return ok
	}) != nil
}

// isCredentialRejection reports whether the identity service refused the
// service account itself: a bad client secret at the token endpoint, or a 401
// or 403 from the admin API. Nothing about the invite is at fault.
func isCredentialRejection(err error) bool {
	return findCause(err, func(e error) bool {
		if e == idpclient.ErrUnauthorized {
			return true
		}
		ae, ok := e.(*idpclient.APIError)
		return ok && (ae.StatusCode == http.StatusUnauthorized || ae.StatusCode == http.StatusForbidden)
	}) != nil
}

// leavesInviteUsable reports whether a provisioning failure is one the invitee
// can retry after.
func leavesInviteUsable(err error) bool {
	return isTransientIdentityFailure(err) || isCredentialRejection(err)
}

// IsTransient reports whether err means "try again later" rather than "this
// invite can no longer be used".
func IsTransient(err error) bool {
	return hasCause(err, ErrIdentityServiceUnavailable)
}
