package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/realminvite/internal/invites/service"
	"github.com/aussiebroadwan/realminvite/pkg/httpx"
	"github.com/aussiebroadwan/realminvite/pkg/idpclient"
	"github.com/aussiebroadwan/realminvite/pkg/invitesdk"
	"github.com/aussiebroadwan/realminvite/pkg/slogx"
)

// RetryAfterSeconds is sent with every 503.
var RetryAfterSeconds = 30

// writeServiceError maps service errors onto the API's status codes. Anything
// unrecognised is logged and reported as a 500 with a generic description.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		httpx.WriteError(w, http.StatusBadRequest, invitesdk.ErrorCodeInvalidRequest, err.Error())
	case errors.Is(err, service.ErrInvalidInvite):
		httpx.WriteError(w, http.StatusBadRequest, invitesdk.ErrorCodeInvalidGrant, service.ErrInvalidInvite.Error())
	case errors.Is(err, service.ErrActiveInviteExists):
		httpx.WriteError(w, http.StatusConflict, invitesdk.ErrorCodeInviteExists, service.ErrActiveInviteExists.Error())
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, invitesdk.ErrorCodeNotFound, service.ErrNotFound.Error())
	case errors.Is(err, service.ErrIllegalState):
		httpx.WriteError(w, http.StatusConflict, invitesdk.ErrorCodeInvalidState, err.Error())
	case errors.Is(err, service.ErrIdentityServiceUnavailable), errors.Is(err, idpclient.ErrServiceUnavailable):
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
		httpx.WriteError(w, http.StatusServiceUnavailable, invitesdk.ErrorCodeTemporarilyUnavailable,
			"identity service is unavailable, try again later")
	case errors.Is(err, service.ErrUserAlreadyExists):
		httpx.WriteError(w, http.StatusConflict, invitesdk.ErrorCodeInviteUnusable,
			"an account already exists for this invite")
	case errors.Is(err, service.ErrIdentityClient):
		httpx.WriteError(w, http.StatusConflict, invitesdk.ErrorCodeInviteUnusable,
			"the invite could not be redeemed and has been revoked")
	case errors.Is(err, idpclient.ErrRoleNotFound), errors.Is(err, idpclient.ErrUnexpectedResponse):
		slogx.FromContext(r.Context()).Error(op+" failed", slogx.Err(err))
		httpx.WriteError(w, http.StatusBadGateway, invitesdk.ErrorCodeServerError, "identity service error")
	default:
		slogx.FromContext(r.Context()).Error(op+" failed", slogx.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, invitesdk.ErrorCodeServerError, "internal error")
	}
}
