package http

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/realminvite/pkg/httpx"
	"github.com/aussiebroadwan/realminvite/pkg/invitesdk"
)

// RoleLister lists the realm roles an invite may grant. *idpclient.Client
// satisfies it.
type RoleLister interface {
	ListRealmRoles(ctx context.Context, realm string) ([]string, error)
}

type RolesHandler struct {
	Roles RoleLister
}

// ServeHTTP handles the list roles endpoint
//
//	@Summary		List realm roles
//	@Description	Returns the realm's role names from the identity service, sorted. Requires invites:read.
//	@Tags			Roles
//	@Produce		json
//	@Param			realm	path		string	true	"Realm name"
//	@Success		200		{object}	invitesdk.RolesResponse
//	@Failure		401		{object}	invitesdk.ErrorResponse
//	@Failure		403		{object}	invitesdk.ErrorResponse
//	@Failure		503		{object}	invitesdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/realms/{realm}/roles [get].
func (h *RolesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	realm := r.PathValue("realm")

	roles, err := h.Roles.ListRealmRoles(r.Context(), realm)
	if err != nil {
		writeServiceError(w, r, "list realm roles", err)
		return
	}
	if roles == nil {
		roles = []string{}
	}

	httpx.WriteJSON(w, http.StatusOK, invitesdk.RolesResponse{Realm: realm, Roles: roles})
}
