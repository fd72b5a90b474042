package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/realminvite/internal/invites/service"
	"github.com/aussiebroadwan/realminvite/pkg/httpx"
	"github.com/aussiebroadwan/realminvite/pkg/idx"
	"github.com/aussiebroadwan/realminvite/pkg/invitesdk"
)

// InvitesHandler serves the operator endpoints.
type InvitesHandler struct {
	InviteService *service.InviteService
	Now           func() time.Time
}

func (h *InvitesHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// inviteID reads the {id} path value. Anything that is not a ULID cannot name
// an invite and gets a 404 without a store lookup.
func inviteID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, invitesdk.ErrorCodeNotFound, service.ErrNotFound.Error())
		return "", false
	}
	return id.String(), true
}

// HandleCreate godoc
//
//	@Summary		Create invite
//	@Description	Creates an invite for one email address in a realm and returns the raw invite token.
//	@Description	The token is only ever returned here and by resend. Requires invites:write.
//	@Tags			Invites
//	@Accept			json
//	@Produce		json
//	@Param			realm	path		string							true	"Realm name"
//	@Param			request	body		invitesdk.CreateInviteRequest	true	"Invite request"
//	@Success		201		{object}	invitesdk.CreateInviteResponse
//	@Failure		400		{object}	invitesdk.ErrorResponse	"invalid_request"
//	@Failure		401		{object}	invitesdk.ErrorResponse
//	@Failure		403		{object}	invitesdk.ErrorResponse
//	@Failure		409		{object}	invitesdk.ErrorResponse	"invite_exists"
//	@Failure		500		{object}	invitesdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/realms/{realm}/invites [post].
func (h *InvitesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req invitesdk.CreateInviteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, invitesdk.ErrorCodeInvalidRequest, err.Error())
		return
	}

	maxUses := 1
	if req.MaxUses != nil {
		maxUses = *req.MaxUses
	}

	invite, token, err := h.InviteService.CreateInvite(ctx, service.CreateInviteParams{
		Realm:     r.PathValue("realm"),
		Email:     req.Email,
		ExpiresAt: expiryFromUnix(req.ExpiresAt),
		MaxUses:   maxUses,
		Roles:     req.Roles,
		CreatedBy: httpx.ActorFromContext(ctx),
	})
	if err != nil {
		writeServiceError(w, r, "create invite", err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, invitesdk.CreateInviteResponse{
		Invite:      toInviteResponse(invite, h.now()),
		InviteToken: token,
	})
}

// HandleList godoc
//
//	@Summary		List invites
//	@Description	Lists every invite, newest first. Requires invites:read.
//	@Tags			Invites
//	@Produce		json
//	@Success		200	{object}	invitesdk.ListInvitesResponse
//	@Failure		401	{object}	invitesdk.ErrorResponse
//	@Failure		403	{object}	invitesdk.ErrorResponse
//	@Failure		500	{object}	invitesdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/invites [get].
func (h *InvitesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	invites, err := h.InviteService.ListInvites(r.Context())
	if err != nil {
		writeServiceError(w, r, "list invites", err)
		return
	}

	now := h.now()
	resp := invitesdk.ListInvitesResponse{
		Invites: make([]invitesdk.InviteResponse, len(invites)),
	}
	for i, inv := range invites {
		resp.Invites[i] = toInviteResponse(inv, now)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet godoc
//
//	@Summary		Get invite
//	@Tags			Invites
//	@Produce		json
//	@Param			id	path		string	true	"Invite ID"
//	@Success		200	{object}	invitesdk.InviteResponse
//	@Failure		404	{object}	invitesdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/invites/{id} [get].
func (h *InvitesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := inviteID(w, r)
	if !ok {
		return
	}
	invite, err := h.InviteService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get invite", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toInviteResponse(invite, h.now()))
}

// HandleRevoke godoc
//
//	@Summary		Revoke invite
//	@Description	Revokes an active invite. Requires invites:write.
//	@Tags			Invites
//	@Param			id	path	string	true	"Invite ID"
//	@Success		204
//	@Failure		404	{object}	invitesdk.ErrorResponse	"not_found"
//	@Failure		409	{object}	invitesdk.ErrorResponse	"invalid_state"
//	@Security		BearerAuth
//	@Router			/v1/invites/{id}/revoke [post].
func (h *InvitesHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	id, ok := inviteID(w, r)
	if !ok {
		return
	}
	if err := h.InviteService.Revoke(r.Context(), id); err != nil {
		writeServiceError(w, r, "revoke invite", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResend godoc
//
//	@Summary		Resend invite
//	@Description	Revokes the invite and creates a replacement for the same realm, email, uses and roles.
//	@Description	Returns the new raw token. Requires invites:write.
//	@Tags			Invites
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Invite ID"
//	@Param			request	body		invitesdk.ResendInviteRequest	false	"Optional new expiry"
//	@Success		201		{object}	invitesdk.CreateInviteResponse
//	@Failure		400		{object}	invitesdk.ErrorResponse
//	@Failure		404		{object}	invitesdk.ErrorResponse
//	@Failure		409		{object}	invitesdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/invites/{id}/resend [post].
func (h *InvitesHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := inviteID(w, r)
	if !ok {
		return
	}

	var req invitesdk.ResendInviteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, invitesdk.ErrorCodeInvalidRequest, err.Error())
		return
	}

	invite, token, err := h.InviteService.ResendInvite(ctx,
		id,
		expiryFromUnix(req.ExpiresAt),
		httpx.ActorFromContext(ctx),
	)
	if err != nil {
		writeServiceError(w, r, "resend invite", err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, invitesdk.CreateInviteResponse{
		Invite:      toInviteResponse(invite, h.now()),
		InviteToken: token,
	})
}

// HandleDelete godoc
//
//	@Summary		Delete invite
//	@Description	Deletes an invite that is no longer active. Requires invites:write.
//	@Tags			Invites
//	@Param			id	path	string	true	"Invite ID"
//	@Success		204
//	@Failure		404	{object}	invitesdk.ErrorResponse
//	@Failure		409	{object}	invitesdk.ErrorResponse	"invite is still active"
//	@Security		BearerAuth
//	@Router			/v1/invites/{id} [delete].
func (h *InvitesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := inviteID(w, r)
	if !ok {
		return
	}
	if _, err := h.InviteService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, "delete invite", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
