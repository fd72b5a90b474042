package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/realminvite/internal/invites/service"
	"github.com/aussiebroadwan/realminvite/pkg/httpx"
	"github.com/aussiebroadwan/realminvite/pkg/invitesdk"
	"github.com/aussiebroadwan/realminvite/pkg/slogx"
)

// RedeemHandler serves the public invitee endpoints.
type RedeemHandler struct {
	InviteService     *service.InviteService
	RedemptionService *service.RedemptionService
}

func decodeToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req invitesdk.InviteTokenRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, invitesdk.ErrorCodeInvalidRequest, err.Error())
		return "", false
	}
	token := strings.TrimSpace(req.InviteToken)
	if token == "" {
		httpx.WriteError(w, http.StatusBadRequest, invitesdk.ErrorCodeInvalidRequest, "invite_token is required")
		return "", false
	}
	return token, true
}

// HandleValidate godoc
//
//	@Summary		Validate invite token
//	@Description	Checks an invite token without consuming it. Every kind of rejection returns the same error.
//	@Tags			Redemption
//	@Accept			json
//	@Produce		json
//	@Param			realm	path		string							true	"Realm name"
//	@Param			request	body		invitesdk.InviteTokenRequest	true	"Invite token"
//	@Success		200		{object}	invitesdk.ValidateInviteResponse
//	@Failure		400		{object}	invitesdk.ErrorResponse	"invalid_grant"
//	@Failure		429		{object}	invitesdk.ErrorResponse
//	@Router			/v1/realms/{realm}/invites/validate [post].
func (h *RedeemHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	token, ok := decodeToken(w, r)
	if !ok {
		return
	}

	invite, err := h.InviteService.ValidateToken(r.Context(), r.PathValue("realm"), token)
	if err != nil {
		writeServiceError(w, r, "validate invite", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, invitesdk.ValidateInviteResponse{
		Realm:     invite.Realm,
		Email:     invite.Email,
		Roles:     invite.Roles,
		ExpiresAt: invite.ExpiresAt.Unix(),
	})
}

// HandleRedeem godoc
//
//	@Summary		Redeem invite token
//	@Description	Creates the invitee's account in the realm, grants the invite's roles and sends the onboarding email.
//	@Description	A 503 leaves the invite usable; retry after the Retry-After delay.
//	@Tags			Redemption
//	@Accept			json
//	@Produce		json
//	@Param			realm	path		string							true	"Realm name"
//	@Param			request	body		invitesdk.InviteTokenRequest	true	"Invite token"
//	@Success		201		{object}	invitesdk.RedeemInviteResponse
//	@Failure		400		{object}	invitesdk.ErrorResponse	"invalid_grant"
//	@Failure		409		{object}	invitesdk.ErrorResponse	"invite_unusable"
//	@Failure		429		{object}	invitesdk.ErrorResponse
//	@Failure		503		{object}	invitesdk.ErrorResponse	"temporarily_unavailable"
//	@Router			/v1/realms/{realm}/invites/redeem [post].
func (h *RedeemHandler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	token, ok := decodeToken(w, r)
	if !ok {
		return
	}

	res, err := h.RedemptionService.Redeem(r.Context(), r.PathValue("realm"), token)
	if err != nil {
		writeServiceError(w, r, "redeem invite", err)
		return
	}

	slogx.FromContext(r.Context()).Info("invite redeemed",
		slog.String("invite_id", res.InviteID),
		slog.String("realm", res.Realm),
		slog.String("user_id", res.UserID),
	)

	httpx.WriteJSON(w, http.StatusCreated, invitesdk.RedeemInviteResponse{
		Realm:  res.Realm,
		Email:  res.Email,
		UserID: res.UserID,
		Roles:  res.Roles,
	})
}
