package invitesdk

import (
	"context"
	"net/http"
	"net/url"
)

// ValidateInvite checks a token without using it. Public.
func (c *Client) ValidateInvite(ctx context.Context, realm, token string) (*ValidateInviteResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost,
		"/v1/realms/"+url.PathEscape(realm)+"/invites/validate",
		InviteTokenRequest{InviteToken: token},
	)
	if err != nil {
		return nil, err
	}

	var out ValidateInviteResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RedeemInvite creates the invitee's account. Public.
func (c *Client) RedeemInvite(ctx context.Context, realm, token string) (*RedeemInviteResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost,
		"/v1/realms/"+url.PathEscape(realm)+"/invites/redeem",
		InviteTokenRequest{InviteToken: token},
	)
	if err != nil {
		return nil, err
	}

	var out RedeemInviteResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}
