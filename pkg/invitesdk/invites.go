package invitesdk

import (
	"context"
	"net/http"
	"net/url"
)

// CreateInvite creates an invite in realm. Requires invites:write.
func (c *Client) CreateInvite(ctx context.Context, realm string, req CreateInviteRequest) (*CreateInviteResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/realms/"+url.PathEscape(realm)+"/invites", req)
	if err != nil {
		return nil, err
	}

	var out CreateInviteResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListInvites returns every invite, newest first. Requires invites:read.
func (c *Client) ListInvites(ctx context.Context) ([]InviteResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/invites", nil)
	if err != nil {
		return nil, err
	}

	var out ListInvitesResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Invites, nil
}

// GetInvite requires invites:read.
func (c *Client) GetInvite(ctx context.Context, id string) (*InviteResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/invites/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var out InviteResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeInvite requires invites:write.
func (c *Client) RevokeInvite(ctx context.Context, id string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/invites/"+url.PathEscape(id)+"/revoke", nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// ResendInvite replaces the invite with a new one and returns its token.
// Requires invites:write.
func (c *Client) ResendInvite(ctx context.Context, id string, req ResendInviteRequest) (*CreateInviteResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/invites/"+url.PathEscape(id)+"/resend", req)
	if err != nil {
		return nil, err
	}

	var out CreateInviteResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteInvite removes an inactive invite. Requires invites:write.
func (c *Client) DeleteInvite(ctx context.Context, id string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/v1/invites/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// ListRealmRoles lists the roles an invite in realm may grant. Requires
// invites:read.
func (c *Client) ListRealmRoles(ctx context.Context, realm string) ([]string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/realms/"+url.PathEscape(realm)+"/roles", nil)
	if err != nil {
		return nil, err
	}

	var out RolesResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Roles, nil
}
