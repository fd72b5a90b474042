/*
Package invitesdk is a Go client for the invite service HTTP API. The request
and response types in this package are also the wire types the server uses.

# Operators

Operator endpoints need a bearer token carrying the invites:read or
invites:write scope:

	client := invitesdk.NewClient("https://invites.example.com")
	client.Token = operatorToken

	created, err := client.CreateInvite(ctx, "acme", invitesdk.CreateInviteRequest{
		Email: "new.user@example.com",
		Roles: []string{"member"},
	})
	// created.InviteToken is shown once; hand it to the invitee.

# Invitees

Validating and redeeming a token are public calls:

	if _, err := client.ValidateInvite(ctx, "acme", token); err != nil {
		// invalid, expired, revoked or used up; the API does not say which
	}
	result, err := client.RedeemInvite(ctx, "acme", token)

# Errors

Non-2xx responses are returned as *APIError. Temporary() reports whether the
server asked the caller to try again later:

	var apiErr *invitesdk.APIError
	if errors.As(err, &apiErr) && apiErr.Temporary() {
		time.Sleep(apiErr.RetryAfter)
	}
*/
package invitesdk
