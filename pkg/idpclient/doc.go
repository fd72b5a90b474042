/*
Package idpclient is a client for the admin REST API of a Keycloak-style
identity service. The invite service uses it to provision accounts when an
invite is redeemed.

# Credentials

The client authenticates as itself with the client-credentials grant against
the token endpoint of Config.TokenRealm. One credential is shared by every
caller and cached until shortly before it expires:

  - while the remaining lifetime is above the skew margin the cached token is
    used as is;
  - inside the margin one caller refreshes in the background of its request
    while everyone else keeps using the old token;
  - once the token is gone or expired every caller waits for a fresh one.

The margin is min(60s, max(5s, remaining/2)).

# Retries

Every admin call is retried on 5xx responses and transport failures with
exponential backoff, up to Config.MaxAttempts. When attempts run out the
error matches ErrServiceUnavailable. 4xx responses are never retried:

	id, err := client.CreateUser(ctx, "acme", "a@example.com", "a@example.com", true)
	switch {
	case errors.Is(err, idpclient.ErrServiceUnavailable):
		// try again later
	case errors.Is(err, idpclient.ErrUserExists):
		// 409 from the users endpoint
	}
*/
package idpclient
