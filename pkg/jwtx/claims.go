package jwtx

import (
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the operator access-token claims the invite service accepts.
type Claims struct {
	jwt.RegisteredClaims

	// Permission scopes, e.g. ["invites:read", "invites:write"]. A space
	// separated "scope" claim is also accepted.
	Scopes []string `json:"scopes,omitempty"`
	Scope  string   `json:"scope,omitempty"`

	// PreferredUsername is recorded as the invite creator when present.
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// AllScopes merges the array and space separated scope claims.
func (c *Claims) AllScopes() []string {
	out := slices.Clone(c.Scopes)
	for _, s := range strings.Fields(c.Scope) {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// Actor is the name recorded against operations done with this token.
func (c *Claims) Actor() string {
	if name := strings.TrimSpace(c.PreferredUsername); name != "" {
		return name
	}
	return strings.TrimSpace(c.Subject)
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf,
// allowing leeway either side for clock skew.
func (c *Claims) ValidateExpiry(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
