package domain

import "time"

// Invite is a time-boxed, use-limited grant to provision one account in a
// realm of the identity service. Only the keyed hash of the token is kept.
type Invite struct {
	ID        string
	Realm     string
	TokenHash string // lowercase hex MAC of "{token}:{salt}"
	Salt      string // base64url, unique per invite
	Email     string // trimmed and lowercased
	CreatedBy string
	CreatedAt time.Time
	ExpiresAt time.Time
	MaxUses   int
	Uses      int
	Revoked   bool
	Roles     []string // non-empty, deduplicated, in the order given
}

// IsActive reports whether the invite can still be redeemed at now.
func (i Invite) IsActive(now time.Time) bool {
	return !i.Revoked && i.ExpiresAt.After(now) && i.Uses < i.MaxUses
}

// IsExpired reports whether the invite's lifetime has passed at now.
func (i Invite) IsExpired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}

// RemainingUses is how many more redemptions the invite allows.
func (i Invite) RemainingUses() int {
	if i.Uses >= i.MaxUses {
		return 0
	}
	return i.MaxUses - i.Uses
}
