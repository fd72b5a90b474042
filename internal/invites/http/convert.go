package http

import (
	"time"

	"github.com/aussiebroadwan/realminvite/internal/invites/domain"
	"github.com/aussiebroadwan/realminvite/pkg/invitesdk"
)

func toInviteResponse(inv domain.Invite, now time.Time) invitesdk.InviteResponse {
	return invitesdk.InviteResponse{
		ID:        inv.ID,
		Realm:     inv.Realm,
		Email:     inv.Email,
		CreatedBy: inv.CreatedBy,
		CreatedAt: inv.CreatedAt.Unix(),
		ExpiresAt: inv.ExpiresAt.Unix(),
		MaxUses:   inv.MaxUses,
		Uses:      inv.Uses,
		Revoked:   inv.Revoked,
		Active:    inv.IsActive(now),
		Roles:     inv.Roles,
	}
}

// expiryFromUnix turns an optional unix timestamp into the service's
// optional expiry.
func expiryFromUnix(secs int64) *time.Time {
	if secs == 0 {
		return nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t
}
