package invitesdk

// CreateInviteRequest is the body of POST /v1/realms/{realm}/invites.
type CreateInviteRequest struct {
	// Email of the person being invited. Stored lowercased.
	Email string `json:"email"`

	// ExpiresAt is a unix timestamp in seconds. Zero uses the server default.
	ExpiresAt int64 `json:"expires_at,omitempty"`

	// MaxUses defaults to 1 when omitted.
	MaxUses *int `json:"max_uses,omitempty"`

	// Roles to grant on redemption. Empty uses the realm's default roles.
	Roles []string `json:"roles,omitempty"`
}

// ResendInviteRequest is the optional body of POST /v1/invites/{id}/resend.
type ResendInviteRequest struct {
	ExpiresAt int64 `json:"expires_at,omitempty"`
}

// InviteResponse describes an invite. It never includes the token.
type InviteResponse struct {
	ID        string   `json:"id"`
	Realm     string   `json:"realm"`
	Email     string   `json:"email"`
	CreatedBy string   `json:"created_by"`
	CreatedAt int64    `json:"created_at"`
	ExpiresAt int64    `json:"expires_at"`
	MaxUses   int      `json:"max_uses"`
	Uses      int      `json:"uses"`
	Revoked   bool     `json:"revoked"`
	Active    bool     `json:"active"`
	Roles     []string `json:"roles"`
}

// CreateInviteResponse carries the raw invite token. It is returned exactly
// once, on create and on resend.
type CreateInviteResponse struct {
	Invite      InviteResponse `json:"invite"`
	InviteToken string         `json:"invite_token"`
}

type ListInvitesResponse struct {
	Invites []InviteResponse `json:"invites"`
}

type RolesResponse struct {
	Realm string   `json:"realm"`
	Roles []string `json:"roles"`
}

// InviteTokenRequest is the body of the public validate and redeem endpoints.
type InviteTokenRequest struct {
	InviteToken string `json:"invite_token"`
}

// ValidateInviteResponse tells an invitee what they were invited to.
type ValidateInviteResponse struct {
	Realm     string   `json:"realm"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
	ExpiresAt int64    `json:"expires_at"`
}

type RedeemInviteResponse struct {
	Realm  string   `json:"realm"`
	Email  string   `json:"email"`
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
