package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/realminvite/internal/invites/domain"
	"github.com/aussiebroadwan/realminvite/pkg/idpclient"
	"github.com/aussiebroadwan/realminvite/pkg/slogx"
)

// IdentityProvisioner is the part of the identity service a redemption needs.
// *idpclient.Client satisfies it.
type IdentityProvisioner interface {
	UserExists(ctx context.Context, realm, email string) (bool, error)
	CreateUser(ctx context.Context, realm, email, username string, enabled bool) (string, error)
	AssignRealmRoles(ctx context.Context, realm, userID string, roles []string) error
	ExecuteActionsEmail(ctx context.Context, realm, userID string, actions []string) error
	DeleteUser(ctx context.Context, realm, userID string) error
}

// Redemption outcomes as reported to the observer.
const (
	OutcomeRedeemed            = "redeemed"
	OutcomeInvalidInvite       = "invalid_invite"
	OutcomeUserExists          = "user_exists"
	OutcomeIdentityUnavailable = "identity_unavailable"
	OutcomeIdentityRejected    = "identity_rejected"
	OutcomeError               = "error"
)

// RedemptionObserver is told how each redemption ended and whether any
// compensating delete succeeded.
type RedemptionObserver interface {
	ObserveRedemption(outcome string)
	ObserveCompensation(ok bool)
}

type nopRedemptionObserver struct{}

func (nopRedemptionObserver) ObserveRedemption(string) {}
func (nopRedemptionObserver) ObserveCompensation(bool) {}

type RedeemResult struct {
	InviteID string
	Realm    string
	Email    string
	UserID   string
	Roles    []string
	Uses     int
	MaxUses  int
}

// RedemptionService turns a valid invite token into an account in the
// identity service.
type RedemptionService struct {
	Invites  *InviteService
	Identity IdentityProvisioner

	// Actions are requested in the onboarding email. Empty means the
	// identity client's defaults.
	Actions []string

	Observer RedemptionObserver
}

// Redeem validates rawToken, provisions the account and consumes one use of
// the invite. When provisioning fails half way the account is deleted again.
// Transient identity failures and rejections of the service account's own
// credential leave the invite usable; anything else revokes it.
func (s *RedemptionService) Redeem(ctx context.Context, realm, rawToken string) (RedeemResult, error) {
	res, err := s.redeem(ctx, realm, rawToken)
	s.observer().ObserveRedemption(outcomeOf(err))
	return res, err
}

func (s *RedemptionService) redeem(ctx context.Context, realm, rawToken string) (RedeemResult, error) {
	log := slogx.FromContext(ctx)

	invite, err := s.Invites.ValidateToken(ctx, realm, rawToken)
	if err != nil {
		return RedeemResult{}, err
	}
	log = log.With(slog.String("invite_id", invite.ID), slog.String("realm", invite.Realm))

	exists, err := s.Identity.UserExists(ctx, invite.Realm, invite.Email)
	if err != nil {
		return RedeemResult{}, s.failBeforeCreate(ctx, log, invite, "user_exists", err)
	}
	if exists {
		log.Warn("invited email already has an account, revoking invite")
		s.revoke(ctx, log, invite.ID)
		return RedeemResult{}, ErrUserAlreadyExists
	}

	userID, err := s.Identity.CreateUser(ctx, invite.Realm, invite.Email, invite.Email, true)
	if err != nil {
		if hasCause(err, idpclient.ErrUserExists) {
			log.Warn("account created concurrently, revoking invite")
			s.revoke(ctx, log, invite.ID)
			return RedeemResult{}, fmt.Errorf("%w: %w", ErrUserAlreadyExists, err)
		}
		return RedeemResult{}, s.failBeforeCreate(ctx, log, invite, "create_user", err)
	}
	log = log.With(slog.String("user_id", userID))

	if err := s.Identity.AssignRealmRoles(ctx, invite.Realm, userID, invite.Roles); err != nil {
		return RedeemResult{}, s.failAfterCreate(ctx, log, invite, userID, "assign_roles", err)
	}
	if err := s.Identity.ExecuteActionsEmail(ctx, invite.Realm, userID, s.Actions); err != nil {
		return RedeemResult{}, s.failAfterCreate(ctx, log, invite, userID, "execute_actions_email", err)
	}

	used, err := s.Invites.UseOnce(ctx, invite.ID)
	if err != nil {
		return RedeemResult{}, s.failUse(ctx, log, invite, userID, err)
	}

	log.Info("invite redeemed", slog.Int("uses", used.Uses), slog.Int("max_uses", used.MaxUses))
	return RedeemResult{
		InviteID: used.ID,
		Realm:    used.Realm,
		Email:    used.Email,
		UserID:   userID,
		Roles:    used.Roles,
		Uses:     used.Uses,
		MaxUses:  used.MaxUses,
	}, nil
}

// failBeforeCreate handles a failure while no account exists yet, so there is
// nothing to compensate.
func (s *RedemptionService) failBeforeCreate(ctx context.Context, log *slog.Logger, invite domain.Invite, step string, err error) error {
	if isCredentialRejection(err) {
		log.Error("identity service refused the service account, invite left intact", slog.String("step", step), slogx.Err(err))
		return fmt.Errorf("%w: %w", ErrIdentityServiceUnavailable, err)
	}
	if isTransientIdentityFailure(err) {
		log.Warn("identity service unavailable, invite left intact", slog.String("step", step), slogx.Err(err))
		return fmt.Errorf("%w: %w", ErrIdentityServiceUnavailable, err)
	}

	log.Error("identity service rejected redemption, revoking invite", slog.String("step", step), slogx.Err(err))
	s.revoke(ctx, log, invite.ID)
	return fmt.Errorf("%w: %w", ErrIdentityClient, err)
}

// failAfterCreate deletes the half provisioned account. The invite is revoked
// unless the failure was transient or a service account rejection, and the
// account is really gone.
func (s *RedemptionService) failAfterCreate(ctx context.Context, log *slog.Logger, invite domain.Invite, userID, step string, err error) error {
	compensated := s.compensate(ctx, log, invite.Realm, userID)

	if leavesInviteUsable(err) && compensated {
		log.Warn("identity service unavailable, account removed and invite left intact",
			slog.String("step", step), slogx.Err(err))
		return fmt.Errorf("%w: %w", ErrIdentityServiceUnavailable, err)
	}

	log.Error("provisioning failed, revoking invite",
		slog.String("step", step),
		slog.Bool("account_removed", compensated),
		slogx.Err(err),
	)
	s.revoke(ctx, log, invite.ID)
	return fmt.Errorf("%w: %w", ErrIdentityClient, err)
}

// failUse handles a failed final consumption. Losing the race for the last
// use is reported as an invalid invite.
func (s *RedemptionService) failUse(ctx context.Context, log *slog.Logger, invite domain.Invite, userID string, err error) error {
	compensated := s.compensate(ctx, log, invite.Realm, userID)

	if errors.Is(err, ErrInvalidInvite) {
		log.Warn("invite consumed concurrently, account removed", slog.Bool("account_removed", compensated))
		return ErrInvalidInvite
	}

	log.Error("failed to consume invite", slog.Bool("account_removed", compensated), slogx.Err(err))
	if !compensated {
		s.revoke(ctx, log, invite.ID)
	}
	return err
}

func (s *RedemptionService) compensate(ctx context.Context, log *slog.Logger, realm, userID string) bool {
	// Run even if the request context is already done.
	ctx = context.WithoutCancel(ctx)

	err := s.Identity.DeleteUser(ctx, realm, userID)
	s.observer().ObserveCompensation(err == nil)
	if err != nil {
		log.Error("compensating account delete failed", slogx.Err(err))
		return false
	}
	return true
}

func (s *RedemptionService) revoke(ctx context.Context, log *slog.Logger, inviteID string) {
	err := s.Invites.Revoke(context.WithoutCancel(ctx), inviteID)
	if err != nil && !errors.Is(err, ErrIllegalState) {
		log.Error("failed to revoke invite", slogx.Err(err))
	}
}

func (s *RedemptionService) observer() RedemptionObserver {
	if s.Observer == nil {
		return nopRedemptionObserver{}
	}
	return s.Observer
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeRedeemed
	case errors.Is(err, ErrInvalidInvite):
		return OutcomeInvalidInvite
	case errors.Is(err, ErrUserAlreadyExists):
		return OutcomeUserExists
	case errors.Is(err, ErrIdentityServiceUnavailable):
		return OutcomeIdentityUnavailable
	case errors.Is(err, ErrIdentityClient):
		return OutcomeIdentityRejected
	default:
		return OutcomeError
	}
}
