package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/realminvite/internal/invites/domain"
	"github.com/aussiebroadwan/realminvite/internal/invites/store"
	"github.com/aussiebroadwan/realminvite/pkg/cryptox"
	"github.com/aussiebroadwan/realminvite/pkg/idx"
	"github.com/aussiebroadwan/realminvite/pkg/slogx"
)

// InviteConfig bounds invite lifetimes and supplies per realm default roles.
type InviteConfig struct {
	DefaultExpiry time.Duration
	MinExpiry     time.Duration
	MaxExpiry     time.Duration

	// DefaultRoles are assigned when an invite is created without roles.
	DefaultRoles map[string][]string
}

const (
	DefaultInviteExpiry    = 72 * time.Hour
	DefaultMinInviteExpiry = 5 * time.Minute
	DefaultMaxInviteExpiry = 30 * 24 * time.Hour
)

func (c InviteConfig) withDefaults() InviteConfig {
	if c.DefaultExpiry <= 0 {
		c.DefaultExpiry = DefaultInviteExpiry
	}
	if c.MinExpiry <= 0 {
		c.MinExpiry = DefaultMinInviteExpiry
	}
	if c.MaxExpiry <= 0 {
		c.MaxExpiry = DefaultMaxInviteExpiry
	}
	return c
}

type InviteService struct {
	Store  store.Store
	Codec  *cryptox.TokenCodec
	Config InviteConfig
	Now    func() time.Time
}

func NewInviteService(st store.Store, codec *cryptox.TokenCodec, cfg InviteConfig) *InviteService {
	return &InviteService{
		Store:  st,
		Codec:  codec,
		Config: cfg.withDefaults(),
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateInviteParams describes a new invite. A nil ExpiresAt means
// now+DefaultExpiry; empty Roles means the realm's default roles.
type CreateInviteParams struct {
	Realm     string
	Email     string
	ExpiresAt *time.Time
	MaxUses   int
	Roles     []string
	CreatedBy string
}

// CreateInvite validates p, clears out stale invites for the same realm and
// email, and stores a new invite. The raw token is returned here and nowhere
// else.
func (s *InviteService) CreateInvite(ctx context.Context, p CreateInviteParams) (domain.Invite, string, error) {
	log := slogx.FromContext(ctx)

	var (
		invite domain.Invite
		raw    string
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		invite, raw, err = s.createInTx(ctx, tx, p)
		return err
	})
	if err != nil {
		return domain.Invite{}, "", err
	}

	log.Info("invite created",
		slog.String("invite_id", invite.ID),
		slog.String("realm", invite.Realm),
		slog.String("created_by", invite.CreatedBy),
		slog.Int("max_uses", invite.MaxUses),
		slog.Any("roles", invite.Roles),
		slog.Time("expires_at", invite.ExpiresAt),
	)
	return invite, raw, nil
}

func (s *InviteService) createInTx(ctx context.Context, tx store.Tx, p CreateInviteParams) (domain.Invite, string, error) {
	log := slogx.FromContext(ctx)
	now := s.now()

	invite, err := s.buildInvite(p, now)
	if err != nil {
		return domain.Invite{}, "", err
	}

	// Lazy cleanup so stale rows do not block the unique (realm, email) slot.
	expired, err := tx.Invites().RevokeExpiredInvites(ctx, invite.Realm, invite.Email, now)
	if err != nil {
		return domain.Invite{}, "", fmt.Errorf("revoke expired invites: %w", err)
	}
	overused, err := tx.Invites().RevokeOverusedInvites(ctx, invite.Realm, invite.Email)
	if err != nil {
		return domain.Invite{}, "", fmt.Errorf("revoke overused invites: %w", err)
	}
	if expired+overused > 0 {
		log.Debug("revoked stale invites",
			slog.String("realm", invite.Realm),
			slog.Int64("expired", expired),
			slog.Int64("overused", overused),
		)
	}

	active, err := tx.Invites().HasActiveInvite(ctx, invite.Realm, invite.Email, now)
	if err != nil {
		return domain.Invite{}, "", fmt.Errorf("check active invite: %w", err)
	}
	if active {
		log.Warn("invite already pending for email", slog.String("realm", invite.Realm))
		return domain.Invite{}, "", ErrActiveInviteExists
	}

	token, err := s.Codec.GenerateToken()
	if err != nil {
		return domain.Invite{}, "", err
	}
	salt, err := s.Codec.GenerateSalt()
	if err != nil {
		return domain.Invite{}, "", err
	}
	if invite.TokenHash, err = s.Codec.HashToken(token, salt); err != nil {
		return domain.Invite{}, "", err
	}
	invite.Salt = salt

	if err := tx.Invites().CreateInvite(ctx, invite); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Invite{}, "", ErrActiveInviteExists
		}
		log.Error("failed to store invite", slog.String("invite_id", invite.ID), slogx.Err(err))
		return domain.Invite{}, "", err
	}

	return invite, cryptox.FormatRawToken(token, salt), nil
}

func (s *InviteService) buildInvite(p CreateInviteParams, now time.Time) (domain.Invite, error) {
	realm := strings.TrimSpace(p.Realm)
	if realm == "" {
		return domain.Invite{}, fmt.Errorf("%w: realm is required", ErrValidation)
	}

	email := NormalizeEmail(p.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.Invite{}, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}

	createdBy := strings.TrimSpace(p.CreatedBy)
	if createdBy == "" {
		return domain.Invite{}, fmt.Errorf("%w: created_by is required", ErrValidation)
	}

	if p.MaxUses < 1 {
		return domain.Invite{}, fmt.Errorf("%w: max_uses must be at least 1", ErrValidation)
	}

	expiresAt := now.Add(s.Config.DefaultExpiry)
	if p.ExpiresAt != nil {
		expiresAt = p.ExpiresAt.UTC()
	}
	if earliest := now.Add(s.Config.MinExpiry); expiresAt.Before(earliest) {
		return domain.Invite{}, fmt.Errorf("%w: expires_at must be at least %s from now", ErrValidation, s.Config.MinExpiry)
	}
	if latest := now.Add(s.Config.MaxExpiry); expiresAt.After(latest) {
		return domain.Invite{}, fmt.Errorf("%w: expires_at must be at most %s from now", ErrValidation, s.Config.MaxExpiry)
	}

	roles := normalizeRoles(p.Roles)
	if len(roles) == 0 {
		roles = normalizeRoles(s.Config.DefaultRoles[realm])
	}
	if len(roles) == 0 {
		return domain.Invite{}, fmt.Errorf("%w: no roles given and realm %q has no default roles", ErrValidation, realm)
	}

	return domain.Invite{
		ID:        idx.NewAt(now).String(),
		Realm:     realm,
		Email:     email,
		CreatedBy: createdBy,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		MaxUses:   p.MaxUses,
		Roles:     roles,
	}, nil
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeRoles trims names, drops blanks and duplicates, keeps order.
func normalizeRoles(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" || slices.Contains(out, r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ValidateToken resolves a raw token to its active invite without changing
// anything. Every kind of rejection is reported as ErrInvalidInvite.
func (s *InviteService) ValidateToken(ctx context.Context, realm, rawToken string) (domain.Invite, error) {
	log := slogx.FromContext(ctx)

	reject := func(reason InvalidReason) (domain.Invite, error) {
		log.Warn("invite token rejected",
			slog.String("realm", realm),
			slog.String("reason", string(reason)),
		)
		return domain.Invite{}, ErrInvalidInvite
	}

	token, salt, err := cryptox.ParseRawToken(rawToken)
	if err != nil {
		return reject(ReasonMalformedToken)
	}
	hash, err := s.Codec.HashToken(token, salt)
	if err != nil {
		return reject(ReasonTokenEncoding)
	}

	invite, err := s.Store.Invites().GetActiveInviteByTokenHash(ctx, strings.TrimSpace(realm), hash, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return reject(ReasonNoActiveMatch)
		}
		log.Error("failed to look up invite", slogx.Err(err))
		return domain.Invite{}, err
	}
	return invite, nil
}

// UseOnce consumes one use of an active invite. The row is locked for the
// whole check-and-increment, so concurrent callers get at most MaxUses
// successes between them.
func (s *InviteService) UseOnce(ctx context.Context, id string) (domain.Invite, error) {
	log := slogx.FromContext(ctx)

	var invite domain.Invite
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		invite, err = tx.Invites().GetActiveInviteByIDForUpdate(ctx, id, s.now())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.Warn("invite use rejected",
					slog.String("invite_id", id),
					slog.String("reason", string(ReasonNoActiveMatch)),
				)
				return ErrInvalidInvite
			}
			return err
		}

		if invite.Uses+1 > invite.MaxUses {
			log.Warn("invite use rejected",
				slog.String("invite_id", id),
				slog.String("reason", string(ReasonUseLimit)),
			)
			return ErrInvalidInvite
		}

		if err := tx.Invites().IncrementInviteUses(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidInvite
			}
			return err
		}
		invite.Uses++
		return nil
	})
	if err != nil {
		return domain.Invite{}, err
	}

	log.Debug("invite used",
		slog.String("invite_id", invite.ID),
		slog.Int("uses", invite.Uses),
		slog.Int("max_uses", invite.MaxUses),
	)
	return invite, nil
}

// Revoke revokes an active invite. Revoking an invite that is already
// revoked, expired or used up fails with ErrIllegalState.
func (s *InviteService) Revoke(ctx context.Context, id string) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Invites().GetInviteByID(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		if _, err := tx.Invites().GetActiveInviteByIDForUpdate(ctx, id, s.now()); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: invite is not active", ErrIllegalState)
			}
			return err
		}
		return tx.Invites().RevokeInvite(ctx, id)
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("invite revoked", slog.String("invite_id", id))
	return nil
}

// Delete removes an invite that is no longer active.
func (s *InviteService) Delete(ctx context.Context, id string) (domain.Invite, error) {
	var invite domain.Invite
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		invite, err = tx.Invites().GetInviteByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if invite.IsActive(s.now()) {
			return fmt.Errorf("%w: revoke the invite before deleting it", ErrIllegalState)
		}
		return tx.Invites().DeleteInvite(ctx, id)
	})
	if err != nil {
		return domain.Invite{}, err
	}

	slogx.FromContext(ctx).Info("invite deleted", slog.String("invite_id", id))
	return invite, nil
}

// ResendInvite replaces an invite with a fresh one for the same realm, email,
// roles and use limit. The old token stops working.
func (s *InviteService) ResendInvite(ctx context.Context, id string, expiresAt *time.Time, createdBy string) (domain.Invite, string, error) {
	var (
		invite domain.Invite
		raw    string
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		old, err := tx.Invites().GetInviteByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !old.Revoked {
			if err := tx.Invites().RevokeInvite(ctx, old.ID); err != nil {
				return fmt.Errorf("revoke old invite: %w", err)
			}
		}

		invite, raw, err = s.createInTx(ctx, tx, CreateInviteParams{
			Realm:     old.Realm,
			Email:     old.Email,
			ExpiresAt: expiresAt,
			MaxUses:   old.MaxUses,
			Roles:     old.Roles,
			CreatedBy: createdBy,
		})
		return err
	})
	if err != nil {
		return domain.Invite{}, "", err
	}

	slogx.FromContext(ctx).Info("invite resent",
		slog.String("old_invite_id", id),
		slog.String("invite_id", invite.ID),
		slog.Time("expires_at", invite.ExpiresAt),
	)
	return invite, raw, nil
}

func (s *InviteService) Get(ctx context.Context, id string) (domain.Invite, error) {
	invite, err := s.Store.Invites().GetInviteByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invite{}, ErrNotFound
		}
		return domain.Invite{}, err
	}
	return invite, nil
}

func (s *InviteService) ListInvites(ctx context.Context) ([]domain.Invite, error) {
	return s.Store.Invites().ListInvites(ctx)
}

// PurgeExpired deletes invites that expired more than retention ago.
func (s *InviteService) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)
	n, err := s.Store.Invites().DeleteInvitesExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired invites: %w", err)
	}
	return n, nil
}

// now is truncated to milliseconds, the coarsest precision any driver stores.
func (s *InviteService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC().Truncate(time.Millisecond)
	}
	return s.Now().UTC().Truncate(time.Millisecond)
}
