package service

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/realminvite/pkg/cryptox"
	"github.com/aussiebroadwan/realminvite/pkg/slogx"
)

func TestCreateInvite_RoundTrip(t *testing.T) {
	svc, _ := newTestInviteService(t)
	ctx := t.Context()

	created, raw, err := svc.CreateInvite(ctx, CreateInviteParams{
		Realm:     "acme",
		Email:     "new.user@example.com",
		MaxUses:   1,
		Roles:     []string{"editor", " viewer ", "editor", ""},
		CreatedBy: "  operator ",
	})
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	require.NotContains(t, raw, created.TokenHash)
	require.Equal(t, []string{"editor", "viewer"}, created.Roles)
	require.Equal(t, "operator", created.CreatedBy)

	for range 2 {
		got, err := svc.ValidateToken(ctx, "acme", raw)
		require.NoError(t, err)
		require.Equal(t, created.ID, got.ID)
		require.Equal(t, "acme", got.Realm)
		require.Equal(t, "new.user@example.com", got.Email)
		require.Equal(t, []string{"editor", "viewer"}, got.Roles)
		require.Zero(t, got.Uses)
	}
}

func TestCreateInvite_DefaultRolesAndNormalisedEmail(t *testing.T) {
	svc, _ := newTestInviteService(t)

	inv, _, err := svc.CreateInvite(t.Context(), CreateInviteParams{
		Realm:     "master",
		Email:     "A@Example.com",
		MaxUses:   1,
		CreatedBy: "operator",
	})
	require.NoError(t, err)
	require.Equal(t, "a@example.com", inv.Email)
	require.Equal(t, []string{"default-admin"}, inv.Roles)

	stored, err := svc.Get(t.Context(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, "a@example.com", stored.Email)
	require.Equal(t, []string{"default-admin"}, stored.Roles)
}

func TestCreateInvite_Validation(t *testing.T) {
	svc, clock := newTestInviteService(t)
	now := clock.Now()

	valid := func() CreateInviteParams {
		return CreateInviteParams{Realm: "acme", Email: "a@example.com", MaxUses: 1, CreatedBy: "op"}
	}

	tests := []struct {
		name   string
		modify func(p *CreateInviteParams)
	}{
		{"blank realm", func(p *CreateInviteParams) { p.Realm = " " }},
		{"blank email", func(p *CreateInviteParams) { p.Email = "" }},
		{"email without at", func(p *CreateInviteParams) { p.Email = "not-an-email" }},
		{"blank created_by", func(p *CreateInviteParams) { p.CreatedBy = "\t" }},
		{"zero max uses", func(p *CreateInviteParams) { p.MaxUses = 0 }},
		{"negative max uses", func(p *CreateInviteParams) { p.MaxUses = -1 }},
		{"no roles and no defaults", func(p *CreateInviteParams) { p.Realm = "unknown" }},
		{"blank roles and no defaults", func(p *CreateInviteParams) {
			p.Realm = "unknown"
			p.Roles = []string{" ", ""}
		}},
		{"expiry in the past", func(p *CreateInviteParams) { p.ExpiresAt = ptr(now.Add(-time.Hour)) }},
		{"expiry beyond max", func(p *CreateInviteParams) { p.ExpiresAt = ptr(now.Add(DefaultMaxInviteExpiry + time.Second)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.modify(&p)
			_, raw, err := svc.CreateInvite(t.Context(), p)
			require.ErrorIs(t, err, ErrValidation)
			require.Empty(t, raw)
		})
	}
}

func TestCreateInvite_ExpiryBounds(t *testing.T) {
	svc, clock := newTestInviteService(t)
	now := clock.Now()

	_, _, err := svc.CreateInvite(t.Context(), CreateInviteParams{
		Realm: "acme", Email: "low@example.com", MaxUses: 1, CreatedBy: "op",
		ExpiresAt: ptr(now.Add(DefaultMinInviteExpiry - time.Second)),
	})
	require.ErrorIs(t, err, ErrValidation)

	inv, _, err := svc.CreateInvite(t.Context(), CreateInviteParams{
		Realm: "acme", Email: "low@example.com", MaxUses: 1, CreatedBy: "op",
		ExpiresAt: ptr(now.Add(DefaultMinInviteExpiry)),
	})
	require.NoError(t, err)
	require.True(t, inv.ExpiresAt.Equal(now.Add(DefaultMinInviteExpiry)))

	inv, _, err = svc.CreateInvite(t.Context(), CreateInviteParams{
		Realm: "acme", Email: "high@example.com", MaxUses: 1, CreatedBy: "op",
		ExpiresAt: ptr(now.Add(DefaultMaxInviteExpiry)),
	})
	require.NoError(t, err)

	inv, _, err = svc.CreateInvite(t.Context(), CreateInviteParams{
		Realm: "acme", Email: "default@example.com", MaxUses: 1, CreatedBy: "op",
	})
	require.NoError(t, err)
	require.True(t, inv.ExpiresAt.Equal(now.Add(DefaultInviteExpiry)))
}

func TestCreateInvite_ActiveInviteExists(t *testing.T) {
	svc, clock := newTestInviteService(t)
	ctx := t.Context()

	first, _ := createTestInvite(t, svc, "acme", "dup@example.com", 1)

	_, _, err := svc.CreateInvite(ctx, CreateInviteParams{
		Realm: "acme", Email: " DUP@example.com ", MaxUses: 1, CreatedBy: "op",
	})
	require.ErrorIs(t, err, ErrActiveInviteExists)

	// Another realm is independent.
	createTestInvite(t, svc, "master", "dup@example.com", 1)

	// Once the first expires it is revoked lazily and no longer blocks.
	clock.Advance(DefaultInviteExpiry)
	second, _ := createTestInvite(t, svc, "acme", "dup@example.com", 1)
	require.NotEqual(t, first.ID, second.ID)

	old, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, old.Revoked)
}

func TestCreateInvite_UsedUpInviteDoesNotBlock(t *testing.T) {
	svc, _ := newTestInviteService(t)
	ctx := t.Context()

	first, _ := createTestInvite(t, svc, "acme", "again@example.com", 1)
	_, err := svc.UseOnce(ctx, first.ID)
	require.NoError(t, err)

	createTestInvite(t, svc, "acme", "again@example.com", 1)

	old, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, old.Revoked)
	require.Equal(t, 1, old.Uses)
}

func TestValidateToken_Rejections(t *testing.T) {
	svc, clock := newTestInviteService(t)
	ctx := t.Context()

	_, raw := createTestInvite(t, svc, "acme", "v@example.com", 1)
	token, salt, err := cryptox.ParseRawToken(raw)
	require.NoError(t, err)
	stranger, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)

	tests := []struct {
		name  string
		realm string
		raw   string
	}{
		{"empty", "acme", ""},
		{"no delimiter", "acme", strings.ReplaceAll(raw, cryptox.RawTokenDelimiter, "")},
		{"missing salt", "acme", token + cryptox.RawTokenDelimiter},
		{"bad encoding", "acme", token + "==" + cryptox.RawTokenDelimiter + salt},
		{"swapped halves", "acme", salt + cryptox.RawTokenDelimiter + token},
		{"unknown token", "acme", cryptox.FormatRawToken(stranger, salt)},
		{"wrong realm", "master", raw},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(ctx, tt.realm, tt.raw)
			require.ErrorIs(t, err, ErrInvalidInvite)
		})
	}

	t.Run("expired", func(t *testing.T) {
		_, raw := createTestInvite(t, svc, "acme", "exp@example.com", 1)
		clock.Advance(DefaultInviteExpiry)
		defer clock.Advance(-DefaultInviteExpiry)

		_, err := svc.ValidateToken(ctx, "acme", raw)
		require.ErrorIs(t, err, ErrInvalidInvite)
	})

	t.Run("revoked", func(t *testing.T) {
		inv, raw := createTestInvite(t, svc, "acme", "rev@example.com", 1)
		require.NoError(t, svc.Revoke(ctx, inv.ID))

		_, err := svc.ValidateToken(ctx, "acme", raw)
		require.ErrorIs(t, err, ErrInvalidInvite)
	})

	t.Run("used up", func(t *testing.T) {
		inv, raw := createTestInvite(t, svc, "acme", "twice@example.com", 2)
		for range 2 {
			_, err := svc.UseOnce(ctx, inv.ID)
			require.NoError(t, err)
		}

		_, err := svc.ValidateToken(ctx, "acme", raw)
		require.ErrorIs(t, err, ErrInvalidInvite)
	})
}

func TestUseOnce(t *testing.T) {
	svc, _ := newTestInviteService(t)
	ctx := t.Context()

	inv, _ := createTestInvite(t, svc, "acme", "use@example.com", 2)

	got, err := svc.UseOnce(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Uses)

	got, err = svc.UseOnce(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Uses)

	_, err = svc.UseOnce(ctx, inv.ID)
	require.ErrorIs(t, err, ErrInvalidInvite)

	_, err = svc.UseOnce(ctx, "01J00000000000000000000000")
	require.ErrorIs(t, err, ErrInvalidInvite)
}

func TestUseOnce_Concurrent(t *testing.T) {
	svc, _ := newTestInviteService(t)
	ctx := t.Context()

	inv, _ := createTestInvite(t, svc, "acme", "race@example.com", 1)

	const callers = 2
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UseOnce(ctx, inv.ID)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.ErrorIs(t, err, ErrInvalidInvite)
			failures++
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, 1, failures)

	stored, err := svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.Uses)
}

func TestRevoke(t *testing.T) {
	svc, clock := newTestInviteService(t)
	ctx := t.Context()

	require.ErrorIs(t, svc.Revoke(ctx, "missing"), ErrNotFound)

	inv, _ := createTestInvite(t, svc, "acme", "r@example.com", 1)
	require.NoError(t, svc.Revoke(ctx, inv.ID))
	require.ErrorIs(t, svc.Revoke(ctx, inv.ID), ErrIllegalState)

	stored, err := svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.True(t, stored.Revoked)

	expiring, _ := createTestInvite(t, svc, "acme", "e@example.com", 1)
	clock.Advance(DefaultInviteExpiry)
	require.ErrorIs(t, svc.Revoke(ctx, expiring.ID), ErrIllegalState)
}

func TestDelete(t *testing.T) {
	svc, _ := newTestInviteService(t)
	ctx := t.Context()

	_, err := svc.Delete(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	inv, _ := createTestInvite(t, svc, "acme", "d@example.com", 1)
	_, err = svc.Delete(ctx, inv.ID)
	require.ErrorIs(t, err, ErrIllegalState)

	require.NoError(t, svc.Revoke(ctx, inv.ID))
	deleted, err := svc.Delete(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, inv.ID, deleted.ID)

	_, err = svc.Get(ctx, inv.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResendInvite(t *testing.T) {
	svc, clock := newTestInviteService(t)
	ctx := t.Context()

	_, _, err := svc.ResendInvite(ctx, "missing", nil, "op")
	require.ErrorIs(t, err, ErrNotFound)

	old, oldRaw, err := svc.CreateInvite(ctx, CreateInviteParams{
		Realm: "acme", Email: "resend@example.com", MaxUses: 3,
		Roles: []string{"editor"}, CreatedBy: "op",
	})
	require.NoError(t, err)

	expires := clock.Now().Add(48 * time.Hour)
	fresh, newRaw, err := svc.ResendInvite(ctx, old.ID, &expires, "second-op")
	require.NoError(t, err)
	require.NotEqual(t, old.ID, fresh.ID)
	require.NotEqual(t, oldRaw, newRaw)
	require.Equal(t, old.Realm, fresh.Realm)
	require.Equal(t, old.Email, fresh.Email)
	require.Equal(t, old.MaxUses, fresh.MaxUses)
	require.Equal(t, old.Roles, fresh.Roles)
	require.Equal(t, "second-op", fresh.CreatedBy)
	require.True(t, fresh.ExpiresAt.Equal(expires))

	_, err = svc.ValidateToken(ctx, "acme", oldRaw)
	require.ErrorIs(t, err, ErrInvalidInvite)

	got, err := svc.ValidateToken(ctx, "acme", newRaw)
	require.NoError(t, err)
	require.Equal(t, fresh.ID, got.ID)

	// The old invite is already revoked; a second resend collides with the
	// pending replacement.
	again, _, err := svc.ResendInvite(ctx, old.ID, nil, "op")
	require.ErrorIs(t, err, ErrActiveInviteExists, "the resent invite is still pending")
	require.Empty(t, again.ID)

	// An invalid expiry rolls the whole resend back.
	_, _, err = svc.ResendInvite(ctx, fresh.ID, ptr(clock.Now()), "op")
	require.ErrorIs(t, err, ErrValidation)
	still, err := svc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	require.False(t, still.Revoked)
}

func TestListInvites(t *testing.T) {
	svc, clock := newTestInviteService(t)
	ctx := t.Context()

	list, err := svc.ListInvites(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	a, _ := createTestInvite(t, svc, "acme", "a@example.com", 1)
	clock.Advance(time.Second)
	b, _ := createTestInvite(t, svc, "acme", "b@example.com", 1)

	list, err = svc.ListInvites(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, b.ID, list[0].ID)
	require.Equal(t, a.ID, list[1].ID)
}

func TestPurgeExpiredAndHousekeeping(t *testing.T) {
	svc, clock := newTestInviteService(t)
	ctx := t.Context()

	old, _ := createTestInvite(t, svc, "acme", "old@example.com", 1)
	clock.Advance(DefaultInviteExpiry + 2*time.Hour)
	recent, _ := createTestInvite(t, svc, "acme", "recent@example.com", 1)

	n, err := svc.PurgeExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Zero(t, n, "old invite is still inside the retention window")

	var observed int64
	hk := NewHousekeepingService(svc, slogx.Discard(), time.Hour, time.Hour)
	hk.Observe = func(deleted int64, err error) {
		require.NoError(t, err)
		observed = deleted
	}
	require.EqualValues(t, 1, hk.Cleanup(ctx))
	require.EqualValues(t, 1, observed)

	_, err = svc.Get(ctx, old.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, recent.ID)
	require.NoError(t, err)
}

func TestHousekeeping_StartStop(t *testing.T) {
	svc, _ := newTestInviteService(t)

	hk := NewHousekeepingService(svc, slogx.Discard(), 0, -time.Second)
	require.Equal(t, time.Hour, hk.Interval)
	require.Zero(t, hk.Retention)

	ran := make(chan struct{}, 1)
	hk.Observe = func(int64, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
	}
	hk.Start()
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup did not run on start")
	}
	hk.Stop()
}
