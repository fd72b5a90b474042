// Package storetest holds the behaviour every store driver must share. Driver
// packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/realminvite/internal/invites/domain"
	"github.com/aussiebroadwan/realminvite/internal/invites/store"
	"github.com/aussiebroadwan/realminvite/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Factory returns a migrated, empty store. It should register its own cleanup.
type Factory func(t *testing.T) store.Store

var epoch = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

// NewInvite builds a valid active invite for tests.
func NewInvite(realm, email string) domain.Invite {
	id := idx.NewAt(epoch).String()
	return domain.Invite{
		ID:        id,
		Realm:     realm,
		TokenHash: "hash-" + id,
		Salt:      "salt-" + id,
		Email:     email,
		CreatedBy: "tester",
		CreatedAt: epoch,
		ExpiresAt: epoch.Add(24 * time.Hour),
		MaxUses:   1,
		Roles:     []string{"member", "reader"},
	}
}

// Run executes the shared driver suite.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"PendingEmailUnique", testPendingEmailUnique},
		{"ListNewestFirst", testListNewestFirst},
		{"ActiveLookups", testActiveLookups},
		{"IncrementGuard", testIncrementGuard},
		{"Revoke", testRevoke},
		{"BulkRevoke", testBulkRevoke},
		{"Delete", testDelete},
		{"WithTxRollback", testWithTxRollback},
		{"ConcurrentUseOnce", testConcurrentUseOnce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	inv := NewInvite("acme", "alice@example.com")

	require.NoError(t, s.Invites().CreateInvite(ctx, inv))

	got, err := s.Invites().GetInviteByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, inv.ID, got.ID)
	require.Equal(t, inv.Realm, got.Realm)
	require.Equal(t, inv.TokenHash, got.TokenHash)
	require.Equal(t, inv.Salt, got.Salt)
	require.Equal(t, inv.Email, got.Email)
	require.Equal(t, inv.CreatedBy, got.CreatedBy)
	require.True(t, inv.CreatedAt.Equal(got.CreatedAt))
	require.True(t, inv.ExpiresAt.Equal(got.ExpiresAt))
	require.Equal(t, 1, got.MaxUses)
	require.Equal(t, 0, got.Uses)
	require.False(t, got.Revoked)
	require.Equal(t, []string{"member", "reader"}, got.Roles)

	_, err = s.Invites().GetInviteByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	dup := NewInvite("globex", "bob@example.com")
	dup.ID = inv.ID
	require.ErrorIs(t, s.Invites().CreateInvite(ctx, dup), store.ErrAlreadyExists)
}

func testPendingEmailUnique(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := NewInvite("acme", "alice@example.com")
	require.NoError(t, s.Invites().CreateInvite(ctx, first))

	second := NewInvite("acme", "alice@example.com")
	require.ErrorIs(t, s.Invites().CreateInvite(ctx, second), store.ErrAlreadyExists)

	// Same email in another realm is independent.
	other := NewInvite("globex", "alice@example.com")
	require.NoError(t, s.Invites().CreateInvite(ctx, other))

	// Once revoked, a new one may be issued.
	require.NoError(t, s.Invites().RevokeInvite(ctx, first.ID))
	require.NoError(t, s.Invites().CreateInvite(ctx, second))
}

func testListNewestFirst(t *testing.T, s store.Store) {
	ctx := context.Background()

	empty, err := s.Invites().ListInvites(ctx)
	require.NoError(t, err)
	require.Empty(t, empty)

	var ids []string
	for i := range 3 {
		inv := NewInvite("acme", fmt.Sprintf("user%d@example.com", i))
		inv.CreatedAt = epoch.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Invites().CreateInvite(ctx, inv))
		ids = append(ids, inv.ID)
	}

	list, err := s.Invites().ListInvites(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func testActiveLookups(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := epoch.Add(time.Hour)

	active := NewInvite("acme", "active@example.com")
	active.MaxUses = 2
	active.Uses = 1

	expired := NewInvite("acme", "expired@example.com")
	expired.ExpiresAt = now

	revoked := NewInvite("acme", "revoked@example.com")
	revoked.Revoked = true

	used := NewInvite("acme", "used@example.com")
	used.MaxUses = 2
	used.Uses = 2

	for _, inv := range []domain.Invite{active, expired, revoked, used} {
		require.NoError(t, s.Invites().CreateInvite(ctx, inv))
	}

	cases := []struct {
		inv  domain.Invite
		want bool
	}{
		{active, true},
		{expired, false},
		{revoked, false},
		{used, false},
	}

	for _, c := range cases {
		has, err := s.Invites().HasActiveInvite(ctx, "acme", c.inv.Email, now)
		require.NoError(t, err)
		require.Equal(t, c.want, has, c.inv.Email)

		got, err := s.Invites().GetActiveInviteByTokenHash(ctx, "acme", c.inv.TokenHash, now)
		if c.want {
			require.NoError(t, err)
			require.Equal(t, c.inv.ID, got.ID)
		} else {
			require.ErrorIs(t, err, store.ErrNotFound, c.inv.Email)
		}

		err = s.WithTx(ctx, func(tx store.Tx) error {
			_, err := tx.Invites().GetActiveInviteByIDForUpdate(ctx, c.inv.ID, now)
			return err
		})
		if c.want {
			require.NoError(t, err)
		} else {
			require.ErrorIs(t, err, store.ErrNotFound, c.inv.Email)
		}
	}

	// Token hashes are scoped to a realm.
	_, err := s.Invites().GetActiveInviteByTokenHash(ctx, "globex", active.TokenHash, now)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testIncrementGuard(t *testing.T, s store.Store) {
	ctx := context.Background()
	inv := NewInvite("acme", "alice@example.com")
	inv.MaxUses = 2
	require.NoError(t, s.Invites().CreateInvite(ctx, inv))

	require.NoError(t, s.Invites().IncrementInviteUses(ctx, inv.ID))
	require.NoError(t, s.Invites().IncrementInviteUses(ctx, inv.ID))
	require.ErrorIs(t, s.Invites().IncrementInviteUses(ctx, inv.ID), store.ErrNotFound)
	require.ErrorIs(t, s.Invites().IncrementInviteUses(ctx, "missing"), store.ErrNotFound)

	got, err := s.Invites().GetInviteByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Uses)
}

func testRevoke(t *testing.T, s store.Store) {
	ctx := context.Background()
	inv := NewInvite("acme", "alice@example.com")
	require.NoError(t, s.Invites().CreateInvite(ctx, inv))

	require.NoError(t, s.Invites().RevokeInvite(ctx, inv.ID))
	require.NoError(t, s.Invites().RevokeInvite(ctx, inv.ID), "revoking twice is fine")
	require.ErrorIs(t, s.Invites().RevokeInvite(ctx, "missing"), store.ErrNotFound)

	got, err := s.Invites().GetInviteByID(ctx, inv.ID)
	require.NoError(t, err)
	require.True(t, got.Revoked)
}

func testBulkRevoke(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := epoch.Add(2 * time.Hour)

	expired := NewInvite("acme", "alice@example.com")
	expired.ExpiresAt = epoch.Add(time.Hour)
	require.NoError(t, s.Invites().CreateInvite(ctx, expired))

	n, err := s.Invites().RevokeOverusedInvites(ctx, "acme", "alice@example.com")
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = s.Invites().RevokeExpiredInvites(ctx, "acme", "alice@example.com", now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	used := NewInvite("acme", "alice@example.com")
	used.Uses = 1
	require.NoError(t, s.Invites().CreateInvite(ctx, used))

	n, err = s.Invites().RevokeExpiredInvites(ctx, "acme", "alice@example.com", now)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = s.Invites().RevokeOverusedInvites(ctx, "acme", "alice@example.com")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := s.Invites().GetInviteByID(ctx, used.ID)
	require.NoError(t, err)
	require.True(t, got.Revoked)
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()

	old := NewInvite("acme", "old@example.com")
	old.ExpiresAt = epoch.Add(time.Hour)
	fresh := NewInvite("acme", "fresh@example.com")
	fresh.ExpiresAt = epoch.Add(48 * time.Hour)
	gone := NewInvite("acme", "gone@example.com")

	for _, inv := range []domain.Invite{old, fresh, gone} {
		require.NoError(t, s.Invites().CreateInvite(ctx, inv))
	}

	require.NoError(t, s.Invites().DeleteInvite(ctx, gone.ID))
	require.ErrorIs(t, s.Invites().DeleteInvite(ctx, gone.ID), store.ErrNotFound)

	n, err := s.Invites().DeleteInvitesExpiredBefore(ctx, epoch.Add(2*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = s.Invites().GetInviteByID(ctx, old.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Invites().GetInviteByID(ctx, fresh.ID)
	require.NoError(t, err)
}

func testWithTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	inv := NewInvite("acme", "alice@example.com")
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Invites().CreateInvite(ctx, inv); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Invites().GetInviteByID(ctx, inv.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		return tx.WithTx(ctx, func(store.Tx) error { return nil })
	})
	require.Error(t, err, "nested transactions are refused")
}

func testConcurrentUseOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := epoch.Add(time.Minute)

	inv := NewInvite("acme", "race@example.com")
	require.NoError(t, s.Invites().CreateInvite(ctx, inv))

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx store.Tx) error {
				if _, err := tx.Invites().GetActiveInviteByIDForUpdate(ctx, inv.ID, now); err != nil {
					return err
				}
				return tx.Invites().IncrementInviteUses(ctx, inv.ID)
			})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, winners)

	got, err := s.Invites().GetInviteByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Uses)
}
