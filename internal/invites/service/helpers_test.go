package service

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/realminvite/internal/invites/domain"
	"github.com/aussiebroadwan/realminvite/internal/invites/store/drivers/sqlite"
	"github.com/aussiebroadwan/realminvite/pkg/cryptox"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestInviteService(t *testing.T) (*InviteService, *testClock) {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "invites.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	codec, err := cryptox.NewTokenCodec(cryptox.TokenCodecConfig{
		Secret: []byte("test-secret-test-secret-test-secret"),
	})
	require.NoError(t, err)

	svc := NewInviteService(st, codec, InviteConfig{
		DefaultRoles: map[string][]string{
			"master": {"default-admin"},
			"acme":   {"member"},
		},
	})
	clock := &testClock{now: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)}
	svc.Now = clock.Now
	return svc, clock
}

func createTestInvite(t *testing.T, svc *InviteService, realm, email string, maxUses int) (domain.Invite, string) {
	t.Helper()

	inv, raw, err := svc.CreateInvite(t.Context(), CreateInviteParams{
		Realm:     realm,
		Email:     email,
		MaxUses:   maxUses,
		CreatedBy: "operator",
	})
	require.NoError(t, err)
	return inv, raw
}

func ptr[T any](v T) *T { return &v }
