package idpclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/realminvite/pkg/slogx"
)

func TestSkewFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		remaining time.Duration
		want      time.Duration
	}{
		{1 * time.Second, 5 * time.Second},
		{3 * time.Second, 5 * time.Second},
		{10 * time.Second, 5 * time.Second},
		{30 * time.Second, 15 * time.Second},
		{120 * time.Second, 60 * time.Second},
		{time.Hour, 60 * time.Second},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, skewFor(tt.remaining), "remaining=%s", tt.remaining)
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(clock *fakeClock, fetch func(ctx context.Context) (*credential, error)) *credentialCache {
	return &credentialCache{now: clock.Now, fetch: fetch, logger: slogx.Discard()}
}

func TestCredentialCache_FreshTokenIsReused(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	var fetches atomic.Int32
	cc := newTestCache(clock, func(context.Context) (*credential, error) {
		fetches.Add(1)
		return &credential{token: "t1", expiresAt: clock.Now().Add(5 * time.Minute)}, nil
	})

	for range 5 {
		tok, err := cc.get(context.Background())
		require.NoError(t, err)
		require.Equal(t, "t1", tok)
	}
	require.EqualValues(t, 1, fetches.Load())
}

func TestCredentialCache_WithinSkewRefreshInFlight(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cc := newTestCache(clock, func(context.Context) (*credential, error) {
		t.Fatal("fetch must not run while another refresh holds the lock")
		return nil, nil
	})
	cc.cur.Store(&credential{token: "stale", expiresAt: clock.Now().Add(3 * time.Second)})

	cc.mu.Lock()
	defer cc.mu.Unlock()

	tok, err := cc.get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "stale", tok)
}

func TestCredentialCache_WithinSkewRefreshes(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cc := newTestCache(clock, func(context.Context) (*credential, error) {
		return &credential{token: "new", expiresAt: clock.Now().Add(time.Minute)}, nil
	})
	cc.cur.Store(&credential{token: "old", expiresAt: clock.Now().Add(3 * time.Second)})

	tok, err := cc.get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "new", tok)
}

func TestCredentialCache_WithinSkewFetchFailureFallsBack(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cc := newTestCache(clock, func(context.Context) (*credential, error) {
		return nil, errors.New("boom")
	})
	cc.cur.Store(&credential{token: "old", expiresAt: clock.Now().Add(3 * time.Second)})

	tok, err := cc.get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "old", tok)
	require.NotNil(t, cc.cur.Load(), "still-valid credential must be kept")
}

func TestCredentialCache_ExpiredFetchFailureClears(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cc := newTestCache(clock, func(context.Context) (*credential, error) {
		return nil, errors.New("boom")
	})
	cc.cur.Store(&credential{token: "old", expiresAt: clock.Now().Add(time.Second)})
	clock.Advance(2 * time.Second)

	tok, err := cc.get(context.Background())
	require.Error(t, err)
	require.Empty(t, tok)
	require.Nil(t, cc.cur.Load())
}

func TestCredentialCache_ExpiredIsNeverUsed(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cc := newTestCache(clock, func(context.Context) (*credential, error) {
		return &credential{token: "new", expiresAt: clock.Now().Add(time.Minute)}, nil
	})
	cc.cur.Store(&credential{token: "old", expiresAt: clock.Now()})

	tok, err := cc.get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "new", tok)
}

func TestCredentialCache_NoExpiryNeverRefreshes(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cc := newTestCache(clock, func(context.Context) (*credential, error) {
		t.Fatal("unexpected fetch")
		return nil, nil
	})
	cc.cur.Store(&credential{token: "forever"})
	clock.Advance(24 * time.Hour)

	tok, err := cc.get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "forever", tok)
}

func TestCredentialCache_ColdStartFetchesOnce(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	var fetches atomic.Int32
	release := make(chan struct{})
	cc := newTestCache(clock, func(context.Context) (*credential, error) {
		fetches.Add(1)
		<-release
		return &credential{token: "t", expiresAt: clock.Now().Add(time.Hour)}, nil
	})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := cc.get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "t", tok)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, fetches.Load())
}

func TestCredentialCache_Invalidate(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cc := newTestCache(clock, nil)
	cc.cur.Store(&credential{token: "a"})

	cc.invalidate("b")
	require.NotNil(t, cc.cur.Load())

	cc.invalidate("a")
	require.Nil(t, cc.cur.Load())
}
