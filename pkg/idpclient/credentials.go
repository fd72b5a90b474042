package idpclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/realminvite/pkg/jwtx"
	"github.com/aussiebroadwan/realminvite/pkg/slogx"
)

const (
	minSkew = 5 * time.Second
	maxSkew = 60 * time.Second
)

// credential is replaced wholesale on refresh and never mutated. A zero
// expiresAt means the service did not say when it expires.
type credential struct {
	token     string
	expiresAt time.Time
}

func (c *credential) neverExpires() bool { return c.expiresAt.IsZero() }

func (c *credential) remaining(now time.Time) time.Duration {
	return c.expiresAt.Sub(now)
}

// skewFor is the safety margin for a credential with the given remaining
// lifetime: half of it, clamped to [5s, 60s].
func skewFor(remaining time.Duration) time.Duration {
	return min(maxSkew, max(minSkew, remaining/2))
}

// fresh reports whether the credential can be used without attempting a refresh.
func (c *credential) fresh(now time.Time) bool {
	if c.neverExpires() {
		return true
	}
	r := c.remaining(now)
	return r > skewFor(r)
}

// valid reports whether the credential has not yet hard-expired.
func (c *credential) valid(now time.Time) bool {
	return c.neverExpires() || c.remaining(now) > 0
}

// credentialCache holds the one credential shared by all callers. Reads go
// through an atomic snapshot so they never wait on a refresh in flight; mu
// only serialises refreshes.
type credentialCache struct {
	cur    atomic.Pointer[credential]
	mu     sync.Mutex
	now    func() time.Time
	fetch  func(ctx context.Context) (*credential, error)
	logger *slog.Logger
}

// get returns a bearer token. A token inside its skew margin triggers at most
// one opportunistic refresh; callers that lose the race for the refresh lock
// keep using it. Without a valid token every caller waits for the refresh.
func (cc *credentialCache) get(ctx context.Context) (string, error) {
	if cur := cc.cur.Load(); cur != nil {
		now := cc.now()
		if cur.fresh(now) {
			return cur.token, nil
		}
		if cur.valid(now) {
			return cc.refreshOpportunistic(ctx, cur)
		}
	}
	return cc.refreshBlocking(ctx)
}

func (cc *credentialCache) refreshOpportunistic(ctx context.Context, seen *credential) (string, error) {
	if !cc.mu.TryLock() {
		return seen.token, nil
	}
	defer cc.mu.Unlock()

	if cur := cc.cur.Load(); cur != nil && cur != seen && cur.fresh(cc.now()) {
		return cur.token, nil
	}

	next, err := cc.fetch(ctx)
	if err == nil {
		cc.cur.Store(next)
		return next.token, nil
	}

	if cur := cc.cur.Load(); cur != nil && cur.valid(cc.now()) {
		cc.logger.WarnContext(ctx, "credential refresh failed, using cached credential",
			slogx.Err(err),
			slog.Duration("remaining", cur.remaining(cc.now())),
		)
		return cur.token, nil
	}
	cc.cur.Store(nil)
	return "", err
}

func (cc *credentialCache) refreshBlocking(ctx context.Context) (string, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	// Another caller may have refreshed while we waited.
	if cur := cc.cur.Load(); cur != nil && cur.valid(cc.now()) {
		return cur.token, nil
	}

	next, err := cc.fetch(ctx)
	if err != nil {
		cc.cur.Store(nil)
		return "", err
	}
	cc.cur.Store(next)
	return next.token, nil
}

// invalidate drops the cached credential if it is still the one carrying token.
func (cc *credentialCache) invalidate(token string) {
	if cur := cc.cur.Load(); cur != nil && cur.token == token {
		cc.cur.CompareAndSwap(cur, nil)
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// fetchCredential runs the client-credentials grant against the token realm.
func (c *Client) fetchCredential(ctx context.Context) (*credential, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}
	encoded := form.Encode()

	resp, err := c.call(ctx, "token", request{
		method:      http.MethodPost,
		path:        "/realms/" + escape(c.cfg.TokenRealm) + "/protocol/openid-connect/token",
		rawBody:     encoded,
		contentType: "application/x-www-form-urlencoded",
		noAuth:      true,
	}, func(r *response) error {
		switch {
		case r.ok():
			return nil
		case r.status == http.StatusBadRequest || r.status == http.StatusUnauthorized:
			return r.apiError("token", ErrUnauthorized)
		default:
			return r.apiError("token", nil)
		}
	})
	if err != nil {
		c.observer.ObserveCredentialRefresh("error")
		return nil, err
	}

	var tr tokenResponse
	if err := resp.decode(&tr); err != nil {
		c.observer.ObserveCredentialRefresh("error")
		return nil, err
	}
	if strings.TrimSpace(tr.AccessToken) == "" {
		c.observer.ObserveCredentialRefresh("error")
		return nil, fmt.Errorf("%w: token response without access_token", ErrUnexpectedResponse)
	}

	cred := &credential{token: tr.AccessToken}
	switch {
	case tr.ExpiresIn > 0:
		cred.expiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	default:
		if exp, ok := jwtx.UnverifiedExpiry(tr.AccessToken); ok {
			cred.expiresAt = exp
		}
	}

	c.observer.ObserveCredentialRefresh("ok")
	c.logger.DebugContext(ctx, "identity credential refreshed", slog.Time("expires_at", cred.expiresAt))
	return cred, nil
}
