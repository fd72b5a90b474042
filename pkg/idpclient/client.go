package idpclient

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultConnectTimeout  = 5 * time.Second
	DefaultResponseTimeout = 15 * time.Second
	DefaultMaxAttempts     = 3
	DefaultBaseDelay       = 200 * time.Millisecond
	DefaultPageSize        = 1000
)

// DefaultActions are the required actions sent with the onboarding email when
// the caller does not name any.
var DefaultActions = []string{"VERIFY_EMAIL", "UPDATE_PASSWORD"}

// Config describes how to reach and authenticate against the identity service.
type Config struct {
	// BaseURL is the service root, e.g. https://id.example.com.
	BaseURL string

	// TokenRealm is the realm whose token endpoint issues our credential.
	// Usually "master".
	TokenRealm string

	ClientID     string
	ClientSecret string

	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration

	// MaxAttempts bounds every call, the first attempt included.
	MaxAttempts int
	BaseDelay   time.Duration

	// PageSize is the page length used by ListRealmRoles.
	PageSize int

	DefaultActions []string
}

// Observer receives call outcomes. Metrics plug in here.
type Observer interface {
	ObserveCall(op, outcome string, elapsed time.Duration)
	ObserveRetry(op string)
	ObserveCredentialRefresh(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveCall(string, string, time.Duration) {}
func (nopObserver) ObserveRetry(string) {}
func (nopObserver) ObserveCredentialRefresh(string) {}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport built from the configured timeouts.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock overrides time.Now, mainly for credential expiry tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// Client talks to the admin API. It is safe for concurrent use; all callers
// share one cached credential.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger
	observer   Observer

	creds *credentialCache
}

// New validates cfg, fills in defaults and returns a ready client. No network
// traffic happens until the first call.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.BaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("idpclient: base url is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("idpclient: client id and secret are required")
	}
	if cfg.TokenRealm == "" {
		cfg.TokenRealm = "master"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if len(cfg.DefaultActions) == 0 {
		cfg.DefaultActions = DefaultActions
	}

	c := &Client{
		cfg:      cfg,
		now:      time.Now,
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newHTTPClient(cfg.ConnectTimeout, cfg.ResponseTimeout)
	}

	c.creds = &credentialCache{
		now:    c.now,
		fetch:  c.fetchCredential,
		logger: c.logger,
	}
	return c, nil
}

func newHTTPClient(connect, response time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = connect
	transport.ResponseHeaderTimeout = response

	return &http.Client{
		Transport: transport,
		Timeout:   connect + response,
	}
}

func (c *Client) adminPath(realm string, segments ...string) string {
	var b strings.Builder
	b.WriteString("/admin/realms/")
	b.WriteString(escape(realm))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(s)
	}
	return b.String()
}
