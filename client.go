package hive

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/apiaryhq/hive/adapters/cognito"
	"github.com/apiaryhq/hive/core"
	"github.com/apiaryhq/hive/service"
)

// Client is the library's top-level handle. It wires the identity
// provider, runs logins, and owns the current session. A single Client is
// safe for concurrent use; at most one session is held at a time.
type Client struct {
	cfg    Config
	auth   *service.AuthService
	logger *slog.Logger

	mu      sync.Mutex
	session *Session
	pending *service.PendingMFA
}

// NewClient constructs a client from the configuration. ctx is used only
// for provider setup.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	provider := cfg.Provider
	if provider == nil {
		p, err := cognito.New(ctx, cfg.Region, cfg.ClientID)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	return &Client{
		cfg:    cfg,
		auth:   service.NewAuthService(provider, cfg.Events, cfg.PoolID, cfg.Logger),
		logger: cfg.Logger,
	}, nil
}

// Login runs a full authentication attempt and installs the resulting
// session. device may be nil for a password-only login. When the provider
// demands a one-time code the error is a *core.MFARequiredError and the
// attempt stays open until RespondToMFACode is called; any other failure
// is terminal and a retry starts from scratch with fresh SRP material.
func (c *Client) Login(ctx context.Context, username, password string, device *core.TrustedDevice) (*Session, error) {
	credential, err := core.NewCredential(username, password)
	if err != nil {
		return nil, err
	}

	tokens, pending, err := c.auth.Authenticate(ctx, credential, device)
	if err != nil {
		var mfa *core.MFARequiredError
		if errors.As(err, &mfa) && pending != nil {
			c.mu.Lock()
			c.pending = pending
			c.mu.Unlock()
		}
		return nil, err
	}

	return c.installSession(tokens)
}

// RespondToMFACode resumes a login suspended on a one-time code. When the
// provider demands a further code the attempt stays open for another
// RespondToMFACode call; any other failure consumes it and a rejected
// code requires a new Login.
func (c *Client) RespondToMFACode(ctx context.Context, code string) (*Session, error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending == nil {
		return nil, core.ErrNoPendingChallenge
	}

	tokens, next, err := pending.Respond(ctx, code)
	if err != nil {
		var mfa *core.MFARequiredError
		if errors.As(err, &mfa) && next != nil {
			c.mu.Lock()
			c.pending = next
			c.mu.Unlock()
		}
		return nil, err
	}

	return c.installSession(tokens)
}

// Session returns the current session, or core.ErrNotLoggedIn when none
// is held.
func (c *Client) Session() (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, core.ErrNotLoggedIn
	}
	return c.session, nil
}

// ConfirmDevice registers the device identity issued at the last login as
// a trusted device. The returned descriptor carries the generated device
// password, shown exactly once; the caller stores it and passes it to
// future Login calls. Returns core.ErrDeviceAlreadyTrusted when the login
// issued no new device identity.
func (c *Client) ConfirmDevice(ctx context.Context) (*core.TrustedDevice, error) {
	session, err := c.Session()
	if err != nil {
		return nil, err
	}

	tokens := session.Tokens()
	if tokens.NewDevice == nil {
		return nil, core.ErrDeviceAlreadyTrusted
	}

	return c.auth.ConfirmDevice(ctx, tokens.AccessToken, c.cfg.DeviceName, *tokens.NewDevice)
}

// Logout revokes every token issued to the user provider-side and drops
// the local session.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.pending = nil
	c.mu.Unlock()

	if session == nil {
		return core.ErrNotLoggedIn
	}

	tokens := session.Tokens()
	return c.auth.SignOut(ctx, tokens.AccessToken, session.Username())
}

// Token implements the API layer's token source: it renews the session
// when the bundle has expired and returns the authorization header value.
// A core.ErrRefreshExpired failure propagates so the caller can perform a
// full login.
func (c *Client) Token(ctx context.Context) (string, error) {
	session, err := c.Session()
	if err != nil {
		return "", err
	}

	if session.IsExpired(time.Now()) {
		if err := session.Renew(ctx); err != nil {
			return "", err
		}
	}

	return session.AuthorizationHeader(), nil
}

// installSession builds a session around a fresh token bundle. The
// canonical username and the device key come from the provider-issued
// access token, so the session survives identifier aliasing.
func (c *Client) installSession(tokens *core.Tokens) (*Session, error) {
	claims, err := ParseAccessClaims(tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	session := newSession(c.auth, claims.Username, claims.DeviceKey, *tokens)

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.logger.Info("session established",
		slog.String("username", claims.Username),
		slog.Time("expires_at", tokens.ExpiresAt()))

	return session, nil
}
