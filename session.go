package hive

import (
	"context"
	"sync"
	"time"

	"github.com/apiaryhq/hive/core"
	"github.com/apiaryhq/hive/service"
)

// Session holds the token bundle of one authenticated login. Reads are
// safe from any number of goroutines; Renew is the only mutation path and
// is serialized internally, so two concurrent renewals cannot race on the
// refresh token.
type Session struct {
	mu     sync.RWMutex
	tokens core.Tokens

	username  string
	deviceKey string

	auth *service.AuthService
}

func newSession(auth *service.AuthService, username, deviceKey string, tokens core.Tokens) *Session {
	return &Session{
		tokens:    tokens,
		username:  username,
		deviceKey: deviceKey,
		auth:      auth,
	}
}

// Username returns the canonical username the provider resolved at login.
func (s *Session) Username() string {
	return s.username
}

// Tokens returns a copy of the current token bundle.
func (s *Session) Tokens() core.Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// IsExpired reports whether the tokens have outlived their lifetime at the
// given instant. Pure read, never triggers a renewal.
func (s *Session) IsExpired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !now.Before(s.tokens.ExpiresAt())
}

// AuthorizationHeader returns the value to attach to outbound API calls.
// The platform's API accepts the raw ID token.
func (s *Session) AuthorizationHeader() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.IDToken
}

// Renew exchanges the refresh token for fresh access and ID tokens in one
// network round-trip. On success the bundle is replaced in place; on
// failure the prior tokens are left untouched. A core.ErrRefreshExpired
// failure means the caller has to log in again.
func (s *Session) Renew(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	renewed, err := s.auth.RenewTokens(ctx, s.tokens.RefreshToken, s.deviceKey, s.username)
	if err != nil {
		return err
	}

	s.tokens = *renewed
	return nil
}
