package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/apiaryhq/hive/core"
)

// RenewTokens exchanges a refresh token for fresh access and ID tokens
// without re-running the SRP exchange. deviceKey may be empty when no
// trusted device is associated with the session. The returned bundle
// retains the supplied refresh token unless the provider rotated it.
func (s *AuthService) RenewTokens(ctx context.Context, refreshToken, deviceKey, username string) (*core.Tokens, error) {
	tokens, err := s.provider.RenewTokens(ctx, refreshToken, deviceKey)
	if err != nil {
		var rejection *core.Rejection
		if errors.As(err, &rejection) {
			switch rejection.Code {
			case core.RejectionThrottled:
				return nil, &core.ThrottledError{RetryAfter: rejection.RetryAfter}
			default:
				// Any protocol rejection of a refresh token means the
				// caller has to log in again.
				return nil, fmt.Errorf("token renewal: %w", core.ErrRefreshExpired)
			}
		}
		return nil, passthrough(err)
	}

	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}

	s.logger.Info("session tokens renewed", slog.Time("expires_at", tokens.ExpiresAt()))
	if s.events != nil {
		if err := s.events.PublishRenewal(ctx, username); err != nil {
			s.logger.Warn("failed to publish renewal event", slog.String("error", err.Error()))
		}
	}

	return tokens, nil
}
