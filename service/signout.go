package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/apiaryhq/hive/core"
)

// SignOut revokes every token issued to the user provider-side. Local
// session state is owned by the caller and cleared there.
func (s *AuthService) SignOut(ctx context.Context, accessToken, username string) error {
	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		var rejection *core.Rejection
		// A rejected access token means there is nothing left to revoke.
		if errors.As(err, &rejection) && rejection.Code == core.RejectionNotAuthorized {
			return nil
		}
		return passthrough(err)
	}

	s.logger.Info("signed out", slog.String("username", username))
	if s.events != nil {
		if err := s.events.PublishSignOut(ctx, username); err != nil {
			s.logger.Warn("failed to publish sign-out event", slog.String("error", err.Error()))
		}
	}

	return nil
}
