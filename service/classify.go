package service

import (
	"errors"
	"fmt"

	"github.com/apiaryhq/hive/core"
	"github.com/apiaryhq/hive/srp"
)

// classifyRound maps a provider failure to its meaning for the round it
// arrived in. Transport failures pass through untouched so callers can
// apply a different retry policy to them.
func (s *AuthService) classifyRound(name core.ChallengeName, err error) error {
	switch name {
	case core.ChallengeDeviceSRP, core.ChallengeDevicePasswordVerifier:
		return s.classifyDeviceRound(err)
	default:
		return s.classifyPasswordRound(err)
	}
}

func (s *AuthService) classifyPasswordRound(err error) error {
	var rejection *core.Rejection
	if !errors.As(err, &rejection) {
		return passthrough(err)
	}

	switch rejection.Code {
	case core.RejectionNotAuthorized, core.RejectionUserNotFound:
		return fmt.Errorf("password round: %w", core.ErrInvalidCredential)
	case core.RejectionDisabled:
		return fmt.Errorf("password round: %w", core.ErrAccountDisabled)
	case core.RejectionThrottled:
		return &core.ThrottledError{RetryAfter: rejection.RetryAfter}
	default:
		return fmt.Errorf("password round: %w", rejection)
	}
}

func (s *AuthService) classifyDeviceRound(err error) error {
	var rejection *core.Rejection
	if !errors.As(err, &rejection) {
		return passthrough(err)
	}

	switch rejection.Code {
	case core.RejectionNotAuthorized, core.RejectionDeviceNotFound, core.RejectionUserNotFound:
		// The caller decides whether to fall back to a password-only
		// attempt; downgrading device trust is never done silently.
		return fmt.Errorf("device round: %w", core.ErrDeviceNotTrusted)
	case core.RejectionThrottled:
		return &core.ThrottledError{RetryAfter: rejection.RetryAfter}
	default:
		return fmt.Errorf("device round: %w", rejection)
	}
}

// classifyCrypto wraps engine failures caused by protocol-violating server
// parameters. These are fatal to the attempt and must never be retried
// with the same parameters.
func (s *AuthService) classifyCrypto(err error) error {
	if errors.Is(err, srp.ErrZeroServerValue) || errors.Is(err, srp.ErrZeroScrambler) || errors.Is(err, srp.ErrBadParameter) {
		return fmt.Errorf("%v: %w", err, core.ErrMalformedChallenge)
	}
	return err
}

// passthrough keeps already-classified errors (transport failures and
// malformed-challenge errors) as they are.
func passthrough(err error) error {
	var transport *core.TransportError
	if errors.As(err, &transport) {
		return err
	}
	return fmt.Errorf("identity provider request failed: %w", err)
}
