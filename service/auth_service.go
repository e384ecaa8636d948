// Package service drives the multi-round authentication exchange against
// the identity provider and classifies its outcomes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/apiaryhq/hive/core"
	"github.com/apiaryhq/hive/ports"
	"github.com/apiaryhq/hive/srp"
)

// attemptState is the position of a login attempt in the exchange.
type attemptState int

const (
	stateInit attemptState = iota
	stateAwaitingPasswordChallenge
	stateAwaitingDeviceChallenge
	stateAwaitingMFACode
	stateComplete
	stateFailed
)

func (s attemptState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateAwaitingPasswordChallenge:
		return "awaiting_password_challenge"
	case stateAwaitingDeviceChallenge:
		return "awaiting_device_challenge"
	case stateAwaitingMFACode:
		return "awaiting_mfa_code"
	case stateComplete:
		return "complete"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// attempt is the exclusively-owned mutable context of one login. It lives
// for a single Authenticate call (plus an MFA resumption) and is never
// shared between attempts: SRP material is round-specific and single-use.
type attempt struct {
	id    string
	state attemptState

	credential core.Credential
	device     *core.TrustedDevice

	user      *srp.UserClient
	deviceSRP *srp.DeviceClient

	// userID is the canonical user id the provider returned for the SRP
	// exchange; subsequent rounds must identify the user by it.
	userID string

	// continuation links each round to the next.
	continuation string
}

// wipe clears the secret material held by the attempt's SRP clients.
func (a *attempt) wipe() {
	if a.user != nil {
		a.user.Wipe()
	}
	if a.deviceSRP != nil {
		a.deviceSRP.Wipe()
	}
}

// AuthService sequences the challenge/response exchange with the identity
// provider. It holds no per-attempt state, so a single instance serves any
// number of concurrent login attempts.
type AuthService struct {
	provider ports.IdentityProvider
	events   ports.EventPublisher
	logger   *slog.Logger

	poolID string

	now func() time.Time
}

// NewAuthService creates an authentication service. poolID is the identity
// provider's user pool identifier; events may be nil when the embedding
// application does not observe auth lifecycle events; logger may be nil to
// use the default logger.
func NewAuthService(provider ports.IdentityProvider, events ports.EventPublisher, poolID string, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		provider: provider,
		events:   events,
		logger:   logger,
		poolID:   poolID,
		now:      time.Now,
	}
}

// PendingMFA is a login attempt suspended on a one-time code. It is
// single-use: Respond consumes the attempt whether it succeeds or fails.
type PendingMFA struct {
	service *AuthService
	att     *attempt
}

// Authenticate runs one complete login attempt. Rounds are strictly
// sequential; the device rounds run only when a trusted device descriptor
// was supplied and the provider requested them. A non-nil PendingMFA is
// returned together with a *core.MFARequiredError when the provider
// demands a one-time code; every other error is terminal for the attempt,
// and a retry must start over with fresh server-issued parameters.
func (s *AuthService) Authenticate(ctx context.Context, credential core.Credential, device *core.TrustedDevice) (*core.Tokens, *PendingMFA, error) {
	att, err := s.newAttempt(credential, device)
	if err != nil {
		return nil, nil, err
	}

	out := s.initiate(ctx, att)
	for out.Kind == core.OutcomeChallenge {
		out = s.respond(ctx, att, out.Challenge)
	}

	return s.conclude(ctx, att, out)
}

// Respond resumes the suspended attempt with the user-supplied code. When
// the provider answers with yet another one-time code demand, the error is
// again a *core.MFARequiredError and the returned PendingMFA resumes the
// attempt; otherwise the attempt is consumed whether it succeeds or fails.
func (p *PendingMFA) Respond(ctx context.Context, code string) (*core.Tokens, *PendingMFA, error) {
	if p.service == nil || p.att == nil || p.att.state != stateAwaitingMFACode {
		return nil, nil, core.ErrNoPendingChallenge
	}
	s, att := p.service, p.att
	p.service, p.att = nil, nil

	responses := map[string]string{
		core.ParamUsername:   att.userID,
		core.ParamSMSMFACode: code,
	}
	if att.device != nil {
		responses[core.ParamDeviceKey] = att.device.DeviceKey
	}

	out := s.exchange(ctx, att, core.ChallengeSMSMFA, responses)
	for out.Kind == core.OutcomeChallenge {
		out = s.respond(ctx, att, out.Challenge)
	}

	return s.conclude(ctx, att, out)
}

func (s *AuthService) newAttempt(credential core.Credential, device *core.TrustedDevice) (*attempt, error) {
	user, err := srp.NewUserClient(s.poolID, credential.Identifier, credential.Secret)
	if err != nil {
		return nil, fmt.Errorf("preparing srp exchange: %w", err)
	}

	return &attempt{
		id:         uuid.New().String(),
		state:      stateInit,
		credential: credential,
		device:     device,
		user:       user,
		userID:     credential.Identifier,
	}, nil
}

// initiate sends the opening request: the identifier and the freshly drawn
// SRP public value, never the secret.
func (s *AuthService) initiate(ctx context.Context, att *attempt) core.Outcome {
	params := map[string]string{
		core.ParamUsername: att.credential.Identifier,
		core.ParamSRPA:     att.user.A(),
	}
	if att.device != nil {
		params[core.ParamDeviceKey] = att.device.DeviceKey
	}

	s.logger.Debug("initiating authentication",
		slog.String("attempt", att.id),
		slog.String("state", att.state.String()))

	resp, err := s.provider.InitiateAuth(ctx, params)
	if err != nil {
		return s.fail(att, s.classifyPasswordRound(err))
	}

	att.state = stateAwaitingPasswordChallenge
	return s.interpret(att, resp)
}

// respond answers one challenge. The transition taken is determined by the
// challenge name and checked against the attempt's current state, so an
// out-of-order or repeated round is rejected instead of resubmitting stale
// parameters.
func (s *AuthService) respond(ctx context.Context, att *attempt, challenge *core.ChallengeParameters) core.Outcome {
	s.logger.Debug("responding to challenge",
		slog.String("attempt", att.id),
		slog.String("state", att.state.String()),
		slog.String("challenge", string(challenge.Name)))

	switch challenge.Name {
	case core.ChallengePasswordVerifier:
		if att.state != stateAwaitingPasswordChallenge {
			return s.fail(att, fmt.Errorf("challenge %s in state %s: %w", challenge.Name, att.state, core.ErrMalformedChallenge))
		}
		return s.respondPasswordVerifier(ctx, att, challenge)

	case core.ChallengeDeviceSRP:
		// The provider issues the device round directly after the password
		// verifier, or after an SMS MFA round when the announced device is
		// not yet remembered.
		if (att.state != stateAwaitingPasswordChallenge && att.state != stateAwaitingMFACode) || att.device == nil {
			return s.fail(att, fmt.Errorf("challenge %s in state %s: %w", challenge.Name, att.state, core.ErrMalformedChallenge))
		}
		att.state = stateAwaitingDeviceChallenge
		return s.respondDeviceSRP(ctx, att, challenge)

	case core.ChallengeDevicePasswordVerifier:
		if att.state != stateAwaitingDeviceChallenge {
			return s.fail(att, fmt.Errorf("challenge %s in state %s: %w", challenge.Name, att.state, core.ErrMalformedChallenge))
		}
		return s.respondDeviceVerifier(ctx, att, challenge)

	case core.ChallengeSMSMFA:
		// Requires caller input; suspend rather than fail terminally.
		att.state = stateAwaitingMFACode
		att.continuation = challenge.Continuation
		return core.Failed(&core.MFARequiredError{Challenge: core.ChallengeSMSMFA})

	default:
		return s.fail(att, &core.UnsupportedChallengeError{Challenge: challenge.Name})
	}
}

func (s *AuthService) respondPasswordVerifier(ctx context.Context, att *attempt, challenge *core.ChallengeParameters) core.Outcome {
	salt, err := challenge.Get(core.ParamSalt)
	if err != nil {
		return s.fail(att, err)
	}
	serverB, err := challenge.Get(core.ParamSRPB)
	if err != nil {
		return s.fail(att, err)
	}
	secretBlock, err := challenge.Get(core.ParamSecretBlock)
	if err != nil {
		return s.fail(att, err)
	}

	// The provider may resolve the login identifier (an email alias) to a
	// canonical user id; later rounds and device confirmation fail
	// unless that id is used from here on.
	if userID, err := challenge.Get(core.ParamUserIDForSRP); err == nil {
		att.userID = userID
	}

	att.continuation = challenge.Continuation

	claim, err := att.user.PasswordClaim(att.userID, salt, serverB, secretBlock, s.now())
	if err != nil {
		return s.fail(att, s.classifyCrypto(err))
	}

	responses := map[string]string{
		core.ParamUsername:       att.userID,
		core.ParamClaimBlock:     claim.SecretBlock,
		core.ParamClaimSignature: claim.Signature,
		core.ParamTimestamp:      claim.Timestamp,
	}
	if att.device != nil {
		responses[core.ParamDeviceKey] = att.device.DeviceKey
	}

	return s.exchange(ctx, att, core.ChallengePasswordVerifier, responses)
}

func (s *AuthService) respondDeviceSRP(ctx context.Context, att *attempt, challenge *core.ChallengeParameters) core.Outcome {
	deviceSRP, err := srp.NewDeviceClient(att.device.DeviceGroupKey, att.device.DeviceKey, att.device.DevicePassword)
	if err != nil {
		return s.fail(att, fmt.Errorf("preparing device srp exchange: %w", err))
	}
	att.deviceSRP = deviceSRP
	att.continuation = challenge.Continuation

	responses := map[string]string{
		core.ParamUsername:  att.userID,
		core.ParamSRPA:      deviceSRP.A(),
		core.ParamDeviceKey: deviceSRP.DeviceKey(),
	}

	return s.exchange(ctx, att, core.ChallengeDeviceSRP, responses)
}

func (s *AuthService) respondDeviceVerifier(ctx context.Context, att *attempt, challenge *core.ChallengeParameters) core.Outcome {
	salt, err := challenge.Get(core.ParamSalt)
	if err != nil {
		return s.fail(att, err)
	}
	serverB, err := challenge.Get(core.ParamSRPB)
	if err != nil {
		return s.fail(att, err)
	}
	secretBlock, err := challenge.Get(core.ParamSecretBlock)
	if err != nil {
		return s.fail(att, err)
	}

	att.continuation = challenge.Continuation

	claim, err := att.deviceSRP.Claim(salt, serverB, secretBlock, s.now())
	if err != nil {
		return s.fail(att, s.classifyCrypto(err))
	}

	responses := map[string]string{
		core.ParamUsername:       att.userID,
		core.ParamClaimBlock:     claim.SecretBlock,
		core.ParamClaimSignature: claim.Signature,
		core.ParamTimestamp:      claim.Timestamp,
		core.ParamDeviceKey:      att.deviceSRP.DeviceKey(),
	}

	return s.exchange(ctx, att, core.ChallengeDevicePasswordVerifier, responses)
}

// exchange submits one round's responses and interprets the reply.
func (s *AuthService) exchange(ctx context.Context, att *attempt, name core.ChallengeName, responses map[string]string) core.Outcome {
	resp, err := s.provider.RespondToChallenge(ctx, name, att.continuation, responses)
	if err != nil {
		return s.fail(att, s.classifyRound(name, err))
	}
	return s.interpret(att, resp)
}

// interpret turns a provider response into an outcome.
func (s *AuthService) interpret(att *attempt, resp *ports.AuthResponse) core.Outcome {
	switch {
	case resp.Tokens != nil:
		att.state = stateComplete
		return core.Succeeded(resp.Tokens)
	case resp.Challenge != nil:
		return core.ChallengeRequired(resp.Challenge)
	default:
		return s.fail(att, fmt.Errorf("provider returned neither tokens nor a challenge: %w", core.ErrMalformedChallenge))
	}
}

// conclude finalizes the attempt: wipes secrets, publishes the login event
// and unpacks the outcome. A suspended MFA attempt keeps its secrets until
// the resumption finishes the exchange.
func (s *AuthService) conclude(ctx context.Context, att *attempt, out core.Outcome) (*core.Tokens, *PendingMFA, error) {
	if att.state == stateAwaitingMFACode {
		var mfaErr *core.MFARequiredError
		if errors.As(out.Err, &mfaErr) {
			s.logger.Debug("authentication suspended on mfa code", slog.String("attempt", att.id))
			return nil, &PendingMFA{service: s, att: att}, out.Err
		}
	}

	att.wipe()

	switch out.Kind {
	case core.OutcomeSuccess:
		s.logger.Info("authentication complete",
			slog.String("attempt", att.id),
			slog.Bool("new_device", out.Tokens.NewDevice != nil))
		if s.events != nil {
			if err := s.events.PublishLogin(ctx, att.userID, att.device != nil); err != nil {
				s.logger.Warn("failed to publish login event", slog.String("error", err.Error()))
			}
		}
		return out.Tokens, nil, nil

	case core.OutcomeFailed:
		s.logger.Info("authentication failed",
			slog.String("attempt", att.id),
			slog.String("state", att.state.String()),
			slog.String("error", out.Err.Error()))
		return nil, nil, out.Err

	default:
		return nil, nil, fmt.Errorf("authentication ended in state %s: %w", att.state, core.ErrMalformedChallenge)
	}
}

func (s *AuthService) fail(att *attempt, err error) core.Outcome {
	att.state = stateFailed
	return core.Failed(err)
}
