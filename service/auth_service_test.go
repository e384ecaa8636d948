package service

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apiaryhq/hive/core"
	"github.com/apiaryhq/hive/ports"
)

const testPoolID = "eu-west-1_TestPool"

// fakeProvider scripts the identity provider one round at a time and
// records what the state machine sent.
type fakeProvider struct {
	initiateFn  func(params map[string]string) (*ports.AuthResponse, error)
	respondFns  []func(name core.ChallengeName, continuation string, responses map[string]string) (*ports.AuthResponse, error)
	renewFn     func(refreshToken, deviceKey string) (*core.Tokens, error)
	confirmFn   func(deviceKey, deviceName string, verifier ports.DeviceSecretVerifier) (bool, error)
	signOutFn   func(accessToken string) error
	rememberErr error

	initiations    []map[string]string
	rounds         []core.ChallengeName
	rememberCalled bool
}

func (f *fakeProvider) InitiateAuth(_ context.Context, params map[string]string) (*ports.AuthResponse, error) {
	f.initiations = append(f.initiations, params)
	return f.initiateFn(params)
}

func (f *fakeProvider) RespondToChallenge(_ context.Context, name core.ChallengeName, continuation string, responses map[string]string) (*ports.AuthResponse, error) {
	f.rounds = append(f.rounds, name)
	if len(f.respondFns) == 0 {
		return nil, &core.Rejection{Code: core.RejectionMalformed, Message: "unexpected round"}
	}
	fn := f.respondFns[0]
	f.respondFns = f.respondFns[1:]
	return fn(name, continuation, responses)
}

func (f *fakeProvider) RenewTokens(_ context.Context, refreshToken, deviceKey string) (*core.Tokens, error) {
	return f.renewFn(refreshToken, deviceKey)
}

func (f *fakeProvider) ConfirmDevice(_ context.Context, _, deviceKey, deviceName string, verifier ports.DeviceSecretVerifier) (bool, error) {
	return f.confirmFn(deviceKey, deviceName, verifier)
}

func (f *fakeProvider) MarkDeviceRemembered(_ context.Context, _, _ string) error {
	f.rememberCalled = true
	return f.rememberErr
}

func (f *fakeProvider) SignOut(_ context.Context, accessToken string) error {
	return f.signOutFn(accessToken)
}

func passwordChallenge(userID string) *ports.AuthResponse {
	return &ports.AuthResponse{Challenge: &core.ChallengeParameters{
		Name: core.ChallengePasswordVerifier,
		Values: map[string]string{
			core.ParamSalt:         "a1b2c3d4",
			core.ParamSRPB:         "1234abcd",
			core.ParamSecretBlock:  base64.StdEncoding.EncodeToString([]byte("secret-block")),
			core.ParamUserIDForSRP: userID,
		},
		Continuation: "continuation-1",
	}}
}

func deviceChallenge(name core.ChallengeName, continuation string) *ports.AuthResponse {
	return &ports.AuthResponse{Challenge: &core.ChallengeParameters{
		Name: name,
		Values: map[string]string{
			core.ParamSalt:        "0f0e0d0c",
			core.ParamSRPB:        "5678dcba",
			core.ParamSecretBlock: base64.StdEncoding.EncodeToString([]byte("device-block")),
		},
		Continuation: continuation,
	}}
}

func issuedTokens() *ports.AuthResponse {
	return &ports.AuthResponse{Tokens: &core.Tokens{
		IDToken:      "id-token",
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		IssuedAt:     time.Now(),
		ExpiresIn:    time.Hour,
	}}
}

func mustCredential(t *testing.T) core.Credential {
	t.Helper()
	credential, err := core.NewCredential("user@example.com", "correct-password")
	require.NoError(t, err)
	return credential
}

func TestAuthenticatePasswordOnly(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		initiateFn: func(params map[string]string) (*ports.AuthResponse, error) {
			return passwordChallenge("canonical-user-id"), nil
		},
		respondFns: []func(core.ChallengeName, string, map[string]string) (*ports.AuthResponse, error){
			func(name core.ChallengeName, continuation string, responses map[string]string) (*ports.AuthResponse, error) {
				require.Equal(t, core.ChallengePasswordVerifier, name)
				require.Equal(t, "continuation-1", continuation)
				require.Equal(t, "canonical-user-id", responses[core.ParamUsername])
				require.NotEmpty(t, responses[core.ParamClaimBlock])
				require.NotEmpty(t, responses[core.ParamClaimSignature])
				require.NotEmpty(t, responses[core.ParamTimestamp])
				require.NotContains(t, responses, core.ParamDeviceKey)
				return issuedTokens(), nil
			},
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	tokens, pending, err := service.Authenticate(context.Background(), mustCredential(t), nil)
	require.NoError(t, err)
	require.Nil(t, pending)
	require.Equal(t, "access-token", tokens.AccessToken)
	require.Equal(t, "id-token", tokens.IDToken)
	require.Equal(t, "refresh-token", tokens.RefreshToken)

	// The secret never leaves the process: the initiation carries the
	// identifier and the SRP public value only.
	require.Len(t, provider.initiations, 1)
	require.Equal(t, "user@example.com", provider.initiations[0][core.ParamUsername])
	require.NotEmpty(t, provider.initiations[0][core.ParamSRPA])
	require.NotContains(t, provider.initiations[0], "PASSWORD")
}

func TestAuthenticateFreshEphemeralPerAttempt(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		initiateFn: func(map[string]string) (*ports.AuthResponse, error) {
			return nil, &core.Rejection{Code: core.RejectionNotAuthorized, Message: "nope"}
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	for i := 0; i < 2; i++ {
		_, _, err := service.Authenticate(context.Background(), mustCredential(t), nil)
		require.Error(t, err)
	}

	require.Len(t, provider.initiations, 2)
	require.NotEqual(t, provider.initiations[0][core.ParamSRPA], provider.initiations[1][core.ParamSRPA])
}

func TestAuthenticateWrongPassword(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		initiateFn: func(map[string]string) (*ports.AuthResponse, error) {
			return passwordChallenge("canonical-user-id"), nil
		},
		respondFns: []func(core.ChallengeName, string, map[string]string) (*ports.AuthResponse, error){
			func(core.ChallengeName, string, map[string]string) (*ports.AuthResponse, error) {
				return nil, &core.Rejection{Code: core.RejectionNotAuthorized, Message: "Incorrect username or password."}
			},
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	tokens, pending, err := service.Authenticate(context.Background(), mustCredential(t), nil)
	require.ErrorIs(t, err, core.ErrInvalidCredential)
	require.Nil(t, tokens)
	require.Nil(t, pending)
}

func TestAuthenticateDisabledAccount(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		initiateFn: func(map[string]string) (*ports.AuthResponse, error) {
			return nil, &core.Rejection{Code: core.RejectionDisabled, Message: "User is disabled."}
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	_, _, err := service.Authenticate(context.Background(), mustCredential(t), nil)
	require.ErrorIs(t, err, core.ErrAccountDisabled)
}

func TestAuthenticateThrottled(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		initiateFn: func(map[string]string) (*ports.AuthResponse, error) {
			return nil, &core.Rejection{Code: core.RejectionThrottled, Message: "slow down", RetryAfter: 30 * time.Second}
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	_, _, err := service.Authenticate(context.Background(), mustCredential(t), nil)

	var throttled *core.ThrottledError
	require.ErrorAs(t, err, &throttled)
	require.Equal(t, 30*time.Second, throttled.RetryAfter)
}

func TestAuthenticateTransportFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	provider := &fakeProvider{
		initiateFn: func(map[string]string) (*ports.AuthResponse, error) {
			return nil, &core.TransportError{Op: "initiate auth", Err: cause}
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	_, _, err := service.Authenticate(context.Background(), mustCredential(t), nil)

	// Transport failures stay distinguishable so the caller can retry
	// the whole attempt.
	var transport *core.TransportError
	require.ErrorAs(t, err, &transport)
	require.ErrorIs(t, err, cause)
}

func TestAuthenticateTrustedDevice(t *testing.T) {
	t.Parallel()

	device, err := core.NewTrustedDevice("device-key", "device-group-key", "device-password")
	require.NoError(t, err)

	provider := &fakeProvider{
		initiateFn: func(params map[string]string) (*ports.AuthResponse, error) {
			require.Equal(t, "device-key", params[core.ParamDeviceKey])
			return passwordChallenge("canonical-user-id"), nil
		},
		respondFns: []func(core.ChallengeName, string, map[string]string) (*ports.AuthResponse, error){
			func(name core.ChallengeName, _ string, responses map[string]string) (*ports.AuthResponse, error) {
				require.Equal(t, core.ChallengePasswordVerifier, name)
				require.Equal(t, "device-key", responses[core.ParamDeviceKey])
				return deviceChallenge(core.ChallengeDeviceSRP, "continuation-2"), nil
			},
			func(name core.ChallengeName, continuation string, responses map[string]string) (*ports.AuthResponse, error) {
				require.Equal(t, core.ChallengeDeviceSRP, name)
				require.Equal(t, "continuation-2", continuation)
				require.NotEmpty(t, responses[core.ParamSRPA])
				require.Equal(t, "device-key", responses[core.ParamDeviceKey])
				return deviceChallenge(core.ChallengeDevicePasswordVerifier, "continuation-3"), nil
			},
			func(name core.ChallengeName, continuation string, responses map[string]string) (*ports.AuthResponse, error) {
				require.Equal(t, core.ChallengeDevicePasswordVerifier, name)
				require.Equal(t, "continuation-3", continuation)
				require.NotEmpty(t, responses[core.ParamClaimSignature])
				return issuedTokens(), nil
			},
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	tokens, pending, err := service.Authenticate(context.Background(), mustCredential(t), device)
	require.NoError(t, err)
	require.Nil(t, pending)
	require.NotNil(t, tokens)
	require.Equal(t, []core.ChallengeName{
		core.ChallengePasswordVerifier,
		core.ChallengeDeviceSRP,
		core.ChallengeDevicePasswordVerifier,
	}, provider.rounds)
}

func TestAuthenticateRevokedDevice(t *testing.T) {
	t.Parallel()

	device, err := core.NewTrustedDevice("revoked-key", "device-group-key", "device-password")
	require.NoError(t, err)

	provider := &fakeProvider{
		initiateFn: func(map[string]string) (*ports.AuthResponse, error) {
			return passwordChallenge("canonical-user-id"), nil
		},
		respondFns: []func(core.ChallengeName, string, map[string]string) (*ports.AuthResponse, error){
			func(core.ChallengeName, string, map[string]string) (*ports.AuthResponse, error) {
				return deviceChallenge(core.ChallengeDeviceSRP, "continuation-2"), nil
			},
			func(core.ChallengeName, string, map[string]string) (*ports.AuthResponse, error) {
				return nil, &core.Rejection{Code: core.RejectionDeviceNotFound, Message: "Device does not exist."}
			},
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	tokens, _, err := service.Authenticate(context.Background(), mustCredential(t), device)
	require.ErrorIs(t, err, core.ErrDeviceNotTrusted)
	require.Nil(t, tokens)
}

func TestAuthenticateDeviceRoundWithoutDescriptor(t *testing.T) {
	t.Parallel()

	// A device round the client never asked for is a protocol violation.
	provider := &fakeProvider{
		initiateFn: func(map[string]string) (*ports.AuthResponse, error) {
			return passwordChallenge("canonical-user-id"), nil
		},
		respondFns: []func(core.ChallengeName, string, map[string]string) (*ports.AuthResponse, error){
			func(core.ChallengeName, string, map[string]string) (*ports.AuthResponse, error) {
				return deviceChallenge(core.ChallengeDeviceSRP, "continuation-2"), nil
			},
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	_, _, err := service.Authenticate(context.Background(), mustCredential(t), nil)
	require.ErrorIs(t, err, core.ErrMalformedChallenge)
}

func TestAuthenticateZeroServerValue(t *testing.T) {
	t.Parallel()

	challenge := passwordChallenge("canonical-user-id")
	challenge.Challenge.Values[core.ParamSRPB] = "0"

	provider := &fakeProvider{
		initiateFn: func(map[string]string) (*ports.AuthResponse, error) {
			return challenge, nil
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	_, _, err := service.Authenticate(context.Background(), mustCredential(t), nil)
	require.ErrorIs(t, err, core.ErrMalformedChallenge)
	require.Empty(t, provider.rounds)
}

func TestAuthenticateMissingChallengeParameter(t *testing.T) {
	t.Parallel()

	challenge := passwordChallenge("canonical-user-id")
	delete(challenge.Challenge.Values, core.ParamSecretBlock)

	provider := &fakeProvider{
		initiateFn: func(map[string]string) (*ports.AuthResponse, error) {
			return challenge, nil
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	_, _, err := service.Authenticate(context.Background(), mustCredential(t), nil)
	require.ErrorIs(t, err, core.ErrMalformedChallenge)

	var missing *core.MissingParameterError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, core.ParamSecretBlock, missing.Key)
}

func TestAuthenticateUnsupportedChallenge(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		initiateFn: func(map[string]string) (*ports.AuthResponse, error) {
			return &ports.AuthResponse{Challenge: &core.ChallengeParameters{
				Name:   "NEW_PASSWORD_REQUIRED",
				Values: map[string]string{},
			}}, nil
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	_, _, err := service.Authenticate(context.Background(), mustCredential(t), nil)

	var unsupported *core.UnsupportedChallengeError
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, core.ChallengeName("NEW_PASSWORD_REQUIRED"), unsupported.Challenge)
}

func TestAuthenticateEmptyResponse(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		initiateFn: func(map[string]string) (*ports.AuthResponse, error) {
			return &ports.AuthResponse{}, nil
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	_, _, err := service.Authenticate(context.Background(), mustCredential(t), nil)
	require.ErrorIs(t, err, core.ErrMalformedChallenge)
}

func TestAuthenticateSMSMFA(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		initiateFn: func(map[string]string) (*ports.AuthResponse, error) {
			return passwordChallenge("canonical-user-id"), nil
		},
		respondFns: []func(core.ChallengeName, string, map[string]string) (*ports.AuthResponse, error){
			func(core.ChallengeName, string, map[string]string) (*ports.AuthResponse, error) {
				return &ports.AuthResponse{Challenge: &core.ChallengeParameters{
					Name:         core.ChallengeSMSMFA,
					Values:       map[string]string{},
					Continuation: "continuation-mfa",
				}}, nil
			},
			func(name core.ChallengeName, continuation string, responses map[string]string) (*ports.AuthResponse, error) {
				require.Equal(t, core.ChallengeSMSMFA, name)
				require.Equal(t, "continuation-mfa", continuation)
				require.Equal(t, "123456", responses[core.ParamSMSMFACode])
				require.Equal(t, "canonical-user-id", responses[core.ParamUsername])
				return issuedTokens(), nil
			},
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	tokens, pending, err := service.Authenticate(context.Background(), mustCredential(t), nil)

	var mfa *core.MFARequiredError
	require.ErrorAs(t, err, &mfa)
	require.Nil(t, tokens)
	require.NotNil(t, pending)

	tokens, next, err := pending.Respond(context.Background(), "123456")
	require.NoError(t, err)
	require.Nil(t, next)
	require.Equal(t, "access-token", tokens.AccessToken)

	// The pending attempt is single-use.
	_, _, err = pending.Respond(context.Background(), "123456")
	require.ErrorIs(t, err, core.ErrNoPendingChallenge)
}

func TestAuthenticateMFAThenDeviceRounds(t *testing.T) {
	t.Parallel()

	device, err := core.NewTrustedDevice("device-key", "device-group-key", "device-password")
	require.NoError(t, err)

	// When the announced device is not yet remembered the provider asks
	// for the one-time code first and only then runs the device rounds.
	provider := &fakeProvider{
		initiateFn: func(map[string]string) (*ports.AuthResponse, error) {
			return passwordChallenge("canonical-user-id"), nil
		},
		respondFns: []func(core.ChallengeName, string, map[string]string) (*ports.AuthResponse, error){
			func(name core.ChallengeName, _ string, _ map[string]string) (*ports.AuthResponse, error) {
				require.Equal(t, core.ChallengePasswordVerifier, name)
				return &ports.AuthResponse{Challenge: &core.ChallengeParameters{
					Name:         core.ChallengeSMSMFA,
					Values:       map[string]string{},
					Continuation: "continuation-mfa",
				}}, nil
			},
			func(name core.ChallengeName, continuation string, responses map[string]string) (*ports.AuthResponse, error) {
				require.Equal(t, core.ChallengeSMSMFA, name)
				require.Equal(t, "continuation-mfa", continuation)
				require.Equal(t, "654321", responses[core.ParamSMSMFACode])
				require.Equal(t, "device-key", responses[core.ParamDeviceKey])
				return deviceChallenge(core.ChallengeDeviceSRP, "continuation-2"), nil
			},
			func(name core.ChallengeName, _ string, responses map[string]string) (*ports.AuthResponse, error) {
				require.Equal(t, core.ChallengeDeviceSRP, name)
				require.NotEmpty(t, responses[core.ParamSRPA])
				return deviceChallenge(core.ChallengeDevicePasswordVerifier, "continuation-3"), nil
			},
			func(name core.ChallengeName, _ string, responses map[string]string) (*ports.AuthResponse, error) {
				require.Equal(t, core.ChallengeDevicePasswordVerifier, name)
				require.NotEmpty(t, responses[core.ParamClaimSignature])
				return issuedTokens(), nil
			},
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	tokens, pending, err := service.Authenticate(context.Background(), mustCredential(t), device)

	var mfa *core.MFARequiredError
	require.ErrorAs(t, err, &mfa)
	require.Nil(t, tokens)
	require.NotNil(t, pending)

	tokens, next, err := pending.Respond(context.Background(), "654321")
	require.NoError(t, err)
	require.Nil(t, next)
	require.Equal(t, "access-token", tokens.AccessToken)
	require.Equal(t, []core.ChallengeName{
		core.ChallengePasswordVerifier,
		core.ChallengeSMSMFA,
		core.ChallengeDeviceSRP,
		core.ChallengeDevicePasswordVerifier,
	}, provider.rounds)
}

func TestRespondRepeatedMFAChallenge(t *testing.T) {
	t.Parallel()

	mfaChallenge := func(continuation string) *ports.AuthResponse {
		return &ports.AuthResponse{Challenge: &core.ChallengeParameters{
			Name:         core.ChallengeSMSMFA,
			Values:       map[string]string{},
			Continuation: continuation,
		}}
	}

	provider := &fakeProvider{
		initiateFn: func(map[string]string) (*ports.AuthResponse, error) {
			return passwordChallenge("canonical-user-id"), nil
		},
		respondFns: []func(core.ChallengeName, string, map[string]string) (*ports.AuthResponse, error){
			func(core.ChallengeName, string, map[string]string) (*ports.AuthResponse, error) {
				return mfaChallenge("continuation-mfa-1"), nil
			},
			func(core.ChallengeName, string, map[string]string) (*ports.AuthResponse, error) {
				return mfaChallenge("continuation-mfa-2"), nil
			},
			func(name core.ChallengeName, continuation string, responses map[string]string) (*ports.AuthResponse, error) {
				require.Equal(t, core.ChallengeSMSMFA, name)
				require.Equal(t, "continuation-mfa-2", continuation)
				require.Equal(t, "222222", responses[core.ParamSMSMFACode])
				return issuedTokens(), nil
			},
		},
	}

	service := NewAuthService(provider, nil, testPoolID, nil)
	_, pending, err := service.Authenticate(context.Background(), mustCredential(t), nil)
	require.Error(t, err)
	require.NotNil(t, pending)

	// A second code demand keeps the attempt resumable.
	tokens, next, err := pending.Respond(context.Background(), "111111")
	var mfa *core.MFARequiredError
	require.ErrorAs(t, err, &mfa)
	require.Nil(t, tokens)
	require.NotNil(t, next)

	tokens, final, err := next.Respond(context.Background(), "222222")
	require.NoError(t, err)
	require.Nil(t, final)
	require.Equal(t, "access-token", tokens.AccessToken)
}
