package ports

import (
	"context"

	"github.com/apiaryhq/hive/core"
)

// AuthResponse is one round's reply from the identity provider: either a
// terminal token issuance or the next challenge. Exactly one of Tokens and
// Challenge is set.
type AuthResponse struct {
	Tokens    *core.Tokens
	Challenge *core.ChallengeParameters
}

// IdentityProvider is the request/response interface to the provider's
// authentication endpoint. Implementations own the wire encoding and the
// mapping of wire-level failures onto *core.Rejection (protocol) and
// *core.TransportError (network); the state machine owns what each
// rejection means for the round it arrived in.
type IdentityProvider interface {
	// InitiateAuth opens an SRP exchange. params carries USERNAME, SRP_A
	// and optionally DEVICE_KEY; the secret itself is never sent.
	InitiateAuth(ctx context.Context, params map[string]string) (*AuthResponse, error)

	// RespondToChallenge answers the named challenge using the
	// continuation token from the previous round.
	RespondToChallenge(ctx context.Context, name core.ChallengeName, continuation string, responses map[string]string) (*AuthResponse, error)

	// RenewTokens exchanges a refresh token for fresh access and ID
	// tokens without re-running the SRP exchange. deviceKey may be empty.
	RenewTokens(ctx context.Context, refreshToken, deviceKey string) (*core.Tokens, error)

	// ConfirmDevice registers a device secret verifier for the device the
	// provider issued at login. It reports whether the pool additionally
	// requires the device to be marked as remembered.
	ConfirmDevice(ctx context.Context, accessToken, deviceKey, deviceName string, verifier DeviceSecretVerifier) (confirmationNeeded bool, err error)

	// MarkDeviceRemembered flags a confirmed device as remembered so the
	// provider offers the device round on later logins.
	MarkDeviceRemembered(ctx context.Context, accessToken, deviceKey string) error

	// SignOut revokes every token issued to the user of this access
	// token.
	SignOut(ctx context.Context, accessToken string) error
}

// DeviceSecretVerifier is the verifier material registered during device
// confirmation.
type DeviceSecretVerifier struct {
	PasswordVerifier string
	Salt             string
}
