package core

// ChallengeName identifies a round of the authentication exchange.
type ChallengeName string

const (
	// ChallengePasswordVerifier asks the client to prove knowledge of the
	// user's password against the server-issued SRP parameters.
	ChallengePasswordVerifier ChallengeName = "PASSWORD_VERIFIER"

	// ChallengeDeviceSRP asks the client to open an SRP exchange for the
	// trusted device it announced at initiation.
	ChallengeDeviceSRP ChallengeName = "DEVICE_SRP_AUTH"

	// ChallengeDevicePasswordVerifier asks the client to prove knowledge
	// of the device password.
	ChallengeDevicePasswordVerifier ChallengeName = "DEVICE_PASSWORD_VERIFIER"

	// ChallengeSMSMFA asks for a one-time code delivered to the account's
	// phone number. It cannot be answered without caller input.
	ChallengeSMSMFA ChallengeName = "SMS_MFA"
)

// Parameter keys used in challenge parameters and responses. These are the
// field names of the identity provider's wire protocol.
const (
	ParamUsername       = "USERNAME"
	ParamSRPA           = "SRP_A"
	ParamSRPB           = "SRP_B"
	ParamSalt           = "SALT"
	ParamSecretBlock    = "SECRET_BLOCK"
	ParamUserIDForSRP   = "USER_ID_FOR_SRP"
	ParamDeviceKey      = "DEVICE_KEY"
	ParamClaimBlock     = "PASSWORD_CLAIM_SECRET_BLOCK"
	ParamClaimSignature = "PASSWORD_CLAIM_SIGNATURE"
	ParamTimestamp      = "TIMESTAMP"
	ParamSMSMFACode     = "SMS_MFA_CODE"
	ParamRefreshToken   = "REFRESH_TOKEN"
)

// ChallengeParameters carries one round's server-issued material. Each
// instance is consumed by exactly one claim computation; a retried attempt
// must obtain fresh parameters from a new initiation.
type ChallengeParameters struct {
	Name ChallengeName

	// Values holds the round's key/value parameters (salt, SRP_B, secret
	// block, user id, device group key).
	Values map[string]string

	// Continuation is the opaque session token linking this round to the
	// next one.
	Continuation string
}

// Get returns a required parameter value, or a *MissingParameterError
// when the provider omitted it.
func (p ChallengeParameters) Get(key string) (string, error) {
	v, ok := p.Values[key]
	if !ok || v == "" {
		return "", &MissingParameterError{Key: key, Challenge: p.Name}
	}
	return v, nil
}
