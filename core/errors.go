package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredential is returned when the provider rejected the
	// username or password during the password round.
	ErrInvalidCredential = errors.New("invalid credentials")

	// ErrAccountDisabled is returned when the account exists but has been
	// disabled by the provider.
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrDeviceNotTrusted is returned when the provider rejected the
	// device round. The caller may retry from scratch without a device
	// descriptor; the library never downgrades silently.
	ErrDeviceNotTrusted = errors.New("device is not trusted")

	// ErrRefreshExpired is returned when the provider rejected the refresh
	// token. A full login is required.
	ErrRefreshExpired = errors.New("refresh token has expired")

	// ErrInvalidCredentialFields is returned when a credential is
	// constructed with an empty identifier or secret.
	ErrInvalidCredentialFields = errors.New("credential identifier and secret must be non-empty")

	// ErrInvalidDeviceDescriptor is returned when a trusted device
	// descriptor is supplied with one or more empty fields.
	ErrInvalidDeviceDescriptor = errors.New("trusted device descriptor has empty fields")

	// ErrMalformedChallenge is returned when server-issued challenge
	// parameters violate the protocol (for example B congruent to 0 mod N).
	// The attempt is aborted and must never be retried with the same
	// parameters.
	ErrMalformedChallenge = errors.New("server issued malformed challenge parameters")

	// ErrNotLoggedIn is returned by operations that require an
	// authenticated session when none is held.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrNoPendingChallenge is returned when a challenge response is
	// submitted without an authentication attempt awaiting one.
	ErrNoPendingChallenge = errors.New("no authentication challenge is pending")

	// ErrDeviceAlreadyTrusted is returned when confirming a device that
	// needs no confirmation.
	ErrDeviceAlreadyTrusted = errors.New("device is already trusted")
)

// RejectionCode classifies a protocol-level rejection as reported by the
// identity-provider adapter, before the state machine applies round
// context to it.
type RejectionCode int

const (
	// RejectionNotAuthorized covers bad credentials and rejected claims.
	RejectionNotAuthorized RejectionCode = iota

	// RejectionUserNotFound covers unknown identifiers.
	RejectionUserNotFound

	// RejectionDisabled covers disabled accounts.
	RejectionDisabled

	// RejectionThrottled covers rate limiting.
	RejectionThrottled

	// RejectionDeviceNotFound covers unknown or revoked device keys.
	RejectionDeviceNotFound

	// RejectionMalformed covers requests the provider considered invalid,
	// which at this layer means the exchange itself went wrong.
	RejectionMalformed
)

// Rejection is a classified protocol-level rejection from the identity
// provider. It is terminal for the attempt that received it.
type Rejection struct {
	Code    RejectionCode
	Message string

	// RetryAfter optionally carries the provider's backoff hint for
	// RejectionThrottled. Zero when the provider gave none.
	RetryAfter time.Duration
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("identity provider rejected the request: %s", r.Message)
}

// ThrottledError is surfaced when the provider rate-limited the attempt.
// RetryAfter is a hint the caller may honor; the library never retries on
// its own.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("request was throttled, retry after %s", e.RetryAfter)
	}
	return "request was throttled"
}

// TransportError wraps a network-level failure (timeout, connection reset,
// cancellation). Unlike protocol rejections it is safe to retry the whole
// attempt from scratch.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MissingParameterError is returned when a required field is absent from a
// challenge the provider issued.
type MissingParameterError struct {
	Key       string
	Challenge ChallengeName
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("challenge %s is missing parameter %s", e.Challenge, e.Key)
}

func (e *MissingParameterError) Unwrap() error { return ErrMalformedChallenge }

// MFARequiredError is returned when the provider demands a one-time code
// before it will issue tokens. The login attempt stays open; the caller
// resumes it by submitting the code.
type MFARequiredError struct {
	Challenge ChallengeName
}

func (e *MFARequiredError) Error() string {
	return fmt.Sprintf("authentication requires a %s code", e.Challenge)
}

// UnsupportedChallengeError is returned when the provider requests a round
// this library does not implement.
type UnsupportedChallengeError struct {
	Challenge ChallengeName
}

func (e *UnsupportedChallengeError) Error() string {
	return fmt.Sprintf("unsupported authentication challenge %q", e.Challenge)
}
