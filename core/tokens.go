package core

import "time"

// Tokens is the bundle issued by the identity provider on a completed
// authentication or renewal.
type Tokens struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	IssuedAt     time.Time
	ExpiresIn    time.Duration

	// NewDevice is set when the provider issued a fresh device identity
	// alongside the tokens. It can be confirmed into a TrustedDevice.
	NewDevice *UntrustedDevice
}

// ExpiresAt returns the instant the access and ID tokens stop being valid.
func (t Tokens) ExpiresAt() time.Time {
	return t.IssuedAt.Add(t.ExpiresIn)
}
