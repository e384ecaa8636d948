package core

// Credential holds a user's login credentials.
//
// The identifier is the email address the Hive account was registered
// with. The secret never leaves the process: the SRP exchange proves
// knowledge of it without transmitting it.
type Credential struct {
	Identifier string
	Secret     string
}

// NewCredential validates and creates a Credential.
func NewCredential(identifier, secret string) (Credential, error) {
	if identifier == "" || secret == "" {
		return Credential{}, ErrInvalidCredentialFields
	}
	return Credential{Identifier: identifier, Secret: secret}, nil
}

// TrustedDevice identifies a device previously confirmed with the identity
// provider. Supplying one at login lets the provider authenticate the
// device with an additional SRP round instead of prompting for MFA.
type TrustedDevice struct {
	DeviceKey      string
	DeviceGroupKey string
	DevicePassword string
}

// NewTrustedDevice validates and creates a TrustedDevice. All three fields
// are required: a partially-filled descriptor is a caller bug, not a
// request for a password-only login, so it is rejected instead of being
// treated as absent.
func NewTrustedDevice(deviceKey, deviceGroupKey, devicePassword string) (*TrustedDevice, error) {
	if deviceKey == "" || deviceGroupKey == "" || devicePassword == "" {
		return nil, ErrInvalidDeviceDescriptor
	}
	return &TrustedDevice{
		DeviceKey:      deviceKey,
		DeviceGroupKey: deviceGroupKey,
		DevicePassword: devicePassword,
	}, nil
}

// UntrustedDevice is the device identity the provider issues on a fresh
// login. It becomes a TrustedDevice once confirmed.
type UntrustedDevice struct {
	DeviceKey      string
	DeviceGroupKey string
}
