package srp

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"time"
)

// DeviceClient computes the device-verifier claim for the trusted-device
// round of a login attempt. Like UserClient it is single-use and not safe
// for concurrent use.
type DeviceClient struct {
	groupKey  string
	deviceKey string
	secret    []byte

	a    *big.Int
	bigA *big.Int
}

// NewDeviceClient creates an SRP client keyed by a trusted device's group
// key and password instead of the user secret.
func NewDeviceClient(deviceGroupKey, deviceKey, devicePassword string) (*DeviceClient, error) {
	a, bigA, err := newEphemeral()
	if err != nil {
		return nil, err
	}

	return &DeviceClient{
		groupKey:  deviceGroupKey,
		deviceKey: deviceKey,
		secret:    []byte(devicePassword),
		a:         a,
		bigA:      bigA,
	}, nil
}

// A returns the hex-encoded ephemeral public value for the device SRP
// round.
func (c *DeviceClient) A() string {
	return c.bigA.Text(16)
}

// DeviceKey returns the device identity this client proves.
func (c *DeviceClient) DeviceKey() string {
	return c.deviceKey
}

// Claim derives the shared key from the server's device challenge and
// signs the claim. The stored device password is wiped afterwards.
func (c *DeviceClient) Claim(saltHex, serverBHex, secretBlock string, now time.Time) (Claim, error) {
	key, err := deriveKey(c.groupKey, c.deviceKey, c.secret, c.a, c.bigA, saltHex, serverBHex)
	if err != nil {
		return Claim{}, err
	}
	c.Wipe()

	return signClaim(key, c.groupKey, c.deviceKey, secretBlock, now)
}

// Wipe overwrites the stored device password.
func (c *DeviceClient) Wipe() {
	wipe(c.secret)
}

// DeviceVerifier is the secret material registered with the provider when
// a device is confirmed. Password is the generated device password the
// caller must retain to log in with the device later; PasswordVerifier and
// Salt are what the provider stores.
type DeviceVerifier struct {
	Password         string
	PasswordVerifier string
	Salt             string
}

// NewDeviceVerifier generates a random device password and the matching
// verifier for registering a device with the provider.
func NewDeviceVerifier(deviceGroupKey, deviceKey string) (DeviceVerifier, error) {
	raw := make([]byte, 40)
	if _, err := rand.Read(raw); err != nil {
		return DeviceVerifier{}, err
	}
	password := base64.StdEncoding.EncodeToString(raw)

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return DeviceVerifier{}, err
	}
	// The salt registered with the provider must be byte-identical to the
	// salt hashed into the verifier, including the sign padding.
	saltHex := padHex(new(big.Int).SetBytes(salt))

	idSecret := deviceGroupKey + deviceKey + ":" + password
	x := hexToInt(hexHash(saltHex + hashHex([]byte(idSecret))))
	verifier := new(big.Int).Exp(groupG, x, groupN)

	return DeviceVerifier{
		Password:         password,
		PasswordVerifier: base64.StdEncoding.EncodeToString(hexBytes(padHex(verifier))),
		Salt:             base64.StdEncoding.EncodeToString(hexBytes(saltHex)),
	}, nil
}
