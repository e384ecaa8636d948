package hive

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the subset of the provider-signed access token this
// library reads: the canonical username, the device key the token was
// issued to (empty when none), and the expiry instant.
type AccessClaims struct {
	Username  string
	DeviceKey string
	ExpiresAt time.Time
}

// ParseAccessClaims decodes the claims of an access token. The token is
// not verified: it was received directly from the provider over TLS, and
// this client has no use for the pool's public keys beyond that.
func ParseAccessClaims(token string) (*AccessClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decoding access token: %w", err)
	}

	out := &AccessClaims{}
	if username, ok := claims["username"].(string); ok {
		out.Username = username
	}
	if deviceKey, ok := claims["device_key"].(string); ok {
		out.DeviceKey = deviceKey
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	return out, nil
}
