package srp

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// UserClient computes the password-verifier claim for one login attempt.
// Each attempt must use its own UserClient: the ephemeral value is drawn
// at construction and never reused.
//
// A UserClient is not safe for concurrent use.
type UserClient struct {
	poolName string
	username string
	secret   []byte

	a    *big.Int
	bigA *big.Int
}

// NewUserClient creates an SRP client for the user password flow. poolID
// is the full provider pool identifier ("<region>_<name>"); only the name
// part participates in the derivation.
func NewUserClient(poolID, username, password string) (*UserClient, error) {
	_, poolName, ok := strings.Cut(poolID, "_")
	if !ok || poolName == "" {
		return nil, fmt.Errorf("srp: pool id %q has no name part", poolID)
	}

	a, bigA, err := newEphemeral()
	if err != nil {
		return nil, err
	}

	return &UserClient{
		poolName: poolName,
		username: username,
		secret:   []byte(password),
		a:        a,
		bigA:     bigA,
	}, nil
}

// A returns the hex-encoded ephemeral public value for the initiation
// request.
func (c *UserClient) A() string {
	return c.bigA.Text(16)
}

// PasswordClaim derives the shared key from the server's password
// challenge and signs the claim. userID is the canonical user id the
// server returned for the SRP exchange, which may differ from the login
// identifier. The stored secret is wiped once the claim is computed.
func (c *UserClient) PasswordClaim(userID, saltHex, serverBHex, secretBlock string, now time.Time) (Claim, error) {
	key, err := deriveKey(c.poolName, userID, c.secret, c.a, c.bigA, saltHex, serverBHex)
	if err != nil {
		return Claim{}, err
	}
	c.Wipe()

	return signClaim(key, c.poolName, userID, secretBlock, now)
}

// Wipe overwrites the stored password. It is called automatically after a
// claim is produced and may be called early when an attempt is abandoned.
func (c *UserClient) Wipe() {
	wipe(c.secret)
}
