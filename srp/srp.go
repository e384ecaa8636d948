// Package srp implements the client side of the SRP challenge computations
// used by the identity provider: the ephemeral public value A, the shared
// key derivation from a server challenge, and the signed claims that prove
// knowledge of a user password or a device password without transmitting
// either. It performs no network I/O.
package srp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

var (
	// ErrZeroServerValue is returned when the server public value B is
	// congruent to 0 mod N. Continuing would leak the session key, so the
	// exchange is aborted.
	ErrZeroServerValue = errors.New("srp: server public value is zero mod N")

	// ErrZeroScrambler is returned when the scrambling parameter u hashes
	// to zero, which likewise mandates an abort.
	ErrZeroScrambler = errors.New("srp: scrambling parameter is zero")

	// ErrBadParameter is returned when a server-supplied value cannot be
	// decoded.
	ErrBadParameter = errors.New("srp: malformed challenge parameter")
)

// groupN is the 3072-bit prime of RFC 3526 group 15, the group the
// identity provider's SRP implementation is fixed to.
const groupNHex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
	"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
	"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
	"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9" +
	"DE2BCBF6955817183995497CEA956AE515D2261898FA0510" +
	"15728E5A8AAAC42DAD33170D04507A33A85521ABDF1CBA64" +
	"ECFB850458DBEF0A8AEA71575D060C7DB3970F85A6E1E4C7" +
	"ABF5AE8CDB0933D71E8C94E04A25619DCEE3D2261AD2EE6B" +
	"F12FFA06D98A0864D87602733EC86A64521F2B18177B200C" +
	"BBE117577A615D6C770988C0BAD946E208E24FA074E5AB31" +
	"43DB5BFCE0FD108E4B82D120A93AD2CAFFFFFFFFFFFFFFFF"

// timestampLayout is the provider's expected claim timestamp format. The
// day of month is not zero padded.
const timestampLayout = "Mon Jan 2 15:04:05 UTC 2006"

var (
	groupN = mustHexToInt(groupNHex)
	groupG = big.NewInt(2)

	// multiplierK = H(pad(N) | pad(g)) per SRP-6a.
	multiplierK = hexToInt(hexHash(padHex(groupN) + padHex(groupG)))
)

func mustHexToInt(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("srp: bad group constant")
	}
	return n
}

func hexToInt(s string) *big.Int {
	n, _ := new(big.Int).SetString(s, 16)
	if n == nil {
		n = new(big.Int)
	}
	return n
}

// hashHex returns the SHA-256 of b as a zero-padded 64-character hex
// string. The padding matters: the provider hashes hex strings, not
// integers, so leading zeros are significant.
func hashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%064x", new(big.Int).SetBytes(sum[:]))
}

// hexHash hashes the bytes encoded by the hex string s.
func hexHash(s string) string {
	b, err := hex.DecodeString(s)
	if err != nil {
		// Callers only pass strings produced by padHex.
		panic("srp: invalid hex input")
	}
	return hashHex(b)
}

// padHex encodes n as hex with the provider's padding rules: an odd number
// of digits gets a leading zero, and a leading digit of 8-f gets a leading
// zero byte so the value is never read as negative.
func padHex(n *big.Int) string {
	s := n.Text(16)
	if len(s)%2 != 0 {
		return "0" + s
	}
	if strings.ContainsRune("89abcdef", rune(s[0])) {
		return "00" + s
	}
	return s
}

func hexBytes(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic("srp: invalid hex input")
	}
	return b
}

// deriveKey computes the 16-byte HKDF-derived shared key from the server
// challenge. prefix and identity select what is being proven: the pool
// name and user id for the password round, the device group key and device
// key for the device round.
func deriveKey(prefix, identity string, secret []byte, a, bigA *big.Int, saltHex, serverBHex string) ([]byte, error) {
	serverB, ok := new(big.Int).SetString(serverBHex, 16)
	if !ok {
		return nil, ErrBadParameter
	}
	if new(big.Int).Mod(serverB, groupN).Sign() == 0 {
		return nil, ErrZeroServerValue
	}
	salt, ok := new(big.Int).SetString(saltHex, 16)
	if !ok {
		return nil, ErrBadParameter
	}

	u := hexToInt(hexHash(padHex(bigA) + padHex(serverB)))
	if u.Sign() == 0 {
		return nil, ErrZeroScrambler
	}

	idSecret := make([]byte, 0, len(prefix)+len(identity)+1+len(secret))
	idSecret = append(idSecret, prefix...)
	idSecret = append(idSecret, identity...)
	idSecret = append(idSecret, ':')
	idSecret = append(idSecret, secret...)
	x := hexToInt(hexHash(padHex(salt) + hashHex(idSecret)))

	// S = (B - k*g^x) ^ (a + u*x) mod N
	gx := new(big.Int).Exp(groupG, x, groupN)
	base := new(big.Int).Sub(serverB, new(big.Int).Mul(multiplierK, gx))
	base.Mod(base, groupN)
	exp := new(big.Int).Add(a, new(big.Int).Mul(u, x))
	s := new(big.Int).Exp(base, exp, groupN)

	return computeHKDF(hexBytes(padHex(s)), hexBytes(padHex(u)))
}

// computeHKDF derives the 16-byte signing key with the provider's fixed
// info string.
func computeHKDF(ikm, salt []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, []byte("Caldera Derived Key"))
	key := make([]byte, 16)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Claim is a signed challenge response: the echoed secret block, the HMAC
// signature over it, and the timestamp the signature covers.
type Claim struct {
	SecretBlock string
	Signature   string
	Timestamp   string
}

// signClaim produces the claim for one verifier round. The signature
// covers prefix | identity | decoded secret block | timestamp, keyed by
// the derived shared key.
func signClaim(key []byte, prefix, identity, secretBlock string, now time.Time) (Claim, error) {
	block, err := base64.StdEncoding.DecodeString(secretBlock)
	if err != nil {
		return Claim{}, ErrBadParameter
	}

	timestamp := now.UTC().Format(timestampLayout)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(prefix))
	mac.Write([]byte(identity))
	mac.Write(block)
	mac.Write([]byte(timestamp))

	return Claim{
		SecretBlock: secretBlock,
		Signature:   base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		Timestamp:   timestamp,
	}, nil
}

// newEphemeral generates a fresh private value a and public value A for
// one exchange. A is regenerated in the vanishingly unlikely case it is
// zero mod N.
func newEphemeral() (a, bigA *big.Int, err error) {
	for {
		buf := make([]byte, 128)
		if _, err := rand.Read(buf); err != nil {
			return nil, nil, err
		}
		a = new(big.Int).Mod(new(big.Int).SetBytes(buf), groupN)
		bigA = new(big.Int).Exp(groupG, a, groupN)
		if new(big.Int).Mod(bigA, groupN).Sign() != 0 {
			return a, bigA, nil
		}
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
