// Package address defines ledger addresses and the deterministic
// derivation scheme used to locate program records.
package address

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.dedis.ch/kyber/v4/suites"
)

// Size is the byte length of an address.
const Size = 32

// Address identifies an account on the ledger.
type Address [Size]byte

// Zero is the empty address. The system program owns accounts whose owner is Zero.
var Zero Address

var suite = suites.MustFind("Ed25519") //nolint:gochecknoglobals // curve suite is stateless

// String returns the lowercase hex form.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Short returns an abbreviated form for logs and tables.
func (a Address) Short() string {
	s := a.String()
	return s[:6] + ".." + s[len(s)-4:]
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Zero
}

// Bytes returns a copy of the address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, a[:])
	return b
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Parse decodes a 64-character hex string.
func Parse(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != hex.EncodedLen(Size) {
		return a, fmt.Errorf("%w: want %d hex chars, got %d", ErrInvalidAddress, hex.EncodedLen(Size), len(s))
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return a, nil
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromHash returns sha256(data) as an address. Used for program ids.
func FromHash(data []byte) Address {
	return Address(sha256.Sum256(data))
}

// IsOnCurve reports whether a decodes as a compressed ed25519 point.
// Wallet identities are on the curve; derived addresses never are.
func IsOnCurve(a Address) bool {
	return suite.Point().UnmarshalBinary(a[:]) == nil
}

// NewIdentity returns a fresh random wallet identity.
func NewIdentity() Address {
	p := suite.Point().Pick(suite.RandomStream())
	return pointAddress(p.MarshalBinary())
}

// IdentityFromName returns a deterministic wallet identity for name.
func IdentityFromName(name string) Address {
	p := suite.Point().Pick(suite.XOF([]byte("wagerpool/identity/" + name)))
	return pointAddress(p.MarshalBinary())
}

func pointAddress(b []byte, err error) Address {
	if err != nil {
		panic(fmt.Sprintf("marshal ed25519 point: %v", err))
	}
	var a Address
	copy(a[:], b)
	return a
}
