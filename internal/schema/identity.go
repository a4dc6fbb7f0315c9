package schema

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

// IdentitySize is the byte length of an Identity.
const IdentitySize = 32

// Identity is an opaque 32-byte account identity. It is the record key and the
// basis of ownership checks.
type Identity [IdentitySize]byte

// ParseIdentity decodes a base58 identity.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	raw, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("decode identity %q: %w", s, err)
	}
	if len(raw) != IdentitySize {
		return id, fmt.Errorf("identity %q has %d bytes, want %d", s, len(raw), IdentitySize)
	}
	copy(id[:], raw)
	return id, nil
}

// MustParseIdentity is ParseIdentity that panics on error. Intended for tests and constants.
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IdentityFromBytes copies b into an Identity.
func IdentityFromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != IdentitySize {
		return id, fmt.Errorf("identity has %d bytes, want %d", len(b), IdentitySize)
	}
	copy(id[:], b)
	return id, nil
}

func (id Identity) String() string {
	return base58.Encode(id[:])
}

// IsZero reports whether the identity is all zero bytes.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// Compare orders identities lexicographically.
func (id Identity) Compare(other Identity) int {
	return bytes.Compare(id[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
