package record

import (
	"encoding/hex"
	"fmt"
)

// Identity is an opaque 32-byte identity handle (clients, responders, agent
// owners). Text forms are lowercase hex.
type Identity [32]byte

// Bytes32 is an opaque 32-byte value: classification tags and content hashes.
type Bytes32 [32]byte

// ParseIdentity decodes a 64-character hex string into an Identity.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	if err := decodeHex32(s, (*[32]byte)(&id)); err != nil {
		return Identity{}, fmt.Errorf("record: parse identity: %w", err)
	}
	return id, nil
}

// ParseBytes32 decodes a 64-character hex string. The empty string decodes to
// the zero value so optional tags and hashes can be omitted.
func ParseBytes32(s string) (Bytes32, error) {
	var b Bytes32
	if s == "" {
		return b, nil
	}
	if err := decodeHex32(s, (*[32]byte)(&b)); err != nil {
		return Bytes32{}, fmt.Errorf("record: parse bytes32: %w", err)
	}
	return b, nil
}

func (id Identity) String() string { return hex.EncodeToString(id[:]) }

// IsZero reports whether every byte is zero.
func (id Identity) IsZero() bool { return id == Identity{} }

func (id Identity) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *Identity) UnmarshalText(text []byte) error {
	return decodeHex32(string(text), (*[32]byte)(id))
}

func (b Bytes32) String() string { return hex.EncodeToString(b[:]) }

func (b Bytes32) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Bytes32) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*b = Bytes32{}
		return nil
	}
	return decodeHex32(string(text), (*[32]byte)(b))
}

func decodeHex32(s string, dst *[32]byte) error {
	if len(s) != 64 {
		return fmt.Errorf("want 64 hex characters, got %d", len(s))
	}
	var tmp [32]byte
	if _, err := hex.Decode(tmp[:], []byte(s)); err != nil {
		return err
	}
	*dst = tmp
	return nil
}
