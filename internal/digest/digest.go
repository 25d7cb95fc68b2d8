// Package digest provides the SHA-256 content addressing and XOR
// distance primitives shared by storage, routing and lookup.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Size is the length in bytes of every digest and NodeID in the system.
const Size = sha256.Size

// ID is a 256-bit content digest or node identifier.
type ID [Size]byte

// Sum returns the SHA-256 digest of data.
func Sum(data []byte) ID {
	return ID(sha256.Sum256(data))
}

// FromAddress derives a NodeID deterministically from a peer's dial
// address, per the data model: NodeID = SHA-256(address_string).
func FromAddress(addr string) ID {
	return Sum([]byte(addr))
}

// String renders the ID as lowercase hex.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the all-zero value (used as a sentinel
// for "no identity yet" and for self-reference checks).
func (id ID) IsZero() bool {
	return id == ID{}
}

// MarshalJSON renders id as a hex string, so it reads naturally in RPC
// payloads instead of as a 32-element number array.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

// UnmarshalJSON parses the hex string produced by MarshalJSON.
func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return errors.New("digest: invalid JSON encoding")
	}
	parsed, err := Parse(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Parse decodes a hex-encoded digest, as produced by String.
func Parse(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != Size {
		return id, errors.New("digest: wrong length")
	}
	copy(id[:], b)
	return id, nil
}

// XOR returns the bytewise XOR distance between a and b, per the
// Kademlia metric.
func XOR(a, b ID) ID {
	var out ID
	for i := 0; i < Size; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// Less reports whether distance a is strictly closer than distance b,
// comparing as big-endian unsigned integers.
func Less(a, b ID) bool {
	for i := 0; i < Size; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// BucketIndex returns the Kademlia bucket index (0..255) that a peer at
// XOR distance dist from the local node falls into: 255 -
// leading_zero_bits(dist). A zero distance (self) maps to bucket 0, by
// convention; callers never insert self into the table regardless.
func BucketIndex(dist ID) int {
	for i := 0; i < Size; i++ {
		if dist[i] == 0 {
			continue
		}
		lz := leadingZeros8(dist[i])
		bitIndex := i*8 + lz
		return 255 - bitIndex
	}
	return 0
}

func leadingZeros8(b byte) int {
	n := 0
	for mask := byte(0x80); mask != 0; mask >>= 1 {
		if b&mask != 0 {
			break
		}
		n++
	}
	return n
}
