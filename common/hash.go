package common

import (
	"encoding/hex"

	"github.com/cockroachdb/errors"
)

// HashSize is the size of a pool hash value in bytes. All commitments,
// precommitments and nullifier hashes are field elements serialized to
// 32 bytes (big-endian).
const HashSize = 32

// Hash is a 32-byte value used for commitments, precommitments,
// nullifier hashes and transaction hashes.
type Hash [HashSize]byte

// ZeroHash is the zero value of Hash. A zero NewCommitment on a
// withdrawal record means the spend produced no successor note.
var ZeroHash = Hash{}

// NewHashFromStr parses a hex string (with or without 0x prefix) into a Hash.
func NewHashFromStr(s string) (Hash, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, errors.Wrap(err, "can't decode hash hex")
	}
	if len(b) != HashSize {
		return Hash{}, errors.Errorf("invalid hash length: %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// NewHashFromBytes copies b into a Hash. Inputs shorter than HashSize are
// left-padded with zeros, matching big-endian field element serialization.
func NewHashFromBytes(b []byte) (Hash, error) {
	if len(b) > HashSize {
		return Hash{}, errors.Errorf("invalid hash length: %d", len(b))
	}
	var h Hash
	copy(h[HashSize-len(b):], b)
	return h, nil
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) IsZero() bool {
	return h == ZeroHash
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(data []byte) error {
	parsed, err := NewHashFromStr(string(data))
	if err != nil {
		return errors.WithStack(err)
	}
	*h = parsed
	return nil
}
