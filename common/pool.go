package common

import (
	"encoding/hex"
	"strings"
)

// Pool identifies one shielded pool instance (the pool contract address,
// lowercase 0x-prefixed hex). All secrets, feed records and cached state are
// scoped by pool.
type Pool string

func NewPool(s string) Pool {
	return Pool(strings.ToLower(s))
}

// IsValid reports whether the pool identifier is a well-formed 20-byte
// address.
func (p Pool) IsValid() bool {
	s := string(p)
	if !strings.HasPrefix(s, "0x") || len(s) != 42 {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

func (p Pool) String() string {
	return string(p)
}

// Bytes returns the raw address bytes. Returns nil for malformed pools.
func (p Pool) Bytes() []byte {
	if !p.IsValid() {
		return nil
	}
	b, _ := hex.DecodeString(string(p)[2:])
	return b
}

// Identity identifies one account scope for discovery. It is the hash of the
// account viewing key, so the cache can be partitioned per account without
// storing key material.
type Identity string

func (i Identity) String() string {
	return string(i)
}
