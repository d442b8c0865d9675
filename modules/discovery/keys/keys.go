// Package keys implements the deterministic secret-derivation family used by
// note discovery. Every deposit and change note of an account is derived
// from a single 32-byte account key, the pool identifier and sequential
// indices, so the full payment history can be reconstructed from key
// material alone.
package keys

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/cockroachdb/errors"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/veil-network/pool-scanner/common"
)

// AccountKeySize is the size of an account key in bytes.
const AccountKeySize = 32

// Domain separation tags. Changing any of these breaks derivation
// compatibility with previously created deposits.
var (
	tagIdentity         = []byte("veil/v1/identity")
	tagDepositNullifier = []byte("veil/v1/deposit-nullifier")
	tagDepositSecret    = []byte("veil/v1/deposit-secret")
	tagChangeNullifier  = []byte("veil/v1/change-nullifier")
	tagChangeSecret     = []byte("veil/v1/change-secret")
)

// Account holds the account key from which all note secrets are derived.
type Account struct {
	key [AccountKeySize]byte
}

// NewAccountFromHex parses a hex-encoded 32-byte account key.
func NewAccountFromHex(s string) (Account, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Account{}, errors.Wrap(err, "decode account key")
	}
	if len(b) != AccountKeySize {
		return Account{}, errors.Errorf("invalid account key length: %d", len(b))
	}
	var account Account
	copy(account.key[:], b)
	return account, nil
}

// Identity returns the public identifier of the account: the hash of the
// account key. It scopes cached state without exposing key material.
func (a Account) Identity() common.Identity {
	return common.Identity(hashElems(tagIdentity, a.key[:]).String())
}

// Deriver is the secret-derivation contract consumed by the discovery
// engine. All operations are deterministic and side-effect free.
type Deriver interface {
	// DepositSecretPair derives the nullifier and secret of the deposit
	// note at the given deposit index.
	DepositSecretPair(account Account, pool common.Pool, depositIndex uint64) (nullifier, secret common.Hash)

	// ChangeSecretPair derives the nullifier and secret of the change note
	// at the given change index of a deposit.
	ChangeSecretPair(account Account, pool common.Pool, depositIndex, changeIndex uint64) (nullifier, secret common.Hash)

	// Precommitment hashes a nullifier and secret into the precommitment
	// published at deposit time.
	Precommitment(nullifier, secret common.Hash) common.Hash

	// NullifierHash hashes a nullifier into the value published when the
	// note is spent.
	NullifierHash(nullifier common.Hash) common.Hash
}

// MiMCDeriver derives secrets with MiMC over the bn254 scalar field, the
// hash used by the pool circuits.
type MiMCDeriver struct{}

var _ Deriver = MiMCDeriver{}

func NewMiMCDeriver() MiMCDeriver {
	return MiMCDeriver{}
}

func (MiMCDeriver) DepositSecretPair(account Account, pool common.Pool, depositIndex uint64) (nullifier, secret common.Hash) {
	index := indexBytes(depositIndex)
	nullifier = hashElems(tagDepositNullifier, account.key[:], pool.Bytes(), index)
	secret = hashElems(tagDepositSecret, account.key[:], pool.Bytes(), index)
	return nullifier, secret
}

func (MiMCDeriver) ChangeSecretPair(account Account, pool common.Pool, depositIndex, changeIndex uint64) (nullifier, secret common.Hash) {
	deposit, change := indexBytes(depositIndex), indexBytes(changeIndex)
	nullifier = hashElems(tagChangeNullifier, account.key[:], pool.Bytes(), deposit, change)
	secret = hashElems(tagChangeSecret, account.key[:], pool.Bytes(), deposit, change)
	return nullifier, secret
}

func (MiMCDeriver) Precommitment(nullifier, secret common.Hash) common.Hash {
	return hashElems(nullifier.Bytes(), secret.Bytes())
}

func (MiMCDeriver) NullifierHash(nullifier common.Hash) common.Hash {
	return hashElems(nullifier.Bytes())
}

// hashElems hashes the inputs with MiMC. Each input is first reduced into a
// bn254 scalar so arbitrary byte strings are valid hash inputs.
func hashElems(inputs ...[]byte) common.Hash {
	h := mimc.NewMiMC()
	for _, input := range inputs {
		var e fr.Element
		e.SetBytes(input)
		b := e.Bytes()
		_, _ = h.Write(b[:])
	}

	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func indexBytes(index uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, index)
	return b
}
