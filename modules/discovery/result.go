package discovery

import (
	"github.com/gaze-network/uint128"

	"github.com/veil-network/pool-scanner/modules/discovery/internal/entity"
)

// Aliases so callers outside the module can work with chains returned by
// Discover without importing the internal entity package directly.
type (
	Note      = entity.Note
	NoteChain = entity.NoteChain
	TxRef     = entity.TxRef
)

// DiscoveryResult is the outcome of a single discovery run over one
// (identity, pool) scope. Chains are ordered by deposit index.
type DiscoveryResult struct {
	Chains        []NoteChain
	LastUsedIndex int64
	NewNotesFound int
	Cursor        string
	State         RunState
}

// Balance returns the total unspent amount across all chains.
func (r *DiscoveryResult) Balance() uint128.Uint128 {
	total := uint128.Zero
	for _, chain := range r.Chains {
		total = total.Add(chain.Balance())
	}
	return total
}
