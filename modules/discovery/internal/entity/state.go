package entity

import (
	"time"

	"github.com/veil-network/pool-scanner/common"
)

// DiscoveryState is the persisted discovery progress for one
// (identity, pool) scope. It is written once per fully-processed feed page,
// which makes every page boundary a safe resumption point.
type DiscoveryState struct {
	Identity common.Identity `json:"identity"`
	Pool     common.Pool     `json:"pool"`

	// Chains holds every chain discovered so far, ordered by deposit index.
	Chains []NoteChain `json:"chains"`

	// LastUsedIndex is the highest deposit index assigned so far,
	// -1 when no deposit has been matched yet.
	LastUsedIndex int64 `json:"lastUsedIndex"`

	// Cursor is the feed continuation token of the last fully-processed
	// page.
	Cursor string `json:"cursor"`

	UpdatedAt time.Time `json:"updatedAt"`
}
