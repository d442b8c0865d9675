package types

import (
	"time"

	"github.com/gaze-network/uint128"
	"github.com/veil-network/pool-scanner/common"
)

// ActivityKind is the kind of a pool activity record.
type ActivityKind string

const (
	// ActivityKindDeposit locks funds under a new precommitment.
	ActivityKindDeposit ActivityKind = "deposit"

	// ActivityKindWithdrawal consumes a nullifier and releases funds. It
	// produces a change commitment unless the note was spent exactly.
	ActivityKindWithdrawal ActivityKind = "withdrawal"

	// ActivityKindRagequit consumes a nullifier and exits the pool without
	// producing a successor commitment.
	ActivityKindRagequit ActivityKind = "ragequit"
)

func (k ActivityKind) IsValid() bool {
	switch k {
	case ActivityKindDeposit, ActivityKindWithdrawal, ActivityKindRagequit:
		return true
	}
	return false
}

func (k ActivityKind) String() string {
	return string(k)
}

// ActivityRecord is one event from the public pool activity feed, ordered by
// block number and intra-block position.
type ActivityRecord struct {
	Kind   ActivityKind    `json:"kind"`
	Amount uint128.Uint128 `json:"amount"`

	// Precommitment is set for deposit records.
	Precommitment common.Hash `json:"precommitment,omitempty"`

	// SpentNullifier is set for withdrawal and ragequit records.
	SpentNullifier common.Hash `json:"spentNullifier,omitempty"`

	// NewCommitment is set iff the spend produced a successor note.
	// Ragequits and exact spends leave it zero.
	NewCommitment common.Hash `json:"newCommitment,omitempty"`

	// Label is the admission tag assigned at deposit time and carried by
	// every successor of that deposit.
	Label common.Hash `json:"label,omitempty"`

	TxHash      common.Hash `json:"txHash"`
	BlockNumber uint64      `json:"blockNumber"`
	Timestamp   time.Time   `json:"timestamp"`
}

// HasSuccessor reports whether a spend record genuinely produced a successor
// note.
func (r ActivityRecord) HasSuccessor() bool {
	return !r.NewCommitment.IsZero()
}

// ActivityPage is one page of the feed. NextCursor is an opaque continuation
// token: passing it to the next fetch returns the records that follow this
// page.
type ActivityPage struct {
	Records    []ActivityRecord `json:"records"`
	NextCursor string           `json:"nextCursor"`
	HasMore    bool             `json:"hasMore"`
}
