package entity

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/common/errs"
)

type NoteStatus string

const (
	NoteStatusUnspent NoteStatus = "unspent"
	NoteStatusSpent   NoteStatus = "spent"
)

func (s NoteStatus) IsValid() bool {
	return s == NoteStatusUnspent || s == NoteStatusSpent
}

// TxRef locates the on-chain event that produced a note.
type TxRef struct {
	Hash        common.Hash `json:"hash"`
	BlockNumber uint64      `json:"blockNumber"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Note is the local record of one commitment's value and status. ChangeIndex
// 0 is the original deposit note; successive partial spends produce notes
// with strictly increasing change indices.
type Note struct {
	Pool         common.Pool     `json:"pool"`
	DepositIndex uint64          `json:"depositIndex"`
	ChangeIndex  uint64          `json:"changeIndex"`
	Amount       uint128.Uint128 `json:"amount"`
	Status       NoteStatus      `json:"status"`

	// Label is the admission tag copied from the originating deposit,
	// constant across the whole chain.
	Label common.Hash `json:"label"`

	Tx TxRef `json:"tx"`
}

// NoteChain is the ordered sequence of notes descending from one deposit
// through successive partial spends. Chains are treated as immutable values:
// extension produces a new chain rather than mutating in place.
type NoteChain []Note

// DepositIndex returns the deposit index shared by all notes in the chain.
func (c NoteChain) DepositIndex() uint64 {
	return c[0].DepositIndex
}

// Tail returns the newest note of the chain.
func (c NoteChain) Tail() Note {
	return c[len(c)-1]
}

// DepositAmount returns the amount of the original deposit note.
func (c NoteChain) DepositAmount() uint128.Uint128 {
	return c[0].Amount
}

// Balance returns the spendable balance of the chain: the tail amount if the
// tail is unspent, zero otherwise.
func (c NoteChain) Balance() uint128.Uint128 {
	tail := c.Tail()
	if tail.Status == NoteStatusUnspent {
		return tail.Amount
	}
	return uint128.Zero
}

// IsLive reports whether the chain can still be extended: its tail is
// unspent with a positive amount.
func (c NoteChain) IsLive() bool {
	tail := c.Tail()
	return tail.Status == NoteStatusUnspent && !tail.Amount.IsZero()
}

// TotalWithdrawn returns the sum of withdrawal amounts along the chain.
// A terminal spend (no successor note) withdraws the whole tail amount, so
// the withdrawn total is whatever of the deposit is no longer spendable.
func (c NoteChain) TotalWithdrawn() uint128.Uint128 {
	return c.DepositAmount().Sub(c.Balance())
}

// Validate checks the chain invariants: non-empty, change indices exactly
// 0..k, every note but the last spent, the last note spent iff its amount is
// zero, amounts non-increasing and the label constant.
func (c NoteChain) Validate() error {
	if len(c) == 0 {
		return errors.Wrap(errs.InvariantViolation, "empty note chain")
	}
	if c[0].ChangeIndex != 0 {
		return errors.Wrapf(errs.InvariantViolation, "chain must start at change index 0, got %d", c[0].ChangeIndex)
	}
	for i, note := range c {
		if note.ChangeIndex != uint64(i) {
			return errors.Wrapf(errs.InvariantViolation, "change index gap: note %d has change index %d", i, note.ChangeIndex)
		}
		if !note.Status.IsValid() {
			return errors.Wrapf(errs.InvariantViolation, "invalid note status %q", note.Status)
		}
		if note.DepositIndex != c[0].DepositIndex {
			return errors.Wrapf(errs.InvariantViolation, "deposit index mismatch: note %d has deposit index %d, expected %d", i, note.DepositIndex, c[0].DepositIndex)
		}
		if note.Label != c[0].Label {
			return errors.Wrapf(errs.InvariantViolation, "label mismatch at note %d", i)
		}
		if i < len(c)-1 {
			if note.Status != NoteStatusSpent {
				return errors.Wrapf(errs.InvariantViolation, "non-tail note %d is not spent", i)
			}
			if c[i+1].Amount.Cmp(note.Amount) > 0 {
				return errors.Wrapf(errs.InvariantViolation, "note %d amount increased", i+1)
			}
		}
	}
	tail := c.Tail()
	if tail.Amount.IsZero() && tail.Status != NoteStatusSpent {
		return errors.Wrap(errs.InvariantViolation, "zero-amount tail must be spent")
	}
	return nil
}
