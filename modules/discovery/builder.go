package discovery

import (
	"github.com/cockroachdb/errors"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/core/types"
	"github.com/veil-network/pool-scanner/modules/discovery/internal/entity"
	"github.com/veil-network/pool-scanner/modules/discovery/keys"
)

// extendChain walks a note chain forward as far as the given activity records
// permit. For each live tail it derives the tail's nullifier hash and looks
// for a matching withdrawal or ragequit; on a match the tail is marked spent
// and, when the record carries a new commitment, a change note at the next
// change index is appended. Records are consumed left to right, so a spend can
// only match records after the previous one (feed order is chronological).
//
// The input chain is never mutated. Returns the extended chain and the number
// of notes appended.
func extendChain(deriver keys.Deriver, account keys.Account, chain entity.NoteChain, records []types.ActivityRecord) (entity.NoteChain, int, error) {
	if len(chain) == 0 {
		return nil, 0, errors.Wrap(errs.InvariantViolation, "cannot extend an empty note chain")
	}

	out := make(entity.NoteChain, len(chain), len(chain)+1)
	copy(out, chain)
	appended := 0
	remaining := records

	for out.IsLive() && len(remaining) > 0 {
		tail := out.Tail()

		var nullifier common.Hash
		if tail.ChangeIndex == 0 {
			nullifier, _ = deriver.DepositSecretPair(account, tail.Pool, tail.DepositIndex)
		} else {
			nullifier, _ = deriver.ChangeSecretPair(account, tail.Pool, tail.DepositIndex, tail.ChangeIndex)
		}
		nullifierHash := deriver.NullifierHash(nullifier)

		matched := -1
		for i, record := range remaining {
			if record.Kind == types.ActivityKindDeposit {
				continue
			}
			if record.SpentNullifier == nullifierHash {
				matched = i
				break
			}
		}
		if matched < 0 {
			break
		}

		record := remaining[matched]
		remaining = remaining[matched+1:]

		if record.HasSuccessor() && record.Amount.Cmp(tail.Amount) > 0 {
			return nil, 0, errors.Wrapf(errs.InvariantViolation,
				"spend amount %s exceeds note amount %s (pool %s, deposit index %d, change index %d)",
				record.Amount, tail.Amount, tail.Pool, tail.DepositIndex, tail.ChangeIndex,
			)
		}

		out[len(out)-1].Status = entity.NoteStatusSpent

		if !record.HasSuccessor() {
			// Terminal spend (full withdrawal or ragequit): the chain ends here.
			break
		}

		changeAmount := tail.Amount.Sub(record.Amount)
		status := entity.NoteStatusUnspent
		if changeAmount.IsZero() {
			status = entity.NoteStatusSpent
		}
		out = append(out, entity.Note{
			Pool:         tail.Pool,
			DepositIndex: tail.DepositIndex,
			ChangeIndex:  tail.ChangeIndex + 1,
			Amount:       changeAmount,
			Status:       status,
			Label:        tail.Label,
			Tx: entity.TxRef{
				Hash:        record.TxHash,
				BlockNumber: record.BlockNumber,
				Timestamp:   record.Timestamp,
			},
		})
		appended++
	}

	return out, appended, nil
}
