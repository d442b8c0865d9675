package discovery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/core/types"
	"github.com/veil-network/pool-scanner/modules/discovery/internal/entity"
	"github.com/veil-network/pool-scanner/modules/discovery/keys"
	"github.com/veil-network/pool-scanner/modules/discovery/repository/memory"
)

const (
	testAccountKey  = "8c2f3e6a1b4d5c7e9f0a2b4c6d8e0f1a3b5c7d9e1f2a4b6c8d0e2f4a6b8c0d1e"
	otherAccountKey = "0101010101010101010101010101010101010101010101010101010101010101"
)

var (
	testPool    = common.Pool("0x8ba1f109551bd432803012645ac136ddd64dba72")
	testLabel   = common.Hash{0xab, 0xcd}
	testDeriver = keys.NewMiMCDeriver()
)

func mustAccount(hexKey string) keys.Account {
	account, err := keys.NewAccountFromHex(hexKey)
	if err != nil {
		panic(err)
	}
	return account
}

var testBlockNumber atomic.Uint64

func nextTx() entity.TxRef {
	n := testBlockNumber.Add(1)
	return entity.TxRef{
		Hash:        common.Hash{byte(n)},
		BlockNumber: n,
		Timestamp:   time.Unix(1700000000+int64(n), 0).UTC(),
	}
}

// depositFor builds a deposit record matching the account's deposit at index.
func depositFor(account keys.Account, pool common.Pool, index uint64, amount uint64) types.ActivityRecord {
	nullifier, secret := testDeriver.DepositSecretPair(account, pool, index)
	tx := nextTx()
	return types.ActivityRecord{
		Kind:          types.ActivityKindDeposit,
		Amount:        uint128.From64(amount),
		Precommitment: testDeriver.Precommitment(nullifier, secret),
		Label:         testLabel,
		TxHash:        tx.Hash,
		BlockNumber:   tx.BlockNumber,
		Timestamp:     tx.Timestamp,
	}
}

// foreignDeposit builds a deposit record that matches no scanned account.
func foreignDeposit(amount uint64) types.ActivityRecord {
	tx := nextTx()
	return types.ActivityRecord{
		Kind:          types.ActivityKindDeposit,
		Amount:        uint128.From64(amount),
		Precommitment: common.Hash{0xff, byte(tx.BlockNumber)},
		Label:         common.Hash{0x99},
		TxHash:        tx.Hash,
		BlockNumber:   tx.BlockNumber,
		Timestamp:     tx.Timestamp,
	}
}

// spendOf builds a withdrawal record spending the note at (depositIndex,
// changeIndex). withChange controls whether a successor commitment exists.
func spendOf(account keys.Account, pool common.Pool, depositIndex, changeIndex uint64, amount uint64, withChange bool) types.ActivityRecord {
	var nullifier common.Hash
	if changeIndex == 0 {
		nullifier, _ = testDeriver.DepositSecretPair(account, pool, depositIndex)
	} else {
		nullifier, _ = testDeriver.ChangeSecretPair(account, pool, depositIndex, changeIndex)
	}
	record := types.ActivityRecord{
		Kind:           types.ActivityKindWithdrawal,
		Amount:         uint128.From64(amount),
		SpentNullifier: testDeriver.NullifierHash(nullifier),
		Label:          testLabel,
	}
	if withChange {
		changeNullifier, changeSecret := testDeriver.ChangeSecretPair(account, pool, depositIndex, changeIndex+1)
		record.NewCommitment = testDeriver.Precommitment(changeNullifier, changeSecret)
	}
	tx := nextTx()
	record.TxHash = tx.Hash
	record.BlockNumber = tx.BlockNumber
	record.Timestamp = tx.Timestamp
	return record
}

// ragequitOf builds a terminal ragequit record for the note at (depositIndex,
// changeIndex).
func ragequitOf(account keys.Account, pool common.Pool, depositIndex, changeIndex uint64, amount uint64) types.ActivityRecord {
	record := spendOf(account, pool, depositIndex, changeIndex, amount, false)
	record.Kind = types.ActivityKindRagequit
	return record
}

// stubFeed serves pre-built pages and records every fetch for privacy
// assertions.
type stubFeed struct {
	mu    sync.Mutex
	pages map[string]types.ActivityPage

	fetchedPools   []common.Pool
	fetchedCursors []string
	failures       int
}

func newStubFeed(pages []types.ActivityPage) *stubFeed {
	indexed := make(map[string]types.ActivityPage, len(pages))
	cursor := ""
	for i, page := range pages {
		page.HasMore = i < len(pages)-1
		indexed[cursor] = page
		cursor = page.NextCursor
	}
	return &stubFeed{pages: indexed}
}

func (f *stubFeed) Name() string {
	return "stub"
}

func (f *stubFeed) FetchPage(_ context.Context, pool common.Pool, cursor string) (types.ActivityPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchedPools = append(f.fetchedPools, pool)
	f.fetchedCursors = append(f.fetchedCursors, cursor)
	if f.failures > 0 {
		f.failures--
		return types.ActivityPage{}, errors.New("feed unavailable")
	}
	page, ok := f.pages[cursor]
	if !ok {
		return types.ActivityPage{NextCursor: cursor}, nil
	}
	return page, nil
}

// recordingCache counts persisted snapshots on top of the in-memory
// repository.
type recordingCache struct {
	*memory.Repository

	mu    sync.Mutex
	saves int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{Repository: memory.NewRepository()}
}

func (c *recordingCache) SaveDiscoveryState(ctx context.Context, state entity.DiscoveryState) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.Repository.SaveDiscoveryState(ctx, state)
}

func (c *recordingCache) saveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

// failingCache wraps a datagateway and fails saves on demand.
type failingCache struct {
	*recordingCache
	failSaves bool
}

func (c *failingCache) SaveDiscoveryState(ctx context.Context, state entity.DiscoveryState) error {
	if c.failSaves {
		return errors.New("cache write failed")
	}
	return c.recordingCache.SaveDiscoveryState(ctx, state)
}
