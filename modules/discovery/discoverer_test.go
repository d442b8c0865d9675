package discovery

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/core/types"
	"github.com/veil-network/pool-scanner/modules/discovery/internal/entity"
	"github.com/veil-network/pool-scanner/modules/discovery/keys"
)

func newTestDiscoverer(feedPages []types.ActivityPage) (*Discoverer, *stubFeed, *recordingCache) {
	feed := newStubFeed(feedPages)
	cache := newRecordingCache()
	discoverer := NewDiscoverer(feed, cache, keys.NewMiMCDeriver())
	return discoverer, feed, cache
}

func TestDiscoverFreshScan(t *testing.T) {
	account := mustAccount(testAccountKey)

	pages := []types.ActivityPage{
		{
			Records: []types.ActivityRecord{
				foreignDeposit(10),
				depositFor(account, testPool, 0, 100),
				foreignDeposit(20),
			},
			NextCursor: "p1",
		},
		{
			Records: []types.ActivityRecord{
				spendOf(account, testPool, 0, 0, 40, true),
				depositFor(account, testPool, 1, 500),
			},
			NextCursor: "p2",
		},
	}

	discoverer, feed, cache := newTestDiscoverer(pages)
	result, err := discoverer.Discover(context.Background(), DiscoverParams{
		Account: account,
		Pool:    testPool,
	})
	require.NoError(t, err)

	assert.Equal(t, RunStateCompleted, result.State)
	assert.Equal(t, 2, result.NewNotesFound)
	assert.Equal(t, int64(1), result.LastUsedIndex)
	assert.Equal(t, "p2", result.Cursor)
	require.Len(t, result.Chains, 2)

	chain0 := result.Chains[0]
	require.Len(t, chain0, 2)
	assert.Equal(t, uint64(0), chain0.DepositIndex())
	assert.Equal(t, uint128.From64(60), chain0.Balance())
	assert.True(t, chain0.IsLive())

	chain1 := result.Chains[1]
	require.Len(t, chain1, 1)
	assert.Equal(t, uint64(1), chain1.DepositIndex())
	assert.Equal(t, uint128.From64(500), chain1.Balance())

	// one snapshot per fully-processed page
	assert.Equal(t, 2, cache.saveCount())
	assert.Equal(t, []string{"", "p1"}, feed.fetchedCursors)

	// persisted state matches the result
	state, err := cache.GetDiscoveryState(context.Background(), account.Identity(), testPool)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.LastUsedIndex)
	assert.Equal(t, "p2", state.Cursor)
	assert.Len(t, state.Chains, 2)
}

func TestDiscoverEmptyFeedNoCache(t *testing.T) {
	account := mustAccount(testAccountKey)

	discoverer, feed, cache := newTestDiscoverer(nil)
	result, err := discoverer.Discover(context.Background(), DiscoverParams{
		Account: account,
		Pool:    testPool,
	})
	require.NoError(t, err)

	assert.Equal(t, RunStateCompleted, result.State)
	assert.Empty(t, result.Chains)
	assert.Equal(t, int64(-1), result.LastUsedIndex)
	assert.Equal(t, 0, result.NewNotesFound)
	assert.Equal(t, "", result.Cursor)

	// even an empty feed persists a snapshot so the next run can resume
	assert.Equal(t, []string{""}, feed.fetchedCursors)
	assert.Equal(t, 1, cache.saveCount())
}

func TestDiscoverSamePageDepositAndSpend(t *testing.T) {
	account := mustAccount(testAccountKey)

	pages := []types.ActivityPage{
		{
			Records: []types.ActivityRecord{
				depositFor(account, testPool, 0, 100),
				foreignDeposit(10),
				spendOf(account, testPool, 0, 0, 100, true),
			},
			NextCursor: "p1",
		},
	}

	discoverer, _, _ := newTestDiscoverer(pages)
	result, err := discoverer.Discover(context.Background(), DiscoverParams{
		Account: account,
		Pool:    testPool,
	})
	require.NoError(t, err)

	require.Len(t, result.Chains, 1)
	chain := result.Chains[0]
	require.Len(t, chain, 2)
	assert.False(t, chain.IsLive())
	assert.Equal(t, uint128.Zero, chain.Balance())
}

func TestDiscoverIndexInvertedDepositsSamePage(t *testing.T) {
	account := mustAccount(testAccountKey)

	// two deposits landing in one block can appear with the higher deposit
	// index first; both must still be claimed in the same pass
	pages := []types.ActivityPage{
		{
			Records: []types.ActivityRecord{
				depositFor(account, testPool, 1, 200),
				depositFor(account, testPool, 0, 100),
				spendOf(account, testPool, 1, 0, 50, true),
			},
			NextCursor: "p1",
		},
	}

	discoverer, _, _ := newTestDiscoverer(pages)
	result, err := discoverer.Discover(context.Background(), DiscoverParams{
		Account: account,
		Pool:    testPool,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.NewNotesFound)
	assert.Equal(t, int64(1), result.LastUsedIndex)
	require.Len(t, result.Chains, 2)

	first := result.Chains[0]
	require.Len(t, first, 1)
	assert.Equal(t, uint64(0), first.DepositIndex())
	assert.Equal(t, uint128.From64(100), first.Balance())

	// the spend appears after the later-positioned deposit, so the inverted
	// chain is still extended within the page
	second := result.Chains[1]
	require.Len(t, second, 2)
	assert.Equal(t, uint64(1), second.DepositIndex())
	assert.Equal(t, uint128.From64(150), second.Balance())
	assert.True(t, second.IsLive())
}

func TestDiscoverDepositRetriedOnNextPage(t *testing.T) {
	account := mustAccount(testAccountKey)

	// deposit index 1 is absent from the page where index 0 appears; there is
	// no gap limit, so it is retried and found on the next page
	pages := []types.ActivityPage{
		{
			Records: []types.ActivityRecord{
				depositFor(account, testPool, 0, 100),
				foreignDeposit(10),
			},
			NextCursor: "p1",
		},
		{
			Records: []types.ActivityRecord{
				foreignDeposit(20),
				depositFor(account, testPool, 1, 200),
			},
			NextCursor: "p2",
		},
	}

	discoverer, _, _ := newTestDiscoverer(pages)
	result, err := discoverer.Discover(context.Background(), DiscoverParams{
		Account: account,
		Pool:    testPool,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.LastUsedIndex)
	assert.Equal(t, 2, result.NewNotesFound)
}

func TestDiscoverResume(t *testing.T) {
	account := mustAccount(testAccountKey)

	firstPages := []types.ActivityPage{
		{
			Records: []types.ActivityRecord{
				depositFor(account, testPool, 0, 100),
			},
			NextCursor: "p1",
		},
	}

	discoverer, _, cache := newTestDiscoverer(firstPages)
	first, err := discoverer.Discover(context.Background(), DiscoverParams{
		Account: account,
		Pool:    testPool,
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", first.Cursor)

	// the feed has grown by one page; a new run resumes from the saved cursor
	grownPages := append(firstPages, types.ActivityPage{
		Records: []types.ActivityRecord{
			spendOf(account, testPool, 0, 0, 30, true),
			depositFor(account, testPool, 1, 50),
		},
		NextCursor: "p2",
	})
	resumedFeed := newStubFeed(grownPages)
	resumed := NewDiscoverer(resumedFeed, cache, keys.NewMiMCDeriver())

	second, err := resumed.Discover(context.Background(), DiscoverParams{
		Account: account,
		Pool:    testPool,
	})
	require.NoError(t, err)

	// only the new page was fetched
	assert.Equal(t, []string{"p1"}, resumedFeed.fetchedCursors)

	assert.Equal(t, 1, second.NewNotesFound)
	assert.Equal(t, int64(1), second.LastUsedIndex)
	require.Len(t, second.Chains, 2)
	assert.Equal(t, uint128.From64(70), second.Chains[0].Balance())
	assert.Equal(t, uint128.From64(50), second.Chains[1].Balance())
}

func TestDiscoverIdempotentRerun(t *testing.T) {
	account := mustAccount(testAccountKey)

	pages := []types.ActivityPage{
		{
			Records: []types.ActivityRecord{
				depositFor(account, testPool, 0, 100),
				spendOf(account, testPool, 0, 0, 40, true),
			},
			NextCursor: "p1",
		},
	}

	discoverer, _, _ := newTestDiscoverer(pages)
	first, err := discoverer.Discover(context.Background(), DiscoverParams{Account: account, Pool: testPool})
	require.NoError(t, err)

	second, err := discoverer.Discover(context.Background(), DiscoverParams{Account: account, Pool: testPool})
	require.NoError(t, err)

	assert.Equal(t, 0, second.NewNotesFound)
	assert.Equal(t, first.LastUsedIndex, second.LastUsedIndex)
	assert.Equal(t, first.Chains, second.Chains)
}

func TestDiscoverCancelledBeforeStart(t *testing.T) {
	account := mustAccount(testAccountKey)

	discoverer, feed, cache := newTestDiscoverer([]types.ActivityPage{
		{Records: []types.ActivityRecord{depositFor(account, testPool, 0, 100)}, NextCursor: "p1"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := discoverer.Discover(ctx, DiscoverParams{Account: account, Pool: testPool})
	require.NoError(t, err)
	assert.Equal(t, RunStateCancelled, result.State)
	assert.Empty(t, result.Chains)
	assert.Empty(t, feed.fetchedCursors)
	assert.Equal(t, 0, cache.saveCount())
}

func TestDiscoverFeedErrorKeepsState(t *testing.T) {
	account := mustAccount(testAccountKey)

	pages := []types.ActivityPage{
		{Records: []types.ActivityRecord{depositFor(account, testPool, 0, 100)}, NextCursor: "p1"},
	}
	discoverer, feed, cache := newTestDiscoverer(pages)
	feed.failures = 1

	_, err := discoverer.Discover(context.Background(), DiscoverParams{Account: account, Pool: testPool})
	require.Error(t, err)
	assert.Equal(t, 0, cache.saveCount())

	// the next run starts clean and succeeds
	result, err := discoverer.Discover(context.Background(), DiscoverParams{Account: account, Pool: testPool})
	require.NoError(t, err)
	assert.Equal(t, RunStateCompleted, result.State)
	assert.Equal(t, 1, result.NewNotesFound)
}

func TestDiscoverCacheWriteFailureAborts(t *testing.T) {
	account := mustAccount(testAccountKey)

	feed := newStubFeed([]types.ActivityPage{
		{Records: []types.ActivityRecord{depositFor(account, testPool, 0, 100)}, NextCursor: "p1"},
	})
	cache := &failingCache{recordingCache: newRecordingCache(), failSaves: true}
	discoverer := NewDiscoverer(feed, cache, keys.NewMiMCDeriver())

	_, err := discoverer.Discover(context.Background(), DiscoverParams{Account: account, Pool: testPool})
	require.Error(t, err)

	// nothing was persisted, so the scope restarts from the beginning
	_, err = cache.GetDiscoveryState(context.Background(), account.Identity(), testPool)
	assert.ErrorIs(t, err, errs.NotFound)

	cache.failSaves = false
	result, err := discoverer.Discover(context.Background(), DiscoverParams{Account: account, Pool: testPool})
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, feed.fetchedCursors)
	assert.Equal(t, 1, result.NewNotesFound)
}

func TestDiscoverNewRunCancelsPrevious(t *testing.T) {
	account := mustAccount(testAccountKey)

	fetchStarted := make(chan struct{})
	release := make(chan struct{})
	blocked := &blockingFeed{started: fetchStarted, release: release}
	cache := newRecordingCache()
	discoverer := NewDiscoverer(blocked, cache, keys.NewMiMCDeriver())

	type outcome struct {
		result *DiscoveryResult
		err    error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		result, err := discoverer.Discover(context.Background(), DiscoverParams{Account: account, Pool: testPool})
		firstDone <- outcome{result: result, err: err}
	}()

	<-fetchStarted

	second, err := discoverer.Discover(context.Background(), DiscoverParams{Account: account, Pool: testPool})
	require.NoError(t, err)
	assert.Equal(t, RunStateCompleted, second.State)

	first := <-firstDone
	require.NoError(t, first.err)
	assert.Equal(t, RunStateCancelled, first.result.State)
	close(release)
}

func TestDiscoverProgress(t *testing.T) {
	account := mustAccount(testAccountKey)

	pages := []types.ActivityPage{
		{
			Records: []types.ActivityRecord{
				depositFor(account, testPool, 0, 100),
				foreignDeposit(10),
			},
			NextCursor: "p1",
		},
		{
			Records: []types.ActivityRecord{
				depositFor(account, testPool, 1, 200),
			},
			NextCursor: "p2",
		},
	}

	discoverer, _, _ := newTestDiscoverer(pages)
	progressCh := make(chan Progress, 64)
	_, err := discoverer.Discover(context.Background(), DiscoverParams{
		Account:  account,
		Pool:     testPool,
		Progress: progressCh,
	})
	require.NoError(t, err)

	var snapshots []Progress
	for len(progressCh) > 0 {
		snapshots = append(snapshots, <-progressCh)
	}
	require.NotEmpty(t, snapshots)

	final := snapshots[len(snapshots)-1]
	assert.True(t, final.Done)
	assert.Equal(t, RunStateCompleted, final.State)
	assert.Equal(t, 2, final.PagesProcessed)
	assert.Equal(t, 2, final.DepositsMatched)
	assert.Equal(t, 3, final.RecordsSeen)
	assert.Equal(t, account.Identity(), final.Identity)
}

func TestDiscoverFeedErrorEmitsFailedProgress(t *testing.T) {
	account := mustAccount(testAccountKey)

	pages := []types.ActivityPage{
		{Records: []types.ActivityRecord{depositFor(account, testPool, 0, 100)}, NextCursor: "p1"},
	}
	discoverer, feed, _ := newTestDiscoverer(pages)
	feed.failures = 1

	progressCh := make(chan Progress, 64)
	_, err := discoverer.Discover(context.Background(), DiscoverParams{
		Account:  account,
		Pool:     testPool,
		Progress: progressCh,
	})
	require.Error(t, err)

	var snapshots []Progress
	for len(progressCh) > 0 {
		snapshots = append(snapshots, <-progressCh)
	}
	require.NotEmpty(t, snapshots)

	// subscribers see a terminal snapshot rather than silence when a run
	// aborts on an error
	final := snapshots[len(snapshots)-1]
	assert.True(t, final.Done)
	assert.Equal(t, RunStateFailed, final.State)
	assert.True(t, final.State.IsTerminal())
}

func TestDiscoverPrivacy(t *testing.T) {
	account := mustAccount(testAccountKey)

	pages := []types.ActivityPage{
		{Records: []types.ActivityRecord{depositFor(account, testPool, 0, 100)}, NextCursor: "p1"},
		{Records: []types.ActivityRecord{foreignDeposit(10)}, NextCursor: "p2"},
	}
	discoverer, feed, _ := newTestDiscoverer(pages)

	_, err := discoverer.Discover(context.Background(), DiscoverParams{Account: account, Pool: testPool})
	require.NoError(t, err)

	// every fetch names only the pool and an opaque cursor; cursors are the
	// feed's own continuation tokens, never account-derived values
	assert.True(t, lo.EveryBy(feed.fetchedPools, func(pool common.Pool) bool { return pool == testPool }))
	assert.Equal(t, []string{"", "p1"}, feed.fetchedCursors)
}

func TestDiscoverRejectsInvalidPool(t *testing.T) {
	account := mustAccount(testAccountKey)
	discoverer, _, _ := newTestDiscoverer(nil)

	_, err := discoverer.Discover(context.Background(), DiscoverParams{Account: account, Pool: "not-a-pool"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.InvalidArgument)
}

func TestDiscoverCorruptCachedChain(t *testing.T) {
	account := mustAccount(testAccountKey)
	discoverer, _, cache := newTestDiscoverer(nil)

	corrupt := entity.DiscoveryState{
		Identity: account.Identity(),
		Pool:     testPool,
		Chains: []entity.NoteChain{{
			{Pool: testPool, DepositIndex: 0, ChangeIndex: 1, Amount: uint128.From64(1), Status: entity.NoteStatusUnspent},
		}},
		LastUsedIndex: 0,
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, cache.SaveDiscoveryState(context.Background(), corrupt))

	_, err := discoverer.Discover(context.Background(), DiscoverParams{Account: account, Pool: testPool})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.InvariantViolation)
}

// blockingFeed blocks the first fetch until released or the run is cancelled;
// later fetches return an empty final page.
type blockingFeed struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (f *blockingFeed) Name() string {
	return "blocking"
}

func (f *blockingFeed) FetchPage(ctx context.Context, _ common.Pool, cursor string) (types.ActivityPage, error) {
	if f.calls.Add(1) == 1 {
		close(f.started)
		select {
		case <-f.release:
		case <-ctx.Done():
			return types.ActivityPage{}, errors.WithStack(ctx.Err())
		}
	}
	return types.ActivityPage{NextCursor: cursor}, nil
}
