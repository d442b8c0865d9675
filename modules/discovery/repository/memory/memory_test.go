package memory

import (
	"context"
	"testing"

	"github.com/gaze-network/uint128"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/modules/discovery/internal/entity"
)

const testIdentity = common.Identity("0xidentity")

var (
	testPoolA = common.Pool("0x8ba1f109551bd432803012645ac136ddd64dba72")
	testPoolB = common.Pool("0xd8da6bf26964af9d7eed9e03e53415d37aa96045")
)

func testState(pool common.Pool) entity.DiscoveryState {
	return entity.DiscoveryState{
		Identity: testIdentity,
		Pool:     pool,
		Chains: []entity.NoteChain{{
			{Pool: pool, DepositIndex: 0, ChangeIndex: 0, Amount: uint128.From64(100), Status: entity.NoteStatusUnspent},
		}},
		LastUsedIndex: 0,
	}
}

func TestRepositoryNotFound(t *testing.T) {
	repo := NewRepository()

	_, err := repo.GetDiscoveryState(context.Background(), testIdentity, testPoolA)
	assert.ErrorIs(t, err, errs.NotFound)

	states, err := repo.GetDiscoveryStates(context.Background(), testIdentity)
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestRepositorySaveAndGet(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	require.NoError(t, repo.SaveDiscoveryState(ctx, testState(testPoolB)))
	require.NoError(t, repo.SaveDiscoveryState(ctx, testState(testPoolA)))

	state, err := repo.GetDiscoveryState(ctx, testIdentity, testPoolA)
	require.NoError(t, err)
	assert.Equal(t, testPoolA, state.Pool)

	// replace keeps one state per scope
	updated := testState(testPoolA)
	updated.LastUsedIndex = 5
	require.NoError(t, repo.SaveDiscoveryState(ctx, updated))
	state, err = repo.GetDiscoveryState(ctx, testIdentity, testPoolA)
	require.NoError(t, err)
	assert.Equal(t, int64(5), state.LastUsedIndex)

	// listing is sorted by pool
	states, err := repo.GetDiscoveryStates(ctx, testIdentity)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, testPoolA, states[0].Pool)
	assert.Equal(t, testPoolB, states[1].Pool)
}

func TestRepositoryCopiesState(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	original := testState(testPoolA)
	require.NoError(t, repo.SaveDiscoveryState(ctx, original))

	// mutating the fetched state must not affect the stored one
	fetched, err := repo.GetDiscoveryState(ctx, testIdentity, testPoolA)
	require.NoError(t, err)
	fetched.Chains[0][0].Status = entity.NoteStatusSpent

	again, err := repo.GetDiscoveryState(ctx, testIdentity, testPoolA)
	require.NoError(t, err)
	assert.Equal(t, entity.NoteStatusUnspent, again.Chains[0][0].Status)
}
