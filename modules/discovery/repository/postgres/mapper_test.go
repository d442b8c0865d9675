package postgres

import (
	"testing"

	"github.com/gaze-network/uint128"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/modules/discovery/internal/entity"
	"github.com/veil-network/pool-scanner/pkg/crypto"
)

func testState() entity.DiscoveryState {
	return entity.DiscoveryState{
		Chains: []entity.NoteChain{{
			{
				Pool:         common.Pool("0x8ba1f109551bd432803012645ac136ddd64dba72"),
				DepositIndex: 3,
				ChangeIndex:  0,
				Amount:       uint128.From64(100),
				Status:       entity.NoteStatusSpent,
				Label:        common.Hash{0xab},
			},
			{
				Pool:         common.Pool("0x8ba1f109551bd432803012645ac136ddd64dba72"),
				DepositIndex: 3,
				ChangeIndex:  1,
				Amount:       uint128.From64(60),
				Status:       entity.NoteStatusUnspent,
				Label:        common.Hash{0xab},
			},
		}},
		LastUsedIndex: 3,
	}
}

func TestStatePayloadPlain(t *testing.T) {
	state := testState()

	payload, err := marshalStatePayload(state, nil)
	require.NoError(t, err)

	got, err := unmarshalStatePayload(payload, nil)
	require.NoError(t, err)
	assert.Equal(t, state.Chains, got.Chains)
	assert.Equal(t, state.LastUsedIndex, got.LastUsedIndex)
}

func TestStatePayloadEncrypted(t *testing.T) {
	cryptoClient, err := crypto.GenerateKey()
	require.NoError(t, err)

	state := testState()
	payload, err := marshalStatePayload(state, cryptoClient)
	require.NoError(t, err)

	// ciphertext must not contain the plaintext chain JSON
	assert.NotContains(t, string(payload), "depositIndex")

	got, err := unmarshalStatePayload(payload, cryptoClient)
	require.NoError(t, err)
	assert.Equal(t, state.Chains, got.Chains)
	assert.Equal(t, state.LastUsedIndex, got.LastUsedIndex)

	// a different key cannot read the payload
	otherClient, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, err = unmarshalStatePayload(payload, otherClient)
	assert.Error(t, err)
}
