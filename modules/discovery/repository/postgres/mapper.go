package postgres

import (
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/veil-network/pool-scanner/modules/discovery/internal/entity"
	"github.com/veil-network/pool-scanner/pkg/crypto"
)

// statePayload is the stored form of the sensitive part of a discovery
// state: everything an observer could use to link notes to an account.
type statePayload struct {
	Chains        []entity.NoteChain `json:"chains"`
	LastUsedIndex int64              `json:"lastUsedIndex"`
}

func marshalStatePayload(state entity.DiscoveryState, cryptoClient *crypto.Client) ([]byte, error) {
	raw, err := json.Marshal(statePayload{
		Chains:        state.Chains,
		LastUsedIndex: state.LastUsedIndex,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal payload")
	}
	if cryptoClient == nil {
		return raw, nil
	}
	encrypted, err := cryptoClient.Encrypt(raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encrypt payload")
	}
	return encrypted, nil
}

func unmarshalStatePayload(data []byte, cryptoClient *crypto.Client) (entity.DiscoveryState, error) {
	if cryptoClient != nil {
		decrypted, err := cryptoClient.Decrypt(data)
		if err != nil {
			return entity.DiscoveryState{}, errors.Wrap(err, "failed to decrypt payload")
		}
		data = decrypted
	}
	var payload statePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return entity.DiscoveryState{}, errors.Wrap(err, "failed to unmarshal payload")
	}
	return entity.DiscoveryState{
		Chains:        payload.Chains,
		LastUsedIndex: payload.LastUsedIndex,
	}, nil
}
