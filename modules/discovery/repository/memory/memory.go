package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/modules/discovery/datagateway"
	"github.com/veil-network/pool-scanner/modules/discovery/internal/entity"
)

// Repository keeps discovery state in process memory. Useful for ephemeral
// scans and tests; everything is lost on restart.
type Repository struct {
	mu     sync.RWMutex
	states map[stateKey]entity.DiscoveryState
}

type stateKey struct {
	identity common.Identity
	pool     common.Pool
}

var _ datagateway.DiscoveryDataGateway = (*Repository)(nil)

func NewRepository() *Repository {
	return &Repository{
		states: make(map[stateKey]entity.DiscoveryState),
	}
}

func (r *Repository) GetDiscoveryState(_ context.Context, identity common.Identity, pool common.Pool) (entity.DiscoveryState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[stateKey{identity: identity, pool: pool}]
	if !ok {
		return entity.DiscoveryState{}, errors.WithStack(errs.NotFound)
	}
	return copyState(state), nil
}

func (r *Repository) GetDiscoveryStates(_ context.Context, identity common.Identity) ([]entity.DiscoveryState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]entity.DiscoveryState, 0)
	for key, state := range r.states {
		if key.identity == identity {
			states = append(states, copyState(state))
		}
	}
	slices.SortFunc(states, func(a, b entity.DiscoveryState) int {
		switch {
		case a.Pool < b.Pool:
			return -1
		case a.Pool > b.Pool:
			return 1
		default:
			return 0
		}
	})
	return states, nil
}

func (r *Repository) SaveDiscoveryState(_ context.Context, state entity.DiscoveryState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[stateKey{identity: state.Identity, pool: state.Pool}] = copyState(state)
	return nil
}

// copyState deep-copies chains so callers cannot mutate stored state.
func copyState(state entity.DiscoveryState) entity.DiscoveryState {
	out := state
	out.Chains = make([]entity.NoteChain, len(state.Chains))
	for i, chain := range state.Chains {
		out.Chains[i] = slices.Clone(chain)
	}
	return out
}
