package datagateway

import (
	"context"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/modules/discovery/internal/entity"
)

// DiscoveryDataGateway is the resumable cache for discovery progress.
//
// Writes are single-writer: only the active run for a scope persists state,
// once per fully-processed page. Reads may observe the last-persisted
// snapshot at any time.
type DiscoveryDataGateway interface {
	DiscoveryReaderDataGateway
	DiscoveryWriterDataGateway
}

type DiscoveryReaderDataGateway interface {
	// GetDiscoveryState returns the persisted state for the scope.
	// Returns errs.NotFound if the scope has never been persisted.
	GetDiscoveryState(ctx context.Context, identity common.Identity, pool common.Pool) (entity.DiscoveryState, error)

	// GetDiscoveryStates returns the persisted states of every pool scanned
	// for the identity.
	GetDiscoveryStates(ctx context.Context, identity common.Identity) ([]entity.DiscoveryState, error)
}

type DiscoveryWriterDataGateway interface {
	// SaveDiscoveryState atomically replaces the persisted state for the
	// scope. A failed save must leave the previous snapshot intact.
	SaveDiscoveryState(ctx context.Context, state entity.DiscoveryState) error
}
