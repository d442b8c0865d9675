package discovery

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/modules/discovery/keys"
	"github.com/veil-network/pool-scanner/pkg/logger"
	"github.com/veil-network/pool-scanner/pkg/logger/slogx"
)

// Module scans every configured account against every configured pool on each
// pass. A failed scope does not abort the pass: the cache keeps the last
// fully-processed page, so the scope resumes from there on the next pass.
type Module struct {
	discoverer   *Discoverer
	accounts     []keys.Account
	pools        []common.Pool
	interval     time.Duration
	cleanupFuncs []func(context.Context) error
}

func NewModule(discoverer *Discoverer, accounts []keys.Account, pools []common.Pool, interval time.Duration, cleanupFuncs []func(context.Context) error) *Module {
	return &Module{
		discoverer:   discoverer,
		accounts:     accounts,
		pools:        pools,
		interval:     interval,
		cleanupFuncs: cleanupFuncs,
	}
}

func (m *Module) Name() string {
	return "discovery"
}

func (m *Module) Interval() time.Duration {
	return m.interval
}

func (m *Module) Pass(ctx context.Context) error {
	for _, account := range m.accounts {
		for _, pool := range m.pools {
			if err := ctx.Err(); err != nil {
				return errors.WithStack(err)
			}
			result, err := m.discoverer.Discover(ctx, DiscoverParams{
				Account: account,
				Pool:    pool,
			})
			if err != nil {
				logger.ErrorContext(ctx, "Discovery scope failed, will resume on next pass",
					slogx.String("identity", account.Identity().String()),
					slogx.Stringer("pool", pool),
					slogx.Error(err),
				)
				continue
			}
			if result.State == RunStateCancelled {
				return nil
			}
		}
	}
	return nil
}

func (m *Module) Shutdown(ctx context.Context) error {
	var errList []error
	for _, cleanup := range m.cleanupFuncs {
		if err := cleanup(ctx); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
