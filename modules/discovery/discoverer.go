package discovery

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/core/feed"
	"github.com/veil-network/pool-scanner/core/types"
	"github.com/veil-network/pool-scanner/internal/subscription"
	"github.com/veil-network/pool-scanner/modules/discovery/datagateway"
	"github.com/veil-network/pool-scanner/modules/discovery/internal/entity"
	"github.com/veil-network/pool-scanner/modules/discovery/keys"
	"github.com/veil-network/pool-scanner/pkg/logger"
	"github.com/veil-network/pool-scanner/pkg/logger/slogx"
)

type scope struct {
	identity common.Identity
	pool     common.Pool
}

type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Discoverer reconstructs an account's note chains from the public activity
// feed. All candidate matching happens locally against full pages, so the
// feed never learns which records belong to the account.
//
// At most one run is active per (identity, pool) scope: starting a new run
// cancels the previous one for the same scope and waits for it to stop.
type Discoverer struct {
	feed    feed.Feed
	cache   datagateway.DiscoveryDataGateway
	deriver keys.Deriver

	mu     sync.Mutex
	active map[scope]*activeRun
}

func NewDiscoverer(activityFeed feed.Feed, cache datagateway.DiscoveryDataGateway, deriver keys.Deriver) *Discoverer {
	return &Discoverer{
		feed:    activityFeed,
		cache:   cache,
		deriver: deriver,
		active:  make(map[scope]*activeRun),
	}
}

type DiscoverParams struct {
	Account keys.Account
	Pool    common.Pool

	// Progress, when set, receives snapshots at page checkpoints and on each
	// matched deposit. The channel is not closed by the discoverer.
	Progress chan<- Progress
}

// Discover runs note discovery for the given account and pool until the feed
// is exhausted or the run is cancelled. Cancellation (via ctx or a newer run
// on the same scope) is not an error: the result carries RunStateCancelled
// and reflects everything persisted up to the last completed page.
func (d *Discoverer) Discover(ctx context.Context, params DiscoverParams) (*DiscoveryResult, error) {
	if !params.Pool.IsValid() {
		return nil, errors.Wrapf(errs.InvalidArgument, "invalid pool address %q", params.Pool)
	}
	identity := params.Account.Identity()

	ctx, release := d.acquireScope(ctx, scope{identity: identity, pool: params.Pool})
	defer release()

	ctx = logger.WithContext(ctx,
		slogx.String("package", "discovery"),
		slogx.String("identity", identity.String()),
		slogx.Stringer("pool", params.Pool),
	)

	r := &run{
		d:        d,
		account:  params.Account,
		identity: identity,
		pool:     params.Pool,
		chains:   make(map[uint64]entity.NoteChain),
		live:     make(map[uint64]struct{}),
	}
	if params.Progress != nil {
		r.sub = subscription.NewSubscription(params.Progress)
		defer r.sub.Unsubscribe()
	}

	result, err := r.discover(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return result, nil
}

// acquireScope registers a run for the scope, cancelling and draining any
// previous run first. The returned release must be called when the run ends.
func (d *Discoverer) acquireScope(ctx context.Context, s scope) (context.Context, func()) {
	d.mu.Lock()
	for {
		prev, ok := d.active[s]
		if !ok {
			break
		}
		prev.cancel()
		d.mu.Unlock()
		<-prev.done
		d.mu.Lock()
	}
	runCtx, cancel := context.WithCancel(ctx)
	current := &activeRun{cancel: cancel, done: make(chan struct{})}
	d.active[s] = current
	d.mu.Unlock()

	return runCtx, func() {
		cancel()
		d.mu.Lock()
		if d.active[s] == current {
			delete(d.active, s)
		}
		d.mu.Unlock()
		close(current.done)
	}
}

// run holds the mutable state of a single discovery pass.
type run struct {
	d        *Discoverer
	account  keys.Account
	identity common.Identity
	pool     common.Pool
	sub      *subscription.Subscription[Progress]

	chains        map[uint64]entity.NoteChain
	live          map[uint64]struct{}
	lastUsedIndex int64
	cursor        string

	pagesProcessed  int
	recordsSeen     int
	depositsChecked int
	depositsMatched int
}

func (r *run) discover(ctx context.Context) (*DiscoveryResult, error) {
	startAt := time.Now()

	// fail emits a terminal Failed snapshot so progress subscribers can tell
	// a failed run from silence; persisted pages stay valid for a retry.
	fail := func(err error) (*DiscoveryResult, error) {
		r.emit(ctx, RunStateFailed, true)
		return nil, errors.WithStack(err)
	}

	if err := r.restore(ctx); err != nil {
		return fail(err)
	}
	logger.InfoContext(ctx, "Starting note discovery",
		slogx.Int("cached_chains", len(r.chains)),
		slogx.Int64("last_used_index", r.lastUsedIndex),
		slogx.String("cursor", r.cursor),
	)

	for {
		if ctx.Err() != nil {
			return r.finish(ctx, RunStateCancelled), nil
		}

		page, err := r.d.feed.FetchPage(ctx, r.pool, r.cursor)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return r.finish(ctx, RunStateCancelled), nil
			}
			return fail(errors.Wrapf(err, "failed to fetch activity page at cursor %q", r.cursor))
		}
		r.pagesProcessed++
		r.recordsSeen += len(page.Records)

		if err := r.extendLiveChains(page.Records); err != nil {
			return fail(err)
		}
		if err := r.scanCandidates(ctx, page.Records); err != nil {
			if errors.Is(err, context.Canceled) {
				return r.finish(ctx, RunStateCancelled), nil
			}
			return fail(err)
		}

		// A fully processed page is a resumption point: persist before
		// advancing the cursor so an interrupted run never rescans it.
		state := r.snapshotState(page.NextCursor)
		if err := r.d.cache.SaveDiscoveryState(ctx, state); err != nil {
			return fail(errors.Wrapf(err, "failed to persist discovery state at cursor %q", page.NextCursor))
		}
		r.cursor = page.NextCursor
		r.emit(ctx, RunStateRunning, !page.HasMore)

		if !page.HasMore {
			break
		}
	}

	result := r.finish(ctx, RunStateCompleted)
	logger.InfoContext(ctx, "Note discovery completed",
		slogx.Int("chains", len(result.Chains)),
		slogx.Int("new_deposits", result.NewNotesFound),
		slogx.Int("pages", r.pagesProcessed),
		slogx.Int("records", r.recordsSeen),
		slogx.Duration("duration", time.Since(startAt)),
	)
	return result, nil
}

// restore loads the cached discovery state, if any, and validates it.
func (r *run) restore(ctx context.Context) error {
	r.lastUsedIndex = -1

	cached, err := r.d.cache.GetDiscoveryState(ctx, r.identity, r.pool)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return nil
		}
		return errors.Wrap(err, "failed to load cached discovery state")
	}

	for _, chain := range cached.Chains {
		if err := chain.Validate(); err != nil {
			return errors.Wrapf(err, "cached note chain at deposit index %d is corrupt", chain.DepositIndex())
		}
		r.chains[chain.DepositIndex()] = chain
		if chain.IsLive() {
			r.live[chain.DepositIndex()] = struct{}{}
		}
	}
	r.lastUsedIndex = cached.LastUsedIndex
	r.cursor = cached.Cursor
	return nil
}

// extendLiveChains advances every live chain against the page's records.
func (r *run) extendLiveChains(records []types.ActivityRecord) error {
	if len(r.live) == 0 || len(records) == 0 {
		return nil
	}
	indexes := lo.Keys(r.live)
	slices.Sort(indexes)
	for _, depositIndex := range indexes {
		chain := r.chains[depositIndex]
		extended, appended, err := extendChain(r.d.deriver, r.account, chain, records)
		if err != nil {
			return errors.WithStack(err)
		}
		if appended == 0 && extended.Tail().Status == chain.Tail().Status {
			continue
		}
		r.chains[depositIndex] = extended
		if !extended.IsLive() {
			delete(r.live, depositIndex)
		}
	}
	return nil
}

// scanCandidates tries successive deposit indexes past lastUsedIndex against
// the page's deposit records. Each index is searched over every record not
// yet consumed by an earlier match, in any order: two deposits landing in one
// page may appear index-inverted (same-block ordering). An index with no
// match on this page is retried on the next one (there is no gap limit).
func (r *run) scanCandidates(ctx context.Context, records []types.ActivityRecord) error {
	consumed := make(map[int]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}

		nextIndex := uint64(r.lastUsedIndex + 1)
		nullifier, secret := r.d.deriver.DepositSecretPair(r.account, r.pool, nextIndex)
		precommitment := r.d.deriver.Precommitment(nullifier, secret)
		r.depositsChecked++

		pos := -1
		for i, record := range records {
			if record.Kind != types.ActivityKindDeposit {
				continue
			}
			if _, ok := consumed[i]; ok {
				continue
			}
			if record.Precommitment == precommitment {
				pos = i
				break
			}
		}
		if pos < 0 {
			return nil
		}
		consumed[pos] = struct{}{}

		record := records[pos]
		chain := entity.NoteChain{{
			Pool:         r.pool,
			DepositIndex: nextIndex,
			ChangeIndex:  0,
			Amount:       record.Amount,
			Status:       entity.NoteStatusUnspent,
			Label:        record.Label,
			Tx: entity.TxRef{
				Hash:        record.TxHash,
				BlockNumber: record.BlockNumber,
				Timestamp:   record.Timestamp,
			},
		}}

		// The deposit may already be spent later in this same page.
		chain, _, err := extendChain(r.d.deriver, r.account, chain, records[pos+1:])
		if err != nil {
			return errors.WithStack(err)
		}

		r.chains[nextIndex] = chain
		if chain.IsLive() {
			r.live[nextIndex] = struct{}{}
		}
		r.lastUsedIndex = int64(nextIndex)
		r.depositsMatched++

		logger.DebugContext(ctx, "Matched new deposit",
			slogx.Uint64("deposit_index", nextIndex),
			slogx.String("amount", record.Amount.String()),
			slogx.Int("chain_length", len(chain)),
		)
		r.emit(ctx, RunStateRunning, false)
	}
}

func (r *run) snapshotState(cursor string) entity.DiscoveryState {
	indexes := lo.Keys(r.chains)
	slices.Sort(indexes)
	chains := make([]entity.NoteChain, 0, len(indexes))
	for _, i := range indexes {
		chains = append(chains, r.chains[i])
	}
	return entity.DiscoveryState{
		Identity:      r.identity,
		Pool:          r.pool,
		Chains:        chains,
		LastUsedIndex: r.lastUsedIndex,
		Cursor:        cursor,
		UpdatedAt:     time.Now(),
	}
}

func (r *run) finish(ctx context.Context, state RunState) *DiscoveryResult {
	snapshot := r.snapshotState(r.cursor)
	result := &DiscoveryResult{
		Chains:        snapshot.Chains,
		LastUsedIndex: r.lastUsedIndex,
		NewNotesFound: r.depositsMatched,
		Cursor:        r.cursor,
		State:         state,
	}
	r.emit(ctx, state, true)
	return result
}

func (r *run) emit(ctx context.Context, state RunState, done bool) {
	if r.sub == nil {
		return
	}
	progress := Progress{
		Identity:        r.identity,
		Pool:            r.pool,
		State:           state,
		PagesProcessed:  r.pagesProcessed,
		RecordsSeen:     r.recordsSeen,
		DepositsChecked: r.depositsChecked,
		DepositsMatched: r.depositsMatched,
		Cursor:          r.cursor,
		Done:            done,
	}
	// Terminal snapshots must still go out after the run context is cancelled.
	if err := r.sub.Send(context.WithoutCancel(ctx), progress); err != nil && !errors.Is(err, errs.Closed) {
		logger.WarnContext(ctx, "Failed to send discovery progress", slogx.Error(err))
	}
}
