package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/modules/discovery/datagateway"
	"github.com/veil-network/pool-scanner/modules/discovery/internal/entity"
)

var _ datagateway.DiscoveryDataGateway = (*Repository)(nil)

func (r *Repository) GetDiscoveryState(ctx context.Context, identity common.Identity, pool common.Pool) (entity.DiscoveryState, error) {
	row := r.db.QueryRow(ctx, `
		SELECT identity, pool, cursor, payload, updated_at
		FROM discovery_states
		WHERE identity = $1 AND pool = $2
	`, string(identity), string(pool))

	state, err := r.scanState(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.DiscoveryState{}, errors.WithStack(errs.NotFound)
		}
		return entity.DiscoveryState{}, errors.Wrap(err, "error during query")
	}
	return state, nil
}

func (r *Repository) GetDiscoveryStates(ctx context.Context, identity common.Identity) ([]entity.DiscoveryState, error) {
	rows, err := r.db.Query(ctx, `
		SELECT identity, pool, cursor, payload, updated_at
		FROM discovery_states
		WHERE identity = $1
		ORDER BY pool
	`, string(identity))
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	defer rows.Close()

	states := make([]entity.DiscoveryState, 0)
	for rows.Next() {
		state, err := r.scanState(rows)
		if err != nil {
			return nil, errors.Wrap(err, "error during scan")
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error during iteration")
	}
	return states, nil
}

func (r *Repository) SaveDiscoveryState(ctx context.Context, state entity.DiscoveryState) error {
	payload, err := marshalStatePayload(state, r.cryptoClient)
	if err != nil {
		return errors.Wrap(err, "failed to marshal state payload")
	}

	// Single-statement upsert: a failed save leaves the previous row intact.
	if _, err := r.db.Exec(ctx, `
		INSERT INTO discovery_states (identity, pool, cursor, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identity, pool) DO UPDATE SET
			cursor = EXCLUDED.cursor,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, string(state.Identity), string(state.Pool), state.Cursor, payload, state.UpdatedAt.UTC()); err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

func (r *Repository) scanState(row pgx.Row) (entity.DiscoveryState, error) {
	var (
		identity  string
		pool      string
		cursor    string
		payload   []byte
		updatedAt time.Time
	)
	if err := row.Scan(&identity, &pool, &cursor, &payload, &updatedAt); err != nil {
		return entity.DiscoveryState{}, errors.WithStack(err)
	}

	state, err := unmarshalStatePayload(payload, r.cryptoClient)
	if err != nil {
		return entity.DiscoveryState{}, errors.Wrap(err, "failed to unmarshal state payload")
	}
	state.Identity = common.Identity(identity)
	state.Pool = common.Pool(pool)
	state.Cursor = cursor
	state.UpdatedAt = updatedAt
	return state, nil
}
