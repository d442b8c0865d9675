// Package feed provides read access to the public, append-only activity feed
// of a shielded pool.
//
// Feeds are intentionally dumb: one operation, "give me everything, paged".
// The interface admits no filtering by precommitment, nullifier or any other
// user-derived value, so a feed operator observing requests learns nothing
// about which records the caller owns.
package feed

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/core/types"
)

// Feed is a paginated reader over all activity of a pool, ordered by time.
type Feed interface {
	Name() string

	// FetchPage returns the page of records following the given cursor.
	// An empty cursor starts from the beginning of the feed.
	FetchPage(ctx context.Context, pool common.Pool, cursor string) (types.ActivityPage, error)
}

// Source selects the feed implementation.
type Source string

const (
	SourceIndexerAPI Source = "indexer_api"
	SourceS3Snapshot Source = "s3_snapshot"
)

type Config struct {
	Source     Source           `mapstructure:"source"`
	IndexerAPI IndexerAPIConfig `mapstructure:"indexer_api"`
	S3Snapshot S3SnapshotConfig `mapstructure:"s3_snapshot"`
}

// New creates the feed selected by conf.Source.
func New(ctx context.Context, conf Config) (Feed, error) {
	switch conf.Source {
	case SourceIndexerAPI, "":
		feed, err := NewIndexerAPI(conf.IndexerAPI)
		if err != nil {
			return nil, errors.Wrap(err, "can't create indexer api feed")
		}
		return feed, nil
	case SourceS3Snapshot:
		feed, err := NewS3Snapshot(ctx, conf.S3Snapshot)
		if err != nil {
			return nil, errors.Wrap(err, "can't create s3 snapshot feed")
		}
		return feed, nil
	default:
		return nil, errors.Errorf("unsupported feed source: %q", conf.Source)
	}
}
