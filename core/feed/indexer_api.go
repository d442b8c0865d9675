package feed

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/core/types"
	"github.com/veil-network/pool-scanner/pkg/httpclient"
)

const (
	// DefaultPageSize is the number of records requested per page when the
	// config does not override it.
	DefaultPageSize = 1000

	maxPageSize = 10000
)

type IndexerAPIConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	PageSize int    `mapstructure:"page_size"`
	Debug    bool   `mapstructure:"debug"`
}

// IndexerAPI reads the activity feed from a public indexer HTTP service.
type IndexerAPI struct {
	client   *httpclient.Client
	pageSize int
}

var _ Feed = (*IndexerAPI)(nil)

func NewIndexerAPI(conf IndexerAPIConfig) (*IndexerAPI, error) {
	if conf.BaseURL == "" {
		return nil, errors.New("indexer api base url is required")
	}
	client, err := httpclient.New(conf.BaseURL, httpclient.Config{Debug: conf.Debug})
	if err != nil {
		return nil, errors.Wrap(err, "can't create http client")
	}
	pageSize := conf.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return &IndexerAPI{
		client:   client,
		pageSize: pageSize,
	}, nil
}

func (IndexerAPI) Name() string {
	return "indexer_api"
}

func (f *IndexerAPI) FetchPage(ctx context.Context, pool common.Pool, cursor string) (types.ActivityPage, error) {
	query := url.Values{
		"limit": []string{strconv.Itoa(f.pageSize)},
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	resp, err := f.client.Get(ctx, fmt.Sprintf("/v1/pools/%s/activity", pool), httpclient.RequestOptions{
		Query: query,
	})
	if err != nil {
		return types.ActivityPage{}, errors.Wrap(err, "can't fetch activity page")
	}
	if resp.StatusCode() != 200 {
		return types.ActivityPage{}, errors.Errorf("indexer api returned status %d for pool %s", resp.StatusCode(), pool)
	}

	var body common.HttpResponse[types.ActivityPage]
	if err := resp.UnmarshalBody(&body); err != nil {
		return types.ActivityPage{}, errors.Wrap(err, "can't unmarshal activity page")
	}
	if body.Error != nil {
		return types.ActivityPage{}, errors.Errorf("indexer api error: %s", *body.Error)
	}
	if body.Result == nil {
		return types.ActivityPage{}, errors.New("indexer api returned empty result")
	}

	return *body.Result, nil
}
