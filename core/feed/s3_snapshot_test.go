package feed

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-network/pool-scanner/common"
)

// stubLister serves canned listing responses, one per continuation token.
type stubLister struct {
	pages    map[string]*s3.ListObjectsV2Output
	requests []*s3.ListObjectsV2Input
}

func (l *stubLister) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	l.requests = append(l.requests, params)
	page, ok := l.pages[aws.ToString(params.ContinuationToken)]
	if !ok {
		return nil, fmt.Errorf("unexpected continuation token %q", aws.ToString(params.ContinuationToken))
	}
	return page, nil
}

func listingPage(truncated bool, nextToken string, keys ...string) *s3.ListObjectsV2Output {
	out := &s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(truncated),
		Contents: lo.Map(keys, func(key string, _ int) s3types.Object {
			return s3types.Object{Key: aws.String(key)}
		}),
	}
	if nextToken != "" {
		out.NextContinuationToken = aws.String(nextToken)
	}
	return out
}

func TestS3SnapshotListObjectsFollowsTruncation(t *testing.T) {
	pool := common.Pool("0x8ba1f109551bd432803012645ac136ddd64dba72")
	prefix := "snapshots/" + pool.String() + "/"

	lister := &stubLister{pages: map[string]*s3.ListObjectsV2Output{
		"":        listingPage(true, "token-1", prefix+"000001.parquet", prefix+"000002.parquet"),
		"token-1": listingPage(true, "token-2", prefix+"000003.parquet"),
		"token-2": listingPage(false, "", prefix+"000004.parquet"),
	}}
	snapshot := &S3Snapshot{lister: lister, bucket: "activity-dumps", prefix: "snapshots"}

	keys, err := snapshot.listObjects(context.Background(), pool)
	require.NoError(t, err)
	assert.Equal(t, []string{
		prefix + "000001.parquet",
		prefix + "000002.parquet",
		prefix + "000003.parquet",
		prefix + "000004.parquet",
	}, keys)

	require.Len(t, lister.requests, 3)
	for _, request := range lister.requests {
		assert.Equal(t, "activity-dumps", aws.ToString(request.Bucket))
		assert.Equal(t, prefix, aws.ToString(request.Prefix))
	}
	assert.Equal(t, "token-2", aws.ToString(lister.requests[2].ContinuationToken))
}

func TestS3SnapshotListObjectsSinglePage(t *testing.T) {
	pool := common.Pool("0x8ba1f109551bd432803012645ac136ddd64dba72")
	prefix := "snapshots/" + pool.String() + "/"

	lister := &stubLister{pages: map[string]*s3.ListObjectsV2Output{
		"": listingPage(false, "", prefix+"000001.parquet"),
	}}
	snapshot := &S3Snapshot{lister: lister, bucket: "activity-dumps", prefix: "snapshots"}

	keys, err := snapshot.listObjects(context.Background(), pool)
	require.NoError(t, err)
	assert.Equal(t, []string{prefix + "000001.parquet"}, keys)
	require.Len(t, lister.requests, 1)
}
