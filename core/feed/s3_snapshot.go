package feed

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	cstream "github.com/planxnx/concurrent-stream"
	"github.com/samber/lo"
	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/core/types"
	"github.com/veil-network/pool-scanner/pkg/parquetutils"
)

const (
	// snapshotObjectsPerPage is the number of parquet objects combined into
	// one feed page. Objects within a page are downloaded concurrently;
	// their record order is preserved by key order.
	snapshotObjectsPerPage = 4

	downloadConcurrency = 16
	downloadPartSize    = 10 * 1024 * 1024
)

type S3SnapshotConfig struct {
	Region string `mapstructure:"region"`
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`

	// Anonymous uses unsigned requests (public snapshot buckets).
	Anonymous bool `mapstructure:"anonymous"`
}

// S3Snapshot reads the activity feed from pre-built parquet dumps in an S3
// bucket. Dumps are chunked into objects whose keys sort in feed order, so
// the object key doubles as the page cursor. Used to bootstrap long
// histories before switching to the live indexer feed.
type S3Snapshot struct {
	s3Client *s3.Client
	lister   s3ListAPI
	bucket   string
	prefix   string
}

// s3ListAPI is the subset of the S3 client used to enumerate snapshot objects.
type s3ListAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ Feed = (*S3Snapshot)(nil)

func NewS3Snapshot(ctx context.Context, conf S3SnapshotConfig) (*S3Snapshot, error) {
	if conf.Bucket == "" {
		return nil, errors.New("s3 snapshot bucket is required")
	}

	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "can't load aws config")
	}

	s3Client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if conf.Region != "" {
			o.Region = conf.Region
		}
		if conf.Anonymous {
			o.Credentials = aws.AnonymousCredentials{}
		}
	})

	return &S3Snapshot{
		s3Client: s3Client,
		lister:   s3Client,
		bucket:   conf.Bucket,
		prefix:   strings.TrimSuffix(conf.Prefix, "/"),
	}, nil
}

func (S3Snapshot) Name() string {
	return "s3_snapshot"
}

func (f *S3Snapshot) FetchPage(ctx context.Context, pool common.Pool, cursor string) (types.ActivityPage, error) {
	keys, err := f.listObjects(ctx, pool)
	if err != nil {
		return types.ActivityPage{}, errors.Wrap(err, "can't list snapshot objects")
	}
	if len(keys) == 0 {
		return types.ActivityPage{HasMore: false}, nil
	}
	sort.Strings(keys)

	// resume after the cursor object
	if cursor != "" {
		next := sort.SearchStrings(keys, cursor)
		if next < len(keys) && keys[next] == cursor {
			next++
		}
		keys = keys[next:]
	}
	if len(keys) == 0 {
		return types.ActivityPage{NextCursor: cursor, HasMore: false}, nil
	}

	pageKeys := keys
	if len(pageKeys) > snapshotObjectsPerPage {
		pageKeys = pageKeys[:snapshotObjectsPerPage]
	}

	// Download page objects concurrently; the stream preserves submit order
	// so records stay in feed order.
	out := make(chan []types.ActivityRecord)
	stream := cstream.NewStream(ctx, snapshotObjectsPerPage, out)
	go func() {
		defer stream.Close()
		for _, key := range pageKeys {
			key := key
			stream.Go(func() []types.ActivityRecord {
				records, err := f.readObject(ctx, key)
				if err != nil {
					return nil
				}
				return records
			})
		}
	}()
	go func() {
		_ = stream.Wait()
		close(out)
	}()

	records := make([]types.ActivityRecord, 0)
	for chunk := range out {
		if chunk == nil {
			return types.ActivityPage{}, errors.Wrapf(errs.SomethingWentWrong, "failed to read snapshot objects for pool %s", pool)
		}
		records = append(records, chunk...)
	}

	return types.ActivityPage{
		Records:    records,
		NextCursor: pageKeys[len(pageKeys)-1],
		HasMore:    len(keys) > len(pageKeys),
	}, nil
}

// listObjects enumerates every snapshot object under the pool prefix. S3
// caps each listing response at 1000 objects, so the listing is continued
// until the bucket reports no further truncation.
func (f *S3Snapshot) listObjects(ctx context.Context, pool common.Pool) ([]string, error) {
	prefix := f.prefix + "/" + pool.String() + "/"
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(f.bucket),
		Prefix: aws.String(prefix),
	}

	keys := make([]string, 0)
	for {
		result, err := f.lister.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, errors.Wrapf(err, "can't list s3 bucket objects for bucket %q and prefix %q", f.bucket, prefix)
		}

		objs := lo.Filter(result.Contents, func(item s3types.Object, _ int) bool { return item.Key != nil })
		keys = append(keys, lo.Map(objs, func(item s3types.Object, _ int) string {
			return *item.Key
		})...)

		if !aws.ToBool(result.IsTruncated) {
			return keys, nil
		}
		input.ContinuationToken = result.NextContinuationToken
	}
}

func (f *S3Snapshot) readObject(ctx context.Context, key string) ([]types.ActivityRecord, error) {
	downloader := manager.NewDownloader(f.s3Client, func(d *manager.Downloader) {
		d.Concurrency = downloadConcurrency
		d.PartSize = downloadPartSize
	})

	buffer := manager.NewWriteAtBuffer([]byte{})
	numBytes, err := downloader.Download(ctx, buffer, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to download file for bucket %q and key %q", f.bucket, key)
	}
	if numBytes < 1 {
		return nil, errors.Wrap(errs.NotFound, "got empty file")
	}

	rows, err := parquetutils.ReadAll[activityRow](parquetutils.NewBufferFile(buffer.Bytes()))
	if err != nil {
		return nil, errors.Wrapf(err, "can't read parquet records from %q", key)
	}

	records := make([]types.ActivityRecord, 0, len(rows))
	for i, row := range rows {
		record, err := row.ToActivityRecord()
		if err != nil {
			return nil, errors.Wrapf(err, "invalid snapshot row %d in %q", i, key)
		}
		records = append(records, record)
	}
	return records, nil
}

// activityRow is the parquet schema of snapshot dumps.
type activityRow struct {
	Kind           string `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount         string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	Precommitment  string `parquet:"name=precommitment, type=BYTE_ARRAY, convertedtype=UTF8"`
	SpentNullifier string `parquet:"name=spent_nullifier, type=BYTE_ARRAY, convertedtype=UTF8"`
	NewCommitment  string `parquet:"name=new_commitment, type=BYTE_ARRAY, convertedtype=UTF8"`
	Label          string `parquet:"name=label, type=BYTE_ARRAY, convertedtype=UTF8"`
	TxHash         string `parquet:"name=tx_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	BlockNumber    int64  `parquet:"name=block_number, type=INT64"`
	Timestamp      int64  `parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

func (r activityRow) ToActivityRecord() (types.ActivityRecord, error) {
	kind := types.ActivityKind(r.Kind)
	if !kind.IsValid() {
		return types.ActivityRecord{}, errors.Errorf("invalid activity kind: %q", r.Kind)
	}

	amount, err := uint128.FromString(r.Amount)
	if err != nil {
		return types.ActivityRecord{}, errors.Wrapf(err, "invalid amount %q", r.Amount)
	}

	parseHash := func(s string) (common.Hash, error) {
		if s == "" {
			return common.ZeroHash, nil
		}
		return common.NewHashFromStr(s)
	}

	precommitment, err := parseHash(r.Precommitment)
	if err != nil {
		return types.ActivityRecord{}, errors.Wrap(err, "invalid precommitment")
	}
	spentNullifier, err := parseHash(r.SpentNullifier)
	if err != nil {
		return types.ActivityRecord{}, errors.Wrap(err, "invalid spent nullifier")
	}
	newCommitment, err := parseHash(r.NewCommitment)
	if err != nil {
		return types.ActivityRecord{}, errors.Wrap(err, "invalid new commitment")
	}
	label, err := parseHash(r.Label)
	if err != nil {
		return types.ActivityRecord{}, errors.Wrap(err, "invalid label")
	}
	txHash, err := parseHash(r.TxHash)
	if err != nil {
		return types.ActivityRecord{}, errors.Wrap(err, "invalid tx hash")
	}

	return types.ActivityRecord{
		Kind:           kind,
		Amount:         amount,
		Precommitment:  precommitment,
		SpentNullifier: spentNullifier,
		NewCommitment:  newCommitment,
		Label:          label,
		TxHash:         txHash,
		BlockNumber:    uint64(r.BlockNumber),
		Timestamp:      time.UnixMilli(r.Timestamp).UTC(),
	}, nil
}
