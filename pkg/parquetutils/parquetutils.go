// Package parquetutils wraps parquet-go with the small read surface the
// snapshot loaders need.
package parquetutils

import (
	"github.com/cockroachdb/errors"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
)

// readConcurrency is the parallelism handed to the parquet column readers.
const readConcurrency = 8

// ReadAll decodes every row of the parquet file into a slice of T.
func ReadAll[T any](file source.ParquetFile) ([]T, error) {
	pr, err := reader.NewParquetReader(file, new(T), readConcurrency)
	if err != nil {
		return nil, errors.Wrap(err, "can't create parquet reader")
	}
	defer pr.ReadStop()

	rows := make([]T, pr.GetNumRows())
	if err := pr.Read(&rows); err != nil {
		return nil, errors.Wrap(err, "can't decode parquet rows")
	}
	return rows, nil
}
