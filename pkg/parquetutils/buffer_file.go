// nolint: wrapcheck
package parquetutils

import (
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/source"
)

// BufferFile adapts an in-memory byte slice to the source.ParquetFile
// contract so downloaded snapshot objects can be decoded without touching
// disk. The slice is used directly, not copied.
type BufferFile struct {
	buf *parquetbuffer.BufferFile
}

var _ source.ParquetFile = (*BufferFile)(nil)

func NewBufferFile(data []byte) *BufferFile {
	return &BufferFile{buf: parquetbuffer.NewBufferFileFromBytesNoAlloc(data)}
}

func (f *BufferFile) Open(string) (source.ParquetFile, error) {
	return NewBufferFile(f.buf.Bytes()), nil
}

func (f *BufferFile) Create(string) (source.ParquetFile, error) {
	return &BufferFile{buf: parquetbuffer.NewBufferFile()}, nil
}

func (f *BufferFile) Seek(offset int64, whence int) (int64, error) {
	return f.buf.Seek(offset, whence)
}

func (f *BufferFile) Read(p []byte) (int, error)  { return f.buf.Read(p) }
func (f *BufferFile) Write(p []byte) (int, error) { return f.buf.Write(p) }
func (f *BufferFile) Close() error                { return f.buf.Close() }
