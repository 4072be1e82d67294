package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/eunmann/csvrows/internal/logctx"
	"github.com/eunmann/csvrows/pkg/rowcount"
	"github.com/parquet-go/parquet-go"
)

// ErrCompressedParquet is returned for names such as "data.parquet.gz".
// Parquet compresses its pages internally and needs random access to its
// footer, so an outer compression layer is not supported.
var ErrCompressedParquet = errors.New("compressed parquet input is not supported")

// ObjectDownloader fetches whole remote objects for formats that need random
// access. *Client implements it.
type ObjectDownloader interface {
	DownloadObject(ctx context.Context, bucket, key string, dst io.WriterAt) (int64, error)
}

// ParquetOptions configures CountParquet.
type ParquetOptions struct {
	// S3 serves s3:// paths. When nil, a Client with the default AWS
	// configuration is created on first use.
	S3 ObjectDownloader
}

// IsParquet reports whether path names a Parquet file.
func IsParquet(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".parquet")
}

// CountParquet returns the number of rows recorded in a Parquet file's
// footer. Parquet has no header row. S3 objects are downloaded to a
// temporary file first, since the footer sits at the end of the object.
func CountParquet(ctx context.Context, path string, opts ParquetOptions) (rows int64, size int64, err error) {
	var f *os.File
	switch {
	case path == StdinPath:
		return 0, 0, &rowcount.IOError{Op: "open", Path: path, Err: errors.New("parquet input needs random access; stdin is not supported")}
	case IsS3URI(path):
		bucket, key, err := ParseS3URI(path)
		if err != nil {
			return 0, 0, &rowcount.IOError{Op: "open", Path: path, Err: err}
		}
		if key == "" {
			return 0, 0, &rowcount.IOError{Op: "open", Path: path, Err: errors.New("invalid S3 URI: missing object key")}
		}
		d := opts.S3
		if d == nil {
			client, err := NewClient(ctx)
			if err != nil {
				return 0, 0, &rowcount.IOError{Op: "open", Path: path, Err: err}
			}
			d = client
		}
		tmp, cleanup, err := downloadToTemp(ctx, d, bucket, key)
		if err != nil {
			return 0, 0, &rowcount.IOError{Op: "download", Path: path, Err: err}
		}
		defer cleanup()
		f = tmp
	default:
		f, err = os.Open(path)
		if err != nil {
			return 0, 0, &rowcount.IOError{Op: "open", Path: path, Err: err}
		}
		defer f.Close()
	}

	info, err := f.Stat()
	if err != nil {
		return 0, 0, &rowcount.IOError{Op: "stat", Path: path, Err: err}
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return 0, 0, &rowcount.IOError{Op: "read", Path: path, Err: fmt.Errorf("open parquet file: %w", err)}
	}

	log := logctx.FromContext(ctx)
	log.Debug().
		Str("path", path).
		Int("row_groups", len(pf.RowGroups())).
		Int64("rows", pf.NumRows()).
		Msg("parquet footer read")
	return pf.NumRows(), info.Size(), nil
}
