// Package source opens csvrows inputs as sequential byte streams.
//
// A path is one of:
//   - "-" for standard input
//   - "s3://bucket/key" for an S3 object
//   - anything else, a local file
//
// Compressed inputs are decoded transparently based on the path suffix
// (see Compression).
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
)

// StdinPath selects standard input.
const StdinPath = "-"

// ObjectStreamer streams remote objects. *Client implements it.
type ObjectStreamer interface {
	StreamObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Options configures Open.
type Options struct {
	// S3 serves s3:// paths. When nil, a Client with the default AWS
	// configuration is created on first use.
	S3 ObjectStreamer
	// Stdin replaces os.Stdin for the "-" path.
	Stdin io.Reader
}

// Stream is an opened input. Read returns decoded bytes; BytesRead reports
// the raw bytes pulled from the underlying file or object so far.
type Stream struct {
	Path        string
	Compression Compression

	r       io.Reader
	raw     *countingReader
	closers []io.Closer
	closed  bool
}

// Open resolves path and returns a stream ready for reading. The caller must
// Close it. Failures are reported as *rowcount.IOError.
func Open(ctx context.Context, path string, opts Options) (*Stream, error) {
	log := logctx.FromContext(ctx)

	comp := DetectCompression(path)
	if comp != CompressionNone && IsParquet(trimCompression(path)) {
		return nil, &rowcount.IOError{Op: "open", Path: path, Err: ErrCompressedParquet}
	}

	raw, closer, err := openRaw(ctx, path, opts)
	if err != nil {
		return nil, &rowcount.IOError{Op: "open", Path: path, Err: err}
	}

	s := &Stream{Path: path, raw: &countingReader{r: raw}}
	if closer != nil {
		s.closers = append(s.closers, closer)
	}

	decoded, dcloser, err := decompress(s.raw, comp)
	if err != nil {
		s.Close()
		return nil, &rowcount.IOError{Op: "open", Path: path, Err: err}
	}
	if dcloser != nil {
		// Decoder closes before the file it reads from.
		s.closers = append([]io.Closer{dcloser}, s.closers...)
	}
	s.r = decoded
	s.Compression = comp

	log.Debug().
		Str("path", path).
		Str("compression", comp.String()).
		Msg("input opened")
	return s, nil
}

// Read reads decoded input.
func (s *Stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, os.ErrClosed
	}
	return s.r.Read(p)
}

// BytesRead returns the raw (possibly compressed) bytes read so far. It is
// safe to call concurrently with Read.
func (s *Stream) BytesRead() int64 {
	return s.raw.BytesRead()
}

// Close releases every layer of the stream. It is safe to call more than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openRaw(ctx context.Context, path string, opts Options) (io.Reader, io.Closer, error) {
	switch {
	case path == "":
		return nil, nil, errors.New("empty path")
	case path == StdinPath:
		if opts.Stdin != nil {
			return opts.Stdin, nil, nil
		}
		return os.Stdin, nil, nil
	case IsS3URI(path):
		bucket, key, err := ParseS3URI(path)
		if err != nil {
			return nil, nil, err
		}
		if key == "" {
			return nil, nil, errors.New("invalid S3 URI: missing object key")
		}
		streamer := opts.S3
		if streamer == nil {
			client, err := NewClient(ctx)
			if err != nil {
				return nil, nil, err
			}
			streamer = client
		}
		body, err := streamer.StreamObject(ctx, bucket, key)
		if err != nil {
			return nil, nil, err
		}
		return body, body, nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		if info.IsDir() {
			f.Close()
			return nil, nil, fmt.Errorf("%s is a directory", path)
		}
		if err := adviseSequential(f); err != nil {
			log := logctx.FromContext(ctx)
			log.Debug().Err(err).Str("path", path).Msg("fadvise failed")
		}
		return f, f, nil
	}
}

// IsS3URI reports whether path names an S3 object.
func IsS3URI(path string) bool {
	return strings.HasPrefix(path, "s3://")
}
