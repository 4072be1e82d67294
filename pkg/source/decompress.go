package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the encoding of an input.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionLZ4
	CompressionBrotli
)

var compressionSuffixes = []struct {
	suffix string
	comp   Compression
}{
	{".gz", CompressionGzip},
	{".gzip", CompressionGzip},
	{".zst", CompressionZstd},
	{".zstd", CompressionZstd},
	{".lz4", CompressionLZ4},
	{".br", CompressionBrotli},
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionBrotli:
		return "brotli"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

// DetectCompression picks a decoder from the (case-insensitive) path suffix.
func DetectCompression(path string) Compression {
	lower := strings.ToLower(path)
	for _, s := range compressionSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.comp
		}
	}
	return CompressionNone
}

// trimCompression strips a compression suffix from path, if any.
func trimCompression(path string) string {
	lower := strings.ToLower(path)
	for _, s := range compressionSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return path[:len(path)-len(s.suffix)]
		}
	}
	return path
}

// decompress wraps r with the decoder for comp. The returned closer may be
// nil when the decoder holds no resources.
func decompress(r io.Reader, comp Compression) (io.Reader, io.Closer, error) {
	switch comp {
	case CompressionNone:
		return r, nil, nil
	case CompressionGzip:
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("create gzip reader: %w", err)
		}
		return gzr, gzr, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, fmt.Errorf("create zstd reader: %w", err)
		}
		rc := dec.IOReadCloser()
		return rc, rc, nil
	case CompressionLZ4:
		return lz4.NewReader(r), nil, nil
	case CompressionBrotli:
		return brotli.NewReader(r), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported compression %v", comp)
	}
}
